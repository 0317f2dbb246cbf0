package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a field path: a field name, optionally followed by a
// list index (contacts[2]).
type Segment struct {
	Field string
	Index int // -1 when the segment has no index
}

// ParsePath splits a path such as "contacts[2].value" into segments.
func ParsePath(path string) ([]Segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty field path")
	}

	var segs []Segment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("invalid field path %q: empty segment", path)
		}
		seg := Segment{Field: part, Index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") || open == 0 {
				return nil, fmt.Errorf("invalid field path %q: malformed index in %q", path, part)
			}
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid field path %q: bad index in %q", path, part)
			}
			seg.Field = part[:open]
			seg.Index = idx
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// ItemPath builds the path of a field inside a list row, e.g. ItemPath("contacts", 2, "value").
func ItemPath(listField string, index int, field string) string {
	return fmt.Sprintf("%s[%d].%s", listField, index, field)
}

// Get resolves a path against r.
func (r Record) Get(path string) (any, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, false
	}

	var cur any = r
	for _, seg := range segs {
		rec, ok := AsRecord(cur)
		if !ok {
			return nil, false
		}
		v, ok := rec[seg.Field]
		if !ok {
			return nil, false
		}
		if seg.Index >= 0 {
			items, ok := asList(v)
			if !ok || seg.Index >= len(items) {
				return nil, false
			}
			v = items[seg.Index]
		}
		cur = v
	}
	return cur, true
}

// Set assigns value at path. Intermediate records are created as needed; list
// indexes must already exist.
func (r Record) Set(path string, value any) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}

	cur := r
	for i, seg := range segs {
		last := i == len(segs)-1

		if seg.Index < 0 {
			if last {
				cur[seg.Field] = cloneValue(value)
				return nil
			}
			next, ok := AsRecord(cur[seg.Field])
			if !ok {
				if _, exists := cur[seg.Field]; exists {
					return fmt.Errorf("set %s: field %q is not a record", path, seg.Field)
				}
				next = Record{}
				cur[seg.Field] = next
			}
			cur = next
			continue
		}

		items, ok := asList(cur[seg.Field])
		if !ok {
			return fmt.Errorf("set %s: field %q is not a list", path, seg.Field)
		}
		if seg.Index >= len(items) {
			return fmt.Errorf("set %s: index %d out of range (len %d)", path, seg.Index, len(items))
		}
		// asList may have converted a typed slice; store the []any form back.
		cur[seg.Field] = items
		if last {
			items[seg.Index] = cloneValue(value)
			return nil
		}
		next, ok := AsRecord(items[seg.Index])
		if !ok {
			return fmt.Errorf("set %s: item %d of %q is not a record", path, seg.Index, seg.Field)
		}
		items[seg.Index] = next
		cur = next
	}
	return nil
}

// AppendItem appends a copy of item to the list at listField, creating the list
// if absent, and returns the new item's index.
func (r Record) AppendItem(listField string, item Record) (int, error) {
	v, _ := r.Get(listField)
	var items []any
	if v != nil {
		var ok bool
		items, ok = asList(v)
		if !ok {
			return 0, fmt.Errorf("append to %s: field is not a list", listField)
		}
	}
	items = append(append([]any(nil), items...), item.Clone())
	if err := r.Set(listField, items); err != nil {
		return 0, err
	}
	return len(items) - 1, nil
}

// RemoveItem deletes the element at index from the list at listField. Later
// elements shift down by one.
func (r Record) RemoveItem(listField string, index int) error {
	v, ok := r.Get(listField)
	if !ok {
		return fmt.Errorf("remove from %s: no such list", listField)
	}
	items, ok := asList(v)
	if !ok {
		return fmt.Errorf("remove from %s: field is not a list", listField)
	}
	if index < 0 || index >= len(items) {
		return fmt.Errorf("remove from %s: index %d out of range (len %d)", listField, index, len(items))
	}
	out := make([]any, 0, len(items)-1)
	out = append(out, items[:index]...)
	out = append(out, items[index+1:]...)
	return r.Set(listField, out)
}
