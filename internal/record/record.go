// Package record implements the configuration record edited for one popup:
// a field-keyed map whose values are strings, numbers, booleans, nested
// records or ordered lists of records.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record maps field names to values. Nested records are stored as Record and
// lists as []any whose elements are Record.
type Record map[string]any

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case Record:
		return tv.Clone()
	case map[string]any:
		return Record(tv).Clone()
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	case []Record:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = item.Clone()
		}
		return out
	case []map[string]any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = Record(item).Clone()
		}
		return out
	default:
		return v
	}
}

// Merge overlays persisted onto defaults, field by field. Persisted values win;
// nested records are merged recursively so a record saved by an older template
// version still gets defaults for fields added later. Neither input is modified.
func Merge(defaults, persisted Record) Record {
	out := defaults.Clone()
	for k, v := range persisted {
		pv := cloneValue(v)
		if dv, ok := AsRecord(out[k]); ok {
			if nested, ok := AsRecord(pv); ok {
				out[k] = Merge(dv, nested)
				continue
			}
		}
		out[k] = pv
	}
	return out
}

// AsRecord reports whether v is a record, accepting both Record and the
// map[string]any produced by encoding/json.
func AsRecord(v any) (Record, bool) {
	switch tv := v.(type) {
	case Record:
		return tv, true
	case map[string]any:
		return Record(tv), true
	default:
		return nil, false
	}
}

// String returns the field as a string. Numbers and booleans are formatted;
// missing fields yield "".
func (r Record) String(key string) string {
	return toString(r[key])
}

func toString(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case json.Number:
		return tv.String()
	default:
		return fmt.Sprint(tv)
	}
}

// Bool returns the field as a boolean. Strings "true", "1" and "on" count as true.
func (r Record) Bool(key string) bool {
	switch tv := r[key].(type) {
	case bool:
		return tv
	case string:
		switch strings.ToLower(strings.TrimSpace(tv)) {
		case "true", "1", "on", "yes":
			return true
		}
	case float64:
		return tv != 0
	case int:
		return tv != 0
	}
	return false
}

// Int returns the field as an int, or def when missing or unparsable.
func (r Record) Int(key string, def int) int {
	switch tv := r[key].(type) {
	case int:
		return tv
	case int64:
		return int(tv)
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return def
		}
		return int(tv)
	case json.Number:
		if n, err := tv.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(tv)); err == nil {
			return n
		}
	}
	return def
}

// List returns the records of a list-valued field. Non-record elements are skipped.
func (r Record) List(key string) []Record {
	items, ok := asList(r[key])
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if rec, ok := AsRecord(item); ok {
			out = append(out, rec)
		}
	}
	return out
}

func asList(v any) ([]any, bool) {
	switch tv := v.(type) {
	case []any:
		return tv, true
	case []Record:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = item
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = Record(item)
		}
		return out, true
	default:
		return nil, false
	}
}

// Decode parses a JSON object into a Record with nested maps normalized to Record.
func Decode(data []byte) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return Record(raw).Clone(), nil
}
