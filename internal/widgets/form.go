package widgets

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ziadkadry99/popup-studio/internal/record"
)

type fieldKind string

const (
	kindText     fieldKind = "text"
	kindTextarea fieldKind = "textarea"
	kindColor    fieldKind = "color"
	kindURL      fieldKind = "url"
	kindNumber   fieldKind = "number"
	kindCheckbox fieldKind = "checkbox"
	kindSelect   fieldKind = "select"
)

type field struct {
	Key         string
	Label       string
	Kind        fieldKind
	Placeholder string
	Options     []string
}

// listSpec describes a repeatable group of fields stored as a list of records.
type listSpec struct {
	Key      string
	Label    string
	AddLabel string
	Item     []field
	NewItem  func() record.Record
}

type formSpec struct {
	Fields []field
	Lists  []listSpec
}

type formInput struct {
	Path        string
	Label       string
	Kind        string
	Value       string
	Checked     bool
	Placeholder string
	Options     []formOption
}

type formOption struct {
	Value    string
	Selected bool
}

type formRow struct {
	List   string
	Index  int
	Inputs []formInput
}

type formList struct {
	Key      string
	Label    string
	AddLabel string
	Rows     []formRow
}

type formView struct {
	Inputs []formInput
	Lists  []formList
}

var formTemplate = template.Must(template.New("form").Parse(`{{define "input"}}<label class="popup-field popup-field-{{.Kind}}"><span>{{.Label}}</span>
{{- if eq .Kind "textarea"}}<textarea name="{{.Path}}" data-path="{{.Path}}" placeholder="{{.Placeholder}}">{{.Value}}</textarea>
{{- else if eq .Kind "checkbox"}}<input type="checkbox" name="{{.Path}}" data-path="{{.Path}}"{{if .Checked}} checked{{end}}>
{{- else if eq .Kind "select"}}<select name="{{.Path}}" data-path="{{.Path}}">{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Value}}</option>{{end}}</select>
{{- else}}<input type="{{.Kind}}" name="{{.Path}}" data-path="{{.Path}}" value="{{.Value}}" placeholder="{{.Placeholder}}">
{{- end}}</label>{{end -}}
<div class="popup-form">
{{- range .Inputs}}{{template "input" .}}{{end}}
{{- range .Lists}}<fieldset class="popup-list" data-list="{{.Key}}"><legend>{{.Label}}</legend>
{{- range .Rows}}<div class="popup-list-row" data-list="{{.List}}" data-index="{{.Index}}">
{{- range .Inputs}}{{template "input" .}}{{end -}}
<button type="button" data-action="remove-item" data-list="{{.List}}" data-index="{{.Index}}">Remove</button></div>
{{- end}}<button type="button" data-action="add-item" data-list="{{.Key}}">{{.AddLabel}}</button></fieldset>
{{- end}}</div>`))

func inputFor(path string, f field, value any) formInput {
	in := formInput{
		Path:        path,
		Label:       f.Label,
		Kind:        string(f.Kind),
		Placeholder: f.Placeholder,
	}
	holder := record.Record{"v": value}
	switch f.Kind {
	case kindCheckbox:
		in.Checked = holder.Bool("v")
	case kindSelect:
		cur := holder.String("v")
		for _, opt := range f.Options {
			in.Options = append(in.Options, formOption{Value: opt, Selected: opt == cur})
		}
	default:
		in.Value = holder.String("v")
	}
	return in
}

// render builds the parameter form for cfg. Every input carries a data-path
// naming the config field it edits; list rows use index paths such as
// contacts[1].value, rebuilt from scratch on every call so indexes stay contiguous.
func (s formSpec) render(cfg record.Record) (string, error) {
	var v formView
	for _, f := range s.Fields {
		v.Inputs = append(v.Inputs, inputFor(f.Key, f, cfg[f.Key]))
	}
	for _, l := range s.Lists {
		fl := formList{Key: l.Key, Label: l.Label, AddLabel: l.AddLabel}
		for i, item := range cfg.List(l.Key) {
			row := formRow{List: l.Key, Index: i}
			for _, f := range l.Item {
				row.Inputs = append(row.Inputs, inputFor(record.ItemPath(l.Key, i, f.Key), f, item[f.Key]))
			}
			fl.Rows = append(fl.Rows, row)
		}
		v.Lists = append(v.Lists, fl)
	}

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("rendering form: %w", err)
	}
	return buf.String(), nil
}

// newItem returns a blank row for the named list, or false when the form has no such list.
func (s formSpec) newItem(list string) (record.Record, bool) {
	for _, l := range s.Lists {
		if l.Key != list {
			continue
		}
		if l.NewItem != nil {
			return l.NewItem(), true
		}
		item := record.Record{}
		for _, f := range l.Item {
			switch {
			case f.Kind == kindSelect && len(f.Options) > 0:
				item[f.Key] = f.Options[0]
			case f.Kind == kindCheckbox:
				item[f.Key] = false
			default:
				item[f.Key] = ""
			}
		}
		return item, true
	}
	return nil, false
}
