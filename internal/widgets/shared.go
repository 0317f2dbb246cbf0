// Package widgets contains the built-in popup templates.
package widgets

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/go-playground/validator/v10"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Color field keys shared by every themed template.
const (
	keyPrimary    = "primary_color"
	keyBackground = "background_color"
	keyText       = "text_color"
)

type theme struct {
	Primary    string
	Background string
	Text       string
}

var defaultTheme = theme{Primary: "#1f6feb", Background: "#ffffff", Text: "#1b1f24"}

func (t theme) seed(cfg record.Record) {
	cfg[keyPrimary] = t.Primary
	cfg[keyBackground] = t.Background
	cfg[keyText] = t.Text
}

// themeFrom reads the three color fields, replacing anything that is not a
// valid CSS color with the default.
func themeFrom(cfg record.Record) theme {
	pick := func(key, def string) string {
		v := strings.TrimSpace(cfg.String(key))
		if validate.Var(v, "required,iscolor") != nil {
			return def
		}
		return v
	}
	return theme{
		Primary:    pick(keyPrimary, defaultTheme.Primary),
		Background: pick(keyBackground, defaultTheme.Background),
		Text:       pick(keyText, defaultTheme.Text),
	}
}

// Vars renders the theme as CSS custom properties for an inline style attribute.
// Values have been validated by themeFrom.
func (t theme) Vars() template.CSS {
	return template.CSS(fmt.Sprintf("--popup-primary:%s;--popup-bg:%s;--popup-text:%s", t.Primary, t.Background, t.Text))
}

var themeFields = []field{
	{Key: keyPrimary, Label: "Accent color", Kind: kindColor},
	{Key: keyBackground, Label: "Background color", Kind: kindColor},
	{Key: keyText, Label: "Text color", Kind: kindColor},
}

const baseCSS = `{{.Scope}}.popup-overlay {
  position: fixed; inset: 0; z-index: 10000;
  display: flex; align-items: center; justify-content: center;
  background: rgba(0, 0, 0, 0.45);
  --popup-primary: {{.Theme.Primary}};
  --popup-bg: {{.Theme.Background}};
  --popup-text: {{.Theme.Text}};
}
{{.Scope}}.popup-overlay[hidden] { display: none; }
{{.Scope}} .popup-card {
  position: relative; box-sizing: border-box; width: 90%; max-width: {{.MaxWidth}}px;
  max-height: 90vh; overflow: auto; padding: 24px; border-radius: 12px;
  background: var(--popup-bg); color: var(--popup-text);
  font-family: system-ui, -apple-system, "Segoe UI", sans-serif;
  box-shadow: 0 12px 40px rgba(0, 0, 0, 0.3);
}
{{.Scope}} .popup-close {
  position: absolute; top: 8px; right: 12px; border: 0; background: none;
  font-size: 24px; line-height: 1; cursor: pointer; color: var(--popup-text);
}
{{.Scope}} .popup-title { margin: 0 0 4px; color: var(--popup-primary); }
{{.Scope}} .popup-subtitle { margin: 0 0 16px; opacity: 0.75; }
{{.Scope}} .popup-image { display: block; max-width: 100%; border-radius: 8px; margin: 0 0 16px; }
{{.Scope}} .popup-button {
  display: inline-block; padding: 10px 18px; border-radius: 6px; text-decoration: none;
  background: var(--popup-primary); color: var(--popup-bg);
}
`

type styleData struct {
	Scope    string
	Theme    theme
	MaxWidth int
}

// renderStyle executes baseCSS followed by extra with the widget's scope
// selector. Only validated colors and integers reach the stylesheet.
func renderStyle(objectID string, th theme, maxWidth int, extra string) (string, error) {
	tmpl, err := texttemplate.New("style").Parse(baseCSS + extra)
	if err != nil {
		return "", fmt.Errorf("parsing style: %w", err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, styleData{Scope: emit.ScopeSelector(objectID), Theme: th, MaxWidth: maxWidth})
	if err != nil {
		return "", fmt.Errorf("rendering style: %w", err)
	}
	return buf.String(), nil
}

// previewCSS is the small stylesheet embedded in every live preview.
const previewCSS = `.popup-preview .popup-card { box-sizing: border-box; padding: 20px; border-radius: 12px;
  background: var(--popup-bg); color: var(--popup-text); font-family: system-ui, sans-serif; }
.popup-preview .popup-title { margin: 0 0 4px; color: var(--popup-primary); }
.popup-preview .popup-image { max-width: 100%; border-radius: 8px; }
.popup-preview .popup-button { display: inline-block; padding: 8px 14px; border-radius: 6px;
  background: var(--popup-primary); color: var(--popup-bg); text-decoration: none; }
.popup-preview .popup-close { display: none; }`

// markupSet parses one widget's card definition together with the shared
// bundle and preview wrappers. The card template is named "card".
func markupSet(name, card string) *template.Template {
	return template.Must(template.New(name).Parse(card + wrappers))
}

const wrappers = `
{{define "bundle"}}<template data-popup-template="{{.ObjectID}}"><div class="popup-card" role="dialog" aria-modal="true"><button type="button" class="popup-close" data-popup-close aria-label="Close">&times;</button>{{template "card" .}}</div></template>{{end}}
{{define "preview"}}<div class="popup-preview" style="{{.Theme.Vars}}"><style>` + previewCSS + `</style><div class="popup-card">{{template "card" .}}</div></div>{{end}}`

// view is the value every markup template executes against. Data holds the
// widget-specific fields, already normalized to strings and URLs.
type view struct {
	ObjectID string
	Theme    theme
	Data     any
}

func execute(t *template.Template, name string, v view) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("executing %s/%s: %w", t.Name(), name, err)
	}
	return buf.String(), nil
}

// bundleParts assembles a bundle from a parsed markup set, extra CSS and a behavior program.
func bundleParts(objectID string, t *template.Template, v view, maxWidth int, css string, program emit.Program, data any) (emit.Bundle, error) {
	v.ObjectID = objectID
	markup, err := execute(t, "bundle", v)
	if err != nil {
		return emit.Bundle{}, err
	}
	style, err := renderStyle(objectID, v.Theme, maxWidth, css)
	if err != nil {
		return emit.Bundle{}, err
	}
	behavior, err := emit.Behavior{ObjectID: objectID, Program: program, Data: data}.Render()
	if err != nil {
		return emit.Bundle{}, err
	}
	return emit.Bundle{ObjectID: objectID, Markup: markup, Style: style, Behavior: behavior}, nil
}

// noHooks is the program for widgets whose behavior is fully covered by the runtime shell.
const noHooks emit.Program = `return {};`
