package widgets

import (
	"html/template"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Info is an informational panel with a title, a markdown body, an optional
// image and an optional call-to-action button.
type Info struct{}

var infoForm = formSpec{
	Fields: append([]field{
		{Key: "title", Label: "Title", Kind: kindText},
		{Key: "body", Label: "Text (markdown)", Kind: kindTextarea},
		{Key: "image", Label: "Image URL", Kind: kindURL},
		{Key: "button_text", Label: "Button text", Kind: kindText},
		{Key: "button_url", Label: "Button link", Kind: kindURL},
	}, themeFields...),
}

var infoMarkup = markupSet("info", `{{define "card"}}<div class="popup-info">
{{- with .Data.Image}}<img class="popup-image" src="{{.}}" alt="">{{end -}}
<h2 class="popup-title">{{.Data.Title}}</h2>
<div class="popup-body">{{.Data.Body}}</div>
{{- if .Data.ButtonURL}}<a class="popup-button" href="{{.Data.ButtonURL}}" target="_blank" rel="noopener noreferrer">{{.Data.ButtonText}}</a>{{end -}}
</div>{{end}}`)

const infoCSS = `{{.Scope}} .popup-body { line-height: 1.5; margin: 12px 0 16px; }
{{.Scope}} .popup-body a { color: var(--popup-primary); }
{{.Scope}} .popup-body pre { overflow-x: auto; padding: 8px; border-radius: 6px; }
`

type infoView struct {
	Title      string
	Body       template.HTML
	Image      string
	ButtonText string
	ButtonURL  string
}

func (Info) Name() string        { return "Information panel" }
func (Info) Icon() string        { return "ℹ️" }
func (Info) Description() string { return "Title and formatted text with an optional image and button" }

func (Info) DefaultConfig() record.Record {
	cfg := record.Record{
		"title":       "",
		"body":        "",
		"image":       "",
		"button_text": "Learn more",
		"button_url":  "",
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Info) RequiredFields() []string { return []string{"title"} }

func (Info) RenderFormFields(cfg record.Record) (string, error) { return infoForm.render(cfg) }

func (i Info) RenderPreview(cfg record.Record) (string, error) {
	v, err := i.view(cfg)
	if err != nil {
		return "", err
	}
	return execute(infoMarkup, "preview", view{Theme: themeFrom(cfg), Data: v})
}

func (i Info) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	v, err := i.view(cfg)
	if err != nil {
		return emit.Bundle{}, err
	}
	return bundleParts(objectID, infoMarkup, view{Theme: themeFrom(cfg), Data: v}, 520, infoCSS, noHooks, cfg)
}

func (Info) view(cfg record.Record) (infoView, error) {
	body, err := renderMarkdown(cfg.String("body"))
	if err != nil {
		return infoView{}, err
	}
	v := infoView{
		Title:      cfg.String("title"),
		Body:       body,
		Image:      cfg.String("image"),
		ButtonText: cfg.String("button_text"),
	}
	if u := cfg.String("button_url"); u != "" {
		v.ButtonURL = withScheme(u)
	}
	return v, nil
}
