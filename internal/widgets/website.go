package widgets

import (
	"strings"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Website shows an external page in a frame, with a link to open it in a new tab.
type Website struct{}

var websiteForm = formSpec{
	Fields: append([]field{
		{Key: "title", Label: "Title", Kind: kindText},
		{Key: "url", Label: "Page URL", Kind: kindURL, Placeholder: "https://example.com"},
		{Key: "height", Label: "Frame height (px)", Kind: kindNumber},
		{Key: "open_label", Label: "Open-in-new-tab label", Kind: kindText},
	}, themeFields...),
}

var websiteMarkup = markupSet("website", `{{define "card"}}<div class="popup-website">
{{- with .Data.Title}}<h2 class="popup-title">{{.}}</h2>{{end -}}
{{- if .Data.URL}}<iframe data-popup-frame title="{{.Data.Title}}" style="height: {{.Data.Height}}px" referrerpolicy="no-referrer" sandbox="allow-scripts allow-same-origin allow-forms allow-popups" {{if .Data.Eager}}src="{{.Data.URL}}"{{end}}></iframe>
<a class="popup-website-open" href="{{.Data.URL}}" target="_blank" rel="noopener noreferrer">{{.Data.OpenLabel}}</a>
{{- else}}<p class="popup-subtitle">No page selected</p>{{end -}}
</div>{{end}}`)

const websiteCSS = `{{.Scope}} .popup-website iframe { display: block; width: 100%; border: 0; border-radius: 8px; margin: 12px 0 8px; background: #fff; }
{{.Scope}} .popup-website-open { color: var(--popup-primary); font-size: 14px; }
`

const websiteProgram emit.Program = `var frame = null;
    return {
      build: function (root) { frame = root.querySelector("[data-popup-frame]"); },
      show: function () { if (frame) frame.src = config.frame_url; },
      close: function () { if (frame) frame.src = "about:blank"; }
    };`

type websiteView struct {
	Title     string
	URL       string
	OpenLabel string
	Height    int
	Eager     bool
}

func (Website) Name() string        { return "Website" }
func (Website) Icon() string        { return "🌐" }
func (Website) Description() string { return "Embedded external web page" }

func (Website) DefaultConfig() record.Record {
	cfg := record.Record{
		"title":      "",
		"url":        "",
		"height":     480,
		"open_label": "Open in a new tab",
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Website) RequiredFields() []string { return []string{"url"} }

func (Website) RenderFormFields(cfg record.Record) (string, error) { return websiteForm.render(cfg) }

func (w Website) RenderPreview(cfg record.Record) (string, error) {
	v := w.view(cfg)
	v.Eager = true
	return execute(websiteMarkup, "preview", view{Theme: themeFrom(cfg), Data: v})
}

func (w Website) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	v := w.view(cfg)
	data := cfg.Clone()
	data["frame_url"] = v.URL
	return bundleParts(objectID, websiteMarkup, view{Theme: themeFrom(cfg), Data: v}, 960, websiteCSS, websiteProgram, data)
}

func (Website) view(cfg record.Record) websiteView {
	v := websiteView{
		Title:     cfg.String("title"),
		OpenLabel: cfg.String("open_label"),
		Height:    cfg.Int("height", 480),
	}
	if v.Height < 120 || v.Height > 2000 {
		v.Height = 480
	}
	// Only http(s) pages can be framed.
	if u := strings.TrimSpace(cfg.String("url")); u != "" {
		if s := withScheme(u); strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
			v.URL = s
		}
	}
	return v
}
