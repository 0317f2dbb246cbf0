package widgets

import (
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Freeform renders administrator-written HTML and CSS. Both payloads travel
// through the bundle as opaque base64 tokens and are decoded when the popup
// is first built, so no escaping is applied to them at all.
//
// Freeform has no preview renderer of its own; the editor previews it by
// running the bundle in a sandboxed frame.
type Freeform struct{}

var freeformForm = formSpec{
	Fields: append([]field{
		{Key: "title", Label: "Title (for listings)", Kind: kindText},
		{Key: "html", Label: "HTML", Kind: kindTextarea, Placeholder: "<h2>Hello</h2>"},
		{Key: "css", Label: "CSS", Kind: kindTextarea},
		{Key: "max_width", Label: "Max width (px)", Kind: kindNumber},
	}, themeFields...),
}

var freeformMarkup = markupSet("freeform", `{{define "card"}}<div class="popup-freeform" data-freeform-body></div>{{end}}`)

const freeformProgram emit.Program = `function decode(token) {
      if (!token) return "";
      var bin = atob(token), bytes = new Uint8Array(bin.length);
      for (var i = 0; i < bin.length; i++) bytes[i] = bin.charCodeAt(i);
      return new TextDecoder().decode(bytes);
    }
    return {
      build: function (root) {
        var body = root.querySelector("[data-freeform-body]");
        if (!body) return;
        var style = document.createElement("style");
        style.textContent = decode(config.css_token);
        body.parentNode.insertBefore(style, body);
        body.innerHTML = decode(config.html_token);
      }
    };`

func (Freeform) Name() string        { return "Free-form HTML" }
func (Freeform) Icon() string        { return "🧩" }
func (Freeform) Description() string { return "Custom HTML and CSS content" }

func (Freeform) DefaultConfig() record.Record {
	cfg := record.Record{
		"title":     "",
		"html":      "",
		"css":       "",
		"max_width": 600,
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Freeform) RequiredFields() []string { return []string{"html"} }

func (Freeform) RenderFormFields(cfg record.Record) (string, error) { return freeformForm.render(cfg) }

func (Freeform) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	width := cfg.Int("max_width", 600)
	if width < 200 || width > 1600 {
		width = 600
	}
	data := record.Record{
		"title":      cfg.String("title"),
		"html_token": emit.EncodeToken(cfg.String("html")),
		"css_token":  emit.EncodeToken(cfg.String("css")),
		"max_width":  width,
	}
	return bundleParts(objectID, freeformMarkup, view{Theme: themeFrom(cfg)}, width, "", freeformProgram, data)
}
