package catalog

import (
	"fmt"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// RenderBundle calls t.RenderBundle, converting a panic into a *RenderError.
func RenderBundle(id string, t Template, objectID string, cfg record.Record) (b emit.Bundle, err error) {
	defer recoverRender(id, "bundle", &err)
	b, err = t.RenderBundle(objectID, cfg)
	if err != nil {
		return emit.Bundle{}, &RenderError{TemplateID: id, Stage: "bundle", Err: err}
	}
	b.ObjectID = objectID
	b.TemplateID = id
	return b, nil
}

// RenderPreview returns t's live preview. Templates without a PreviewRenderer
// are previewed by running their bundle inside a sandboxed frame, so the two
// paths cannot drift apart.
func RenderPreview(id string, t Template, cfg record.Record) (out string, err error) {
	defer recoverRender(id, "preview", &err)

	if p, ok := t.(PreviewRenderer); ok {
		out, err = p.RenderPreview(cfg)
		if err != nil {
			return "", &RenderError{TemplateID: id, Stage: "preview", Err: err}
		}
		return out, nil
	}

	const previewObject = "__preview__"
	b, err := t.RenderBundle(previewObject, cfg)
	if err != nil {
		return "", &RenderError{TemplateID: id, Stage: "preview", Err: err}
	}
	doc := b.Document() + "<script>window." + emit.Namespace + "[" + emit.JSString(previewObject) + "].show();</script>"
	return `<iframe class="popup-preview-frame" sandbox="allow-scripts" srcdoc="` + emit.EscapeHTML(doc) + `"></iframe>`, nil
}

// RenderForm returns t's parameter form, or "" with ok=false when t has none.
func RenderForm(id string, t Template, cfg record.Record) (out string, ok bool, err error) {
	f, ok := t.(FormRenderer)
	if !ok {
		return "", false, nil
	}
	defer recoverRender(id, "form", &err)
	out, err = f.RenderFormFields(cfg)
	if err != nil {
		return "", true, &RenderError{TemplateID: id, Stage: "form", Err: err}
	}
	return out, true, nil
}

func recoverRender(id, stage string, err *error) {
	if r := recover(); r != nil {
		*err = &RenderError{TemplateID: id, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
	}
}
