package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/popup-studio/internal/record"
)

// maxConfigBytes caps the body of a preview request.
const maxConfigBytes = 1 << 20

// Detail is the response of GET /api/templates/{id}.
type Detail struct {
	Entry
	DefaultConfig  record.Record `json:"default_config"`
	RequiredFields []string      `json:"required_fields"`
}

// PreviewResponse is the response of POST /api/templates/{id}/preview.
type PreviewResponse struct {
	HTML string `json:"html"`
	Form string `json:"form,omitempty"`
}

// RegisterRoutes mounts the read-only template catalog under /api/templates.
func RegisterRoutes(r chi.Router, reg *Registry) {
	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", handleList(reg))
		r.Get("/{id}", handleGet(reg))
		r.Post("/{id}/preview", handlePreview(reg))
	})
}

func handleList(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Search(r.URL.Query().Get("q")))
	}
}

func handleGet(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		t, ok := reg.Get(id)
		if !ok {
			http.Error(w, ErrTemplateNotFound.Error()+": "+id, http.StatusNotFound)
			return
		}
		d := Detail{Entry: entryFor(id, t), DefaultConfig: t.DefaultConfig(), RequiredFields: []string{}}
		if rf, ok := t.(RequiredFielder); ok {
			d.RequiredFields = append(d.RequiredFields, rf.RequiredFields()...)
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// handlePreview renders the preview and form for the posted configuration,
// laid over the template defaults. An empty body previews the defaults.
func handlePreview(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		t, ok := reg.Get(id)
		if !ok {
			http.Error(w, ErrTemplateNotFound.Error()+": "+id, http.StatusNotFound)
			return
		}

		var cfg record.Record
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBytes))
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if len(data) > 0 {
			if cfg, err = record.Decode(data); err != nil {
				http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		cfg = record.Merge(t.DefaultConfig(), cfg)

		html, err := RenderPreview(id, t, cfg)
		if err != nil {
			var re *RenderError
			if errors.As(err, &re) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		form, _, err := RenderForm(id, t, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, http.StatusOK, PreviewResponse{HTML: html, Form: form})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
