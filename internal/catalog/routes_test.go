package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type requiredStub struct{ formStub }

func (requiredStub) RequiredFields() []string { return []string{"title"} }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := NewRegistry()
	for id, tmpl := range map[string]Template{
		"contact": requiredStub{formStub{stubTemplate{name: "Contact card", desc: "Business card"}}},
		"video":   stubTemplate{name: "Video", desc: "Embedded video player"},
		"broken":  stubTemplate{name: "Broken", explode: true},
	} {
		if err := reg.Register(id, tmpl); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
	reg.Lock()
	r := chi.NewRouter()
	RegisterRoutes(r, reg)
	return r
}

func TestTemplateListAndSearch(t *testing.T) {
	h := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var all []Entry
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "broken" || all[1].ID != "contact" {
		t.Errorf("list = %+v", all)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates?q=vid", nil))
	var found []Entry
	if err := json.NewDecoder(rec.Body).Decode(&found); err != nil {
		t.Fatal(err)
	}
	if len(found) == 0 || found[0].ID != "video" {
		t.Errorf("search = %+v", found)
	}
}

func TestTemplateDetail(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		path     string
		status   int
		required []string
	}{
		{"/api/templates/contact", http.StatusOK, []string{"title"}},
		{"/api/templates/video", http.StatusOK, []string{}},
		{"/api/templates/nope", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var d Detail
			if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
				t.Fatal(err)
			}
			if d.DefaultConfig.String("title") != "hello" {
				t.Errorf("default config = %v", d.DefaultConfig)
			}
			if len(d.RequiredFields) != len(tt.required) {
				t.Errorf("required = %v, want %v", d.RequiredFields, tt.required)
			}
		})
	}
}

func TestTemplatePreview(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   string
	}{
		{"custom preview with form", "/api/templates/contact/preview", `{"title":"x"}`, http.StatusOK, "preview"},
		{"bundle preview escapes config", "/api/templates/video/preview", `{"title":"<b>hi</b>"}`, http.StatusOK, "&amp;lt;b&amp;gt;hi"},
		{"defaults when body empty", "/api/templates/video/preview", "", http.StatusOK, "hello"},
		{"invalid json", "/api/templates/video/preview", `{`, http.StatusBadRequest, ""},
		{"render panic", "/api/templates/broken/preview", "", http.StatusUnprocessableEntity, ""},
		{"unknown template", "/api/templates/nope/preview", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.want == "" {
				return
			}
			var resp PreviewResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(resp.HTML, tt.want) {
				t.Errorf("html = %s, want substring %q", resp.HTML, tt.want)
			}
		})
	}
}
