package widgetstore

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/config"
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// maxBodyBytes caps a PUT body; bundles carry inline markup and style.
const maxBodyBytes = 8 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// PutRequest is the body of PUT /api/widgets/{object}.
type PutRequest struct {
	TemplateID string        `json:"template_id" validate:"required,max=64"`
	Config     record.Record `json:"config" validate:"required"`
	Bundle     emit.Bundle   `json:"bundle"`
}

// RegisterRoutes mounts the widget API under /api/widgets and the standalone
// documents under /widgets/{object}.html. Writes need an admin or editor
// token and are rate limited per client IP.
func RegisterRoutes(r chi.Router, svc *Service, jwtm *auth.JWTManager, limit config.RateLimitConfig) {
	r.Route("/api/widgets", func(r chi.Router) {
		r.Get("/", handleList(svc.Store()))
		r.Get("/{object}", handleGet(svc.Store()))
		r.Get("/{object}/revisions", handleRevisions(svc.Store()))

		r.Group(func(r chi.Router) {
			if limit.Requests > 0 && limit.Window > 0 {
				r.Use(httprate.LimitByIP(limit.Requests, limit.Window))
			}
			r.Use(jwtm.Authenticate)
			r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleEditor))
			r.Put("/{object}", handlePut(svc))
			r.Delete("/{object}", handleDelete(svc))
		})
	})
	r.Get("/widgets/{file}", handleDocument(svc.Store()))
}

func objectParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{TemplateID: q.Get("template")}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		widgets, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if widgets == nil {
			widgets = []Widget{}
		}
		writeJSON(w, http.StatusOK, widgets)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		widget, err := store.Get(r.Context(), objectParam(r, "object"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, widget)
	}
}

func handleRevisions(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		revs, err := store.Revisions(r.Context(), objectParam(r, "object"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if revs == nil {
			revs = []Revision{}
		}
		writeJSON(w, http.StatusOK, revs)
	}
}

func handlePut(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		object := objectParam(r, "object")

		var req PutRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "template_id and config are required", http.StatusBadRequest)
			return
		}

		claims, _ := auth.ClaimsFromContext(r.Context())
		result, err := svc.Save(r.Context(), claims.Username, SaveInput{
			Object:     object,
			TemplateID: req.TemplateID,
			Config:     req.Config,
			Bundle:     req.Bundle,
		})
		var invalid *InvalidError
		if errors.As(err, &invalid) {
			http.Error(w, invalid.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, result)
	}
}

func handleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())
		err := svc.Delete(r.Context(), claims.Username, objectParam(r, "object"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDocument serves the bundle as one HTML fragment for the 3D runtime.
func handleDocument(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := objectParam(r, "file")
		object, ok := strings.CutSuffix(file, ".html")
		if !ok || object == "" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		widget, err := store.Get(r.Context(), object)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"`+widget.BundleHash+`"`)
		if match := r.Header.Get("If-None-Match"); match == `"`+widget.BundleHash+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(widget.Bundle.Document()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
