package widgetstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/config"
	"github.com/ziadkadry99/popup-studio/internal/db"
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/notifications"
	"github.com/ziadkadry99/popup-studio/internal/record"
	"github.com/ziadkadry99/popup-studio/internal/widgets"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (p *recordingPublisher) Dispatch(_ context.Context, n notifications.Notification) (notifications.Notification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return n, nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fixture struct {
	svc       *Service
	audit     *audit.Store
	publisher *recordingPublisher
	registry  *catalog.Registry
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	reg, err := widgets.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	pub := &recordingPublisher{}
	auditStore := audit.NewStore(database)
	return &fixture{
		svc:       NewService(NewStore(database), auditStore, pub, reg),
		audit:     auditStore,
		publisher: pub,
		registry:  reg,
	}
}

func (f *fixture) input(t *testing.T, object, templateID string, mutate func(record.Record)) SaveInput {
	t.Helper()
	tmpl, ok := f.registry.Get(templateID)
	if !ok {
		t.Fatalf("template %s not registered", templateID)
	}
	cfg := tmpl.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	b, err := catalog.RenderBundle(templateID, tmpl, object, cfg)
	if err != nil {
		t.Fatalf("RenderBundle: %v", err)
	}
	return SaveInput{Object: object, TemplateID: templateID, Config: cfg, Bundle: b}
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := f.input(t, "c1_obj", "contact", func(c record.Record) { c["name"] = "Ada" })
	res, err := f.svc.Save(ctx, "alice", in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !res.Created || res.Widget.Revision != 1 {
		t.Errorf("first save = %+v", res)
	}

	in = f.input(t, "c1_obj", "contact", func(c record.Record) { c["name"] = "Ada Lovelace" })
	res, err = f.svc.Save(ctx, "bob", in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Created || res.Widget.Revision != 2 {
		t.Errorf("second save = %+v", res)
	}

	got, err := f.svc.Store().Get(ctx, "c1_obj")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Config.String("name") != "Ada Lovelace" || got.CreatedBy != "alice" || got.UpdatedBy != "bob" {
		t.Errorf("stored = %+v", got)
	}
	if got.BundleHash != in.Bundle.Hash() || got.Bundle.Behavior != in.Bundle.Behavior {
		t.Error("stored bundle differs from submitted bundle")
	}

	revs, err := f.svc.Store().Revisions(ctx, "c1_obj")
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	if len(revs) != 2 || revs[0].Revision != 2 || revs[1].Config.String("name") != "Ada" {
		t.Errorf("revisions = %+v", revs)
	}

	entries, _ := f.audit.Query(ctx, audit.QueryFilter{Object: "c1_obj"})
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].Action != audit.ActionWidgetUpdated || !strings.Contains(entries[0].PreviousValue, `"Ada"`) {
		t.Errorf("latest audit entry = %+v", entries[0])
	}
	if f.publisher.count() != 2 {
		t.Errorf("notifications = %d, want 2", f.publisher.count())
	}
}

func TestSaveUnchangedIsNoop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := f.input(t, "c1_obj", "info", func(c record.Record) { c["title"] = "Hours" })
	if _, err := f.svc.Save(ctx, "alice", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	res, err := f.svc.Save(ctx, "alice", f.input(t, "c1_obj", "info", func(c record.Record) { c["title"] = "Hours" }))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !res.Unchanged || res.Widget.Revision != 1 {
		t.Errorf("repeat save = %+v", res)
	}
	if f.publisher.count() != 1 {
		t.Errorf("repeat save notified: %d", f.publisher.count())
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	f := setup(t)

	good := f.input(t, "c1_obj", "contact", nil)
	other := f.input(t, "other_obj", "contact", nil)

	tests := []struct {
		name string
		in   SaveInput
	}{
		{"no object", SaveInput{TemplateID: "contact", Config: good.Config, Bundle: good.Bundle}},
		{"no template", SaveInput{Object: "c1_obj", Config: good.Config, Bundle: good.Bundle}},
		{"no config", SaveInput{Object: "c1_obj", TemplateID: "contact", Bundle: good.Bundle}},
		{"unknown template", SaveInput{Object: "c1_obj", TemplateID: "nope", Config: good.Config, Bundle: emit.Bundle{TemplateID: "nope"}}},
		{"template mismatch", SaveInput{Object: "c1_obj", TemplateID: "info", Config: good.Config, Bundle: good.Bundle}},
		{"object mismatch", SaveInput{Object: "c1_obj", TemplateID: "contact", Config: good.Config, Bundle: other.Bundle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Save(context.Background(), "alice", tt.in)
			var invalid *InvalidError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want *InvalidError", err)
			}
		})
	}
	if f.publisher.count() != 0 {
		t.Error("rejected saves must not notify")
	}
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.Save(ctx, "alice", f.input(t, "c1_obj", "contact", nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := f.svc.Delete(ctx, "alice", "c1_obj"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Store().Get(ctx, "c1_obj"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if revs, _ := f.svc.Store().Revisions(ctx, "c1_obj"); len(revs) != 0 {
		t.Errorf("revisions survived delete: %d", len(revs))
	}
	if err := f.svc.Delete(ctx, "alice", "c1_obj"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}

	entries, _ := f.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionWidgetDeleted})
	if len(entries) != 1 {
		t.Errorf("delete audit entries = %d", len(entries))
	}
}

func TestListFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, s := range []struct{ object, template string }{
		{"b_obj", "contact"}, {"a_obj", "info"}, {"c_obj", "contact"},
	} {
		if _, err := f.svc.Save(ctx, "alice", f.input(t, s.object, s.template, nil)); err != nil {
			t.Fatalf("Save %s: %v", s.object, err)
		}
	}

	all, err := f.svc.Store().List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Object != "a_obj" {
		t.Errorf("List = %+v", all)
	}
	contacts, _ := f.svc.Store().List(ctx, ListFilter{TemplateID: "contact"})
	if len(contacts) != 2 {
		t.Errorf("contact widgets = %d", len(contacts))
	}
	page, _ := f.svc.Store().List(ctx, ListFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].Object != "b_obj" {
		t.Errorf("page = %+v", page)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *fixture, string, string) {
	t.Helper()
	f := setup(t)
	jwtm, err := auth.NewJWTManager("widgetstore-test-secret-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	editor, _, _ := jwtm.GenerateToken("alice", auth.RoleEditor)
	viewer, _, _ := jwtm.GenerateToken("victor", auth.RoleViewer)

	r := chi.NewRouter()
	RegisterRoutes(r, f.svc, jwtm, config.RateLimitConfig{})
	return r, f, editor, viewer
}

func putRequest(t *testing.T, object, token string, in SaveInput) *http.Request {
	t.Helper()
	body, err := json.Marshal(PutRequest{TemplateID: in.TemplateID, Config: in.Config, Bundle: in.Bundle})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPut, "/api/widgets/"+object, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHTTPPutAndGet(t *testing.T) {
	r, f, editor, _ := setupRouter(t)
	in := f.input(t, "c1_obj", "contact", func(c record.Record) { c["name"] = "Ada" })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, putRequest(t, "c1_obj", editor, in))
	if rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, putRequest(t, "c1_obj", editor, f.input(t, "c1_obj", "contact", func(c record.Record) { c["name"] = "Grace" })))
	if rec.Code != http.StatusOK {
		t.Fatalf("second PUT status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widgets/c1_obj", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got Widget
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Revision != 2 || got.Config.String("name") != "Grace" || got.UpdatedBy != "alice" {
		t.Errorf("got %+v", got)
	}
}

func TestHTTPPutAuthorization(t *testing.T) {
	r, f, _, viewer := setupRouter(t)
	in := f.input(t, "c1_obj", "contact", nil)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage", "nope", http.StatusUnauthorized},
		{"viewer", viewer, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, putRequest(t, "c1_obj", tt.token, in))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if _, err := f.svc.Store().Get(context.Background(), "c1_obj"); !errors.Is(err, ErrNotFound) {
		t.Error("unauthorized PUT persisted a widget")
	}
}

func TestHTTPPutRejectsMismatchedBundle(t *testing.T) {
	r, f, editor, _ := setupRouter(t)
	in := f.input(t, "other_obj", "contact", nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, putRequest(t, "c1_obj", editor, in))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHTTPGetMissing(t *testing.T) {
	r, _, _, _ := setupRouter(t)
	for _, path := range []string{"/api/widgets/missing", "/widgets/missing.html", "/widgets/c1_obj"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestHTTPDocument(t *testing.T) {
	r, f, _, _ := setupRouter(t)
	in := f.input(t, "Sofa.001", "info", func(c record.Record) { c["title"] = "Sofa" })
	if _, err := f.svc.Save(context.Background(), "alice", in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/Sofa.001.html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != in.Bundle.Document() {
		t.Error("served document differs from bundle")
	}

	req := httptest.NewRequest(http.MethodGet, "/widgets/Sofa.001.html", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", rec.Code)
	}
}

func TestHTTPDeleteAndRevisions(t *testing.T) {
	r, f, editor, _ := setupRouter(t)
	if _, err := f.svc.Save(context.Background(), "alice", f.input(t, "c1_obj", "contact", nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widgets/c1_obj/revisions", nil))
	var revs []Revision
	if err := json.NewDecoder(rec.Body).Decode(&revs); err != nil || len(revs) != 1 {
		t.Fatalf("revisions = %+v, err = %v", revs, err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/widgets/c1_obj", nil)
	req.Header.Set("Authorization", "Bearer "+editor)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/widgets/c1_obj", nil)
	req.Header.Set("Authorization", "Bearer "+editor)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d", rec.Code)
	}
}
