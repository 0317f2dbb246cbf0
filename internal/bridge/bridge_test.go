package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/config"
	"github.com/ziadkadry99/popup-studio/internal/db"
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
	"github.com/ziadkadry99/popup-studio/internal/widgets"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

func contactRequest(t *testing.T, object string) SaveRequest {
	t.Helper()
	tmpl := widgets.Contact{}
	cfg := tmpl.DefaultConfig()
	cfg["name"] = "Ada"
	b, err := catalog.RenderBundle("contact", tmpl, object, cfg)
	if err != nil {
		t.Fatalf("RenderBundle: %v", err)
	}
	return SaveRequest{TargetObject: object, TemplateID: "contact", Config: cfg, Bundle: b, Credential: "tok"}
}

func testBreaker() config.BreakerConfig {
	return config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2}
}

func TestHTTPSaveSendsOneRequest(t *testing.T) {
	var calls atomic.Int32
	var got widgetstore.PutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPut || r.URL.Path != "/api/widgets/c1_obj" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL+"/", time.Second, testBreaker())
	req := contactRequest(t, "c1_obj")
	if err := h.Save(context.Background(), req); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1", calls.Load())
	}
	if got.TemplateID != "contact" || got.Bundle.Hash() != req.Bundle.Hash() {
		t.Errorf("payload = %+v", got)
	}
}

func TestHTTPSaveRejectsMismatchBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	req := contactRequest(t, "other_obj")
	req.TargetObject = "c1_obj"

	err := NewHTTP(srv.URL, time.Second, testBreaker()).Save(context.Background(), req)
	if !errors.Is(err, emit.ErrObjectMismatch) {
		t.Fatalf("err = %v, want ErrObjectMismatch", err)
	}
	if calls.Load() != 0 {
		t.Errorf("mismatched bundle reached the network")
	}
}

func TestHTTPSaveErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		unauthorized bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"forbidden", http.StatusForbidden, true},
		{"rejected", http.StatusUnprocessableEntity, false},
		{"server", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "store says no", tt.status)
			}))
			defer srv.Close()

			err := NewHTTP(srv.URL, time.Second, testBreaker()).Save(context.Background(), contactRequest(t, "c1_obj"))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrUnauthorized) != tt.unauthorized {
				t.Errorf("ErrUnauthorized = %v for %v", !tt.unauthorized, err)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.status || se.Message != "store says no" {
				t.Errorf("status error = %+v", se)
			}
		})
	}
}

func TestHTTPBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, time.Second, testBreaker())
	for i := 0; i < 3; i++ {
		h.Save(context.Background(), contactRequest(t, "c1_obj"))
	}
	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2 before the breaker opens", calls.Load())
	}
}

func TestHTTPLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/widgets/c1_obj":
			json.NewEncoder(w).Encode(widgetstore.Widget{
				Object:     "c1_obj",
				TemplateID: "contact",
				Config:     record.Record{"name": "Ada", "contacts": []any{map[string]any{"type": "email"}}},
				Revision:   3,
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, time.Second, testBreaker())

	res, err := h.Load(context.Background(), "c1_obj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !res.Exists || res.TemplateID != "contact" || res.Config.String("name") != "Ada" {
		t.Errorf("result = %+v", res)
	}
	if items := res.Config.List("contacts"); len(items) != 1 || items[0].String("type") != "email" {
		t.Errorf("contacts = %+v", items)
	}

	res, err = h.Load(context.Background(), "missing")
	if err != nil || res.Exists {
		t.Errorf("missing widget = %+v, %v", res, err)
	}
}

func setupLocal(t *testing.T) (*Local, *auth.JWTManager, *widgetstore.Store) {
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
	jwtm, err := auth.NewJWTManager("bridge-test-secret-0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	store := widgetstore.NewStore(database)
	svc := widgetstore.NewService(store, audit.NewStore(database), nil, reg)
	return NewLocal(svc, jwtm), jwtm, store
}

func TestLocalSaveAndLoad(t *testing.T) {
	l, jwtm, store := setupLocal(t)
	ctx := context.Background()

	tok, _, _ := jwtm.GenerateToken("alice", auth.RoleEditor)
	req := contactRequest(t, "c1_obj")
	req.Credential = tok
	if err := l.Save(ctx, req); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w, err := store.Get(ctx, "c1_obj")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if w.UpdatedBy != "alice" {
		t.Errorf("UpdatedBy = %q", w.UpdatedBy)
	}

	res, err := l.Load(ctx, "c1_obj")
	if err != nil || !res.Exists || res.Config.String("name") != "Ada" {
		t.Errorf("Load = %+v, %v", res, err)
	}
	res, err = l.Load(ctx, "nothing")
	if err != nil || res.Exists {
		t.Errorf("Load missing = %+v, %v", res, err)
	}
}

func TestLocalSaveRejectsCredentials(t *testing.T) {
	l, jwtm, store := setupLocal(t)
	viewer, _, _ := jwtm.GenerateToken("victor", auth.RoleViewer)

	for _, cred := range []string{"", "garbage", viewer} {
		req := contactRequest(t, "c1_obj")
		req.Credential = cred
		if err := l.Save(context.Background(), req); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("credential %q: err = %v, want ErrUnauthorized", cred, err)
		}
	}
	if _, err := store.Get(context.Background(), "c1_obj"); !errors.Is(err, widgetstore.ErrNotFound) {
		t.Error("rejected save persisted")
	}
}
