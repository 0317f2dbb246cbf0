package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/popup-studio/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:            "test-1",
		ActorType:     ActorUser,
		ActorID:       "alice",
		Action:        ActionWidgetUpdated,
		Object:        "c1_obj",
		Summary:       "Updated contact card",
		PreviousValue: `{"name":"Old"}`,
		NewValue:      `{"name":"New"}`,
	}
	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ActorID != "alice" || got.Object != "c1_obj" {
		t.Errorf("got actor %q object %q", got.ActorID, got.Object)
	}
	if got.Action != ActionWidgetUpdated {
		t.Errorf("Action = %q, want %q", got.Action, ActionWidgetUpdated)
	}
	if got.PreviousValue != entry.PreviousValue || got.NewValue != entry.NewValue {
		t.Errorf("values = %q / %q", got.PreviousValue, got.NewValue)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestLogGeneratesUUID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{
		ActorType: ActorSystem,
		ActorID:   "export",
		Action:    ActionWidgetCreated,
		Object:    "lobby_sign",
	}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{ActorID: "export"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID, got empty string")
	}
	if entries[0].PreviousValue != "" {
		t.Errorf("empty previous value stored as %q", entries[0].PreviousValue)
	}
}

func TestLogRejectsUnknownActorType(t *testing.T) {
	store := setupStore(t)
	err := store.Log(context.Background(), Entry{ActorType: "bot", ActorID: "x", Action: ActionWidgetCreated})
	if err == nil {
		t.Fatal("expected constraint violation for unknown actor type")
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seed := []Entry{
		{ActorID: "alice", Action: ActionWidgetCreated, Object: "a_obj"},
		{ActorID: "bob", Action: ActionWidgetUpdated, Object: "a_obj"},
		{ActorID: "alice", Action: ActionWidgetUpdated, Object: "b_obj"},
		{ActorID: "alice", Action: ActionWidgetDeleted, Object: "b_obj"},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"actor", QueryFilter{ActorID: "alice"}, 3},
		{"object", QueryFilter{Object: "a_obj"}, 2},
		{"action", QueryFilter{Action: ActionWidgetUpdated}, 2},
		{"combined", QueryFilter{ActorID: "alice", Object: "b_obj", Action: ActionWidgetDeleted}, 1},
		{"no match", QueryFilter{ActorID: "carol"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestQueryNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if err := store.Log(ctx, Entry{ID: id, ActorID: "alice", Action: ActionWidgetUpdated}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 3 || entries[0].ID != "third" || entries[2].ID != "first" {
		t.Errorf("unexpected order: %+v", entries)
	}
}

func TestQueryLimitOffset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Log(ctx, Entry{ActorID: "alice", Action: ActionWidgetUpdated}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Limit: 2, Offset: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with offset, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Offset: 4})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry with bare offset, got %d", len(entries))
	}
}

func TestLogTxRollsBack(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := NewStore(database)
	ctx := context.Background()

	err = database.Tx(ctx, func(tx *sql.Tx) error {
		if err := store.LogTx(ctx, tx, Entry{ID: "tx-1", ActorID: "alice", Action: ActionWidgetCreated}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected Tx to return the callback error")
	}
	if _, err := store.GetByID(ctx, "tx-1"); err == nil {
		t.Error("entry survived a rolled back transaction")
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, Entry{ActorType: ActorSystem, ActorID: "system", Action: ActionWidgetUpdated}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing deleted for a past cutoff, got %d", deleted)
	}

	deleted, err = store.DeleteBefore(ctx, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)
	if _, err := store.GetByID(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent ID, got nil")
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)
	if err := store.Log(context.Background(), Entry{
		ID:      "http-1",
		ActorID: "alice",
		Action:  ActionWidgetCreated,
		Object:  "c1_obj",
		Summary: "Created contact card",
	}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/http-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" || got.Object != "c1_obj" {
		t.Errorf("got %+v", got)
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPQueryEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestHTTPQueryWithFilter(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, object := range []string{"a_obj", "b_obj", "a_obj"} {
		if err := store.Log(ctx, Entry{ActorID: "alice", Action: ActionWidgetUpdated, Object: object}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?object=a_obj&limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for a_obj, got %d", len(entries))
	}
}
