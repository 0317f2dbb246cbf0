package studio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/popup-studio/internal/bridge"
	"github.com/ziadkadry99/popup-studio/internal/widgets"
)

type memoryBridge struct {
	mu    sync.Mutex
	saved map[string]bridge.SaveRequest
}

func (b *memoryBridge) Save(_ context.Context, req bridge.SaveRequest) error {
	if req.Credential != "good" {
		return bridge.ErrUnauthorized
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved[req.TargetObject] = req
	return nil
}

func (b *memoryBridge) Load(_ context.Context, target string) (bridge.LoadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.saved[target]
	if !ok {
		return bridge.LoadResult{}, nil
	}
	return bridge.LoadResult{Exists: true, TemplateID: req.TemplateID, Config: req.Config.Clone()}, nil
}

func setupServer(t *testing.T) (*httptest.Server, *memoryBridge) {
	t.Helper()
	reg, err := widgets.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	mb := &memoryBridge{saved: make(map[string]bridge.SaveRequest)}
	s := New(reg, mb, time.Millisecond)

	r := chi.NewRouter()
	s.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mb
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/editor" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil returns the first message of type want, skipping others.
func readUntil(t *testing.T, ws *websocket.Conn, want string) response {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var resp response
		if err := ws.ReadJSON(&resp); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if resp.Type == want {
			return resp
		}
	}
}

func write(t *testing.T, ws *websocket.Conn, req request) {
	t.Helper()
	if err := ws.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestServeIndex(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "/ws/editor") {
		t.Error("page does not connect to the editor socket")
	}
}

func TestFormats(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/studio/formats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var formats []string
	if err := json.NewDecoder(resp.Body).Decode(&formats); err != nil {
		t.Fatal(err)
	}
	if len(formats) != 5 || formats[0] != "auto" {
		t.Errorf("formats = %v", formats)
	}
}

func TestEditAndSave(t *testing.T) {
	srv, mb := setupServer(t)
	ws := dial(t, srv, "?token=good")

	if st := readUntil(t, ws, "state"); st.State.State != "closed" {
		t.Fatalf("initial state = %s", st.State.State)
	}

	write(t, ws, request{Type: "open", Object: "c1_obj"})
	if st := readUntil(t, ws, "state"); st.State.State != "open" || st.State.TargetObject != "c1_obj" {
		t.Fatalf("state after open = %+v", st.State)
	}

	write(t, ws, request{Type: "select", Template: "contact"})
	if form := readUntil(t, ws, "form"); !strings.Contains(form.HTML, `data-path="name"`) {
		t.Errorf("form = %s", form.HTML)
	}
	readUntil(t, ws, "state")

	write(t, ws, request{Type: "update", Path: "name", Value: "Jean Dupont"})
	if p := readUntil(t, ws, "preview"); !strings.Contains(p.HTML, "Jean Dupont") {
		t.Errorf("preview = %s", p.HTML)
	}

	write(t, ws, request{Type: "add_item", List: "contacts"})
	added := readUntil(t, ws, "item_added")
	if added.Index == nil || *added.Index != 0 {
		t.Fatalf("item_added = %+v", added)
	}
	readUntil(t, ws, "state")

	write(t, ws, request{Type: "update", Path: "contacts[0].value", Value: "j@x.com"})
	write(t, ws, request{Type: "save"})
	saved := readUntil(t, ws, "saved")
	if saved.Saved.Object != "c1_obj" || saved.Saved.Update || len(saved.Saved.Hash) != 64 {
		t.Errorf("saved = %+v", saved.Saved)
	}
	if st := readUntil(t, ws, "state"); st.State.State != "closed" {
		t.Errorf("state after save = %s", st.State.State)
	}

	mb.mu.Lock()
	req, ok := mb.saved["c1_obj"]
	mb.mu.Unlock()
	if !ok {
		t.Fatal("nothing saved")
	}
	if n := strings.Count(req.Bundle.Behavior, "j@x.com"); n != 1 {
		t.Errorf("behavior mentions the address %d times", n)
	}

	// Reopening loads the saved content.
	write(t, ws, request{Type: "open", Object: "c1_obj"})
	st := readUntil(t, ws, "state")
	if st.State.TemplateID != "contact" || st.State.Config.String("name") != "Jean Dupont" {
		t.Errorf("reopened state = %+v", st.State)
	}
}

func TestSocketErrors(t *testing.T) {
	srv, _ := setupServer(t)
	ws := dial(t, srv, "")
	readUntil(t, ws, "state")

	tests := []struct {
		name string
		req  request
		kind string
	}{
		{"select while closed", request{Type: "select", Template: "contact"}, "invalid_state"},
		{"unknown type", request{Type: "dance"}, "request"},
		{"blank object", request{Type: "open", Object: " "}, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write(t, ws, tt.req)
			if e := readUntil(t, ws, "error"); e.Kind != tt.kind {
				t.Errorf("kind = %q, want %q (%s)", e.Kind, tt.kind, e.Message)
			}
		})
	}

	write(t, ws, request{Type: "open", Object: "Sofa"})
	readUntil(t, ws, "state")
	write(t, ws, request{Type: "select", Template: "nope"})
	if e := readUntil(t, ws, "error"); e.Kind != "not_found" {
		t.Errorf("kind = %q, want not_found", e.Kind)
	}

	write(t, ws, request{Type: "select", Template: "contact"})
	readUntil(t, ws, "state")
	write(t, ws, request{Type: "update", Path: "name", Value: "Jean"})

	// No credential yet.
	write(t, ws, request{Type: "save"})
	if e := readUntil(t, ws, "error"); e.Kind != "authentication" {
		t.Errorf("kind = %q, want authentication", e.Kind)
	}

	// A rejected credential.
	write(t, ws, request{Type: "auth", Token: "bad"})
	readUntil(t, ws, "auth")
	write(t, ws, request{Type: "save"})
	if e := readUntil(t, ws, "error"); e.Kind != "authentication" {
		t.Errorf("kind = %q, want authentication", e.Kind)
	}
	if st := readUntil(t, ws, "state"); st.State.State != "open" || st.State.Config.String("name") != "Jean" {
		t.Errorf("state after failed save = %+v", st.State)
	}

	write(t, ws, request{Type: "auth", Token: "good"})
	readUntil(t, ws, "auth")
	write(t, ws, request{Type: "save"})
	readUntil(t, ws, "saved")
}

func TestInvalidMessage(t *testing.T) {
	srv, _ := setupServer(t)
	ws := dial(t, srv, "")
	readUntil(t, ws, "state")

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatal(err)
	}
	if e := readUntil(t, ws, "error"); e.Message != "invalid message format" {
		t.Errorf("message = %q", e.Message)
	}
}
