// Package studio serves the browser editor: an embedded page plus a
// websocket that drives one editing session per connection.
package studio

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/popup-studio/internal/bridge"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/editor"
)

//go:embed index.html
var indexHTML []byte

// Studio provides the editor page and its websocket.
type Studio struct {
	reg      *catalog.Registry
	bridge   bridge.Bridge
	debounce time.Duration
	// newScheduler lets tests replace the debounce clock.
	newScheduler func() editor.Scheduler
}

// New creates a Studio whose sessions save through b.
func New(reg *catalog.Registry, b bridge.Bridge, debounce time.Duration) *Studio {
	return &Studio{
		reg:          reg,
		bridge:       b,
		debounce:     debounce,
		newScheduler: func() editor.Scheduler { return editor.SystemScheduler{} },
	}
}

// RegisterRoutes mounts the editor page and websocket onto r.
func (s *Studio) RegisterRoutes(r chi.Router) {
	r.Get("/", s.ServeIndex)
	r.Get("/api/studio/formats", s.handleFormats)
	r.Get("/ws/editor", s.handleWebSocket)
}

// ServeIndex serves the embedded editor page.
func (s *Studio) ServeIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Studio) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, editor.PreviewFormats())
}
