package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/popup-studio/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriberBuffer bounds how far a slow viewer may lag before
// notifications to it are dropped.
const subscriberBuffer = 16

// Hub fans notifications out to viewers watching a single object.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Notification]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Notification]struct{})}
}

// Subscribe registers interest in object. The returned cancel func must be
// called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(object string) (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)

	h.mu.Lock()
	if h.subs[object] == nil {
		h.subs[object] = make(map[chan Notification]struct{})
	}
	h.subs[object][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[object], ch)
			if len(h.subs[object]) == 0 {
				delete(h.subs, object)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers n to every subscriber of n.Object without blocking.
// It reports how many subscribers received it.
func (h *Hub) Publish(n Notification) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for ch := range h.subs[n.Object] {
		select {
		case ch <- n:
			sent++
		default:
			logging.Warn().Str("object", n.Object).Msg("viewer lagging, notification dropped")
		}
	}
	return sent
}

// Subscribers returns the number of viewers watching object.
func (h *Hub) Subscribers(object string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[object])
}

// handleWatch streams notifications for one object over a websocket until
// the client goes away.
func (h *Hub) handleWatch(w http.ResponseWriter, r *http.Request) {
	object := chi.URLParam(r, "object")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("notifications: websocket upgrade")
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe(object)
	defer cancel()

	// Reads only detect the close; viewers never send anything.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logging.Debug().Err(err).Str("object", object).Msg("notifications: websocket read")
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(n); err != nil {
				logging.Debug().Err(err).Str("object", object).Msg("notifications: websocket write")
				return
			}
		}
	}
}
