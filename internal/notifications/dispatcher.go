package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/popup-studio/internal/logging"
)

// Dispatcher records notifications, pushes them to live viewers and delivers
// them to matching webhook subscribers.
type Dispatcher struct {
	store  *Store
	hub    *Hub
	client *http.Client
}

// NewDispatcher creates a Dispatcher. hub may be nil when no viewers are served.
func NewDispatcher(store *Store, hub *Hub) *Dispatcher {
	return &Dispatcher{
		store: store,
		hub:   hub,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Dispatch persists n, publishes it to viewers of n.Object and posts it to
// every webhook whose pattern matches the object. The notification is
// marked delivered once every matching webhook accepted it.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (Notification, error) {
	n, err := d.store.Create(ctx, n)
	if err != nil {
		return n, fmt.Errorf("creating notification: %w", err)
	}

	if d.hub != nil {
		d.hub.Publish(n)
	}

	hooks, err := d.store.ListWebhooks(ctx)
	if err != nil {
		return n, err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return n, fmt.Errorf("encoding notification: %w", err)
	}

	failed := 0
	for _, hook := range hooks {
		if !Matches(hook.ObjectPattern, n.Object) {
			continue
		}
		if err := d.SendWebhook(ctx, hook.URL, payload); err != nil {
			failed++
			logging.Warn().Err(err).Str("webhook", hook.ID).Str("object", n.Object).Msg("webhook delivery failed")
		}
	}

	if failed == 0 {
		if err := d.store.MarkDelivered(ctx, n.ID); err != nil {
			return n, err
		}
		n.Delivered = true
	}
	return n, nil
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Matches reports whether object matches a webhook pattern. Malformed
// patterns match nothing.
func Matches(pattern, object string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, object)
	return err == nil && ok
}
