// Package notifications tells viewers and subscribers that a widget changed.
package notifications

import "time"

// Type categorises the change that triggered the notification.
type Type string

const (
	TypeContentSaved   Type = "content_saved"
	TypeContentDeleted Type = "content_deleted"
)

// Notification is a single change notification record.
type Notification struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Object     string    `json:"object"`
	TemplateID string    `json:"template_id,omitempty"`
	Revision   int       `json:"revision"`
	BundleHash string    `json:"bundle_hash,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Delivered  bool      `json:"delivered"`
	CreatedAt  time.Time `json:"created_at"`
}

// Webhook is a subscriber URL notified about objects matching ObjectPattern,
// a doublestar glob such as "lobby_*" or "**".
type Webhook struct {
	ID            string    `json:"id"`
	URL           string    `json:"url" validate:"required,http_url"`
	ObjectPattern string    `json:"object_pattern"`
	CreatedAt     time.Time `json:"created_at"`
}
