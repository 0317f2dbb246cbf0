// Package audit records who changed which widget and when.
package audit

import "time"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionWidgetCreated Action = "widget_created"
	ActionWidgetUpdated Action = "widget_updated"
	ActionWidgetDeleted Action = "widget_deleted"
	ActionUserCreated   Action = "user_created"
	ActionTokenIssued   Action = "token_issued"
)

// Entry is a single audit trail record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActorType     ActorType `json:"actor_type"`
	ActorID       string    `json:"actor_id"`
	Action        Action    `json:"action"`
	Object        string    `json:"object,omitempty"`
	Summary       string    `json:"summary"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
}
