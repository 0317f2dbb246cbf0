// Package bridge connects the editor to the store that persists widgets.
package bridge

import (
	"context"
	"errors"

	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// ErrUnauthorized is returned when the store rejects the credential.
var ErrUnauthorized = errors.New("credential rejected by widget store")

// SaveRequest is everything the store needs to persist one widget.
type SaveRequest struct {
	TargetObject string        `json:"target_object"`
	TemplateID   string        `json:"template_id"`
	Config       record.Record `json:"config"`
	Bundle       emit.Bundle   `json:"bundle"`
	Credential   string        `json:"-"`
}

// LoadResult is the persisted state of one scene object.
type LoadResult struct {
	Exists     bool          `json:"exists"`
	TemplateID string        `json:"template_id,omitempty"`
	Config     record.Record `json:"config,omitempty"`
}

// Bridge persists and loads widgets. Implementations own transport and
// timeouts; callers only see success or an error carrying the store's message.
type Bridge interface {
	Save(ctx context.Context, req SaveRequest) error
	Load(ctx context.Context, target string) (LoadResult, error)
}
