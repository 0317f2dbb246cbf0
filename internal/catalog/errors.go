package catalog

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned when a template id is not registered.
// Callers treat it as an ordinary empty result.
var ErrTemplateNotFound = errors.New("template not found")

// RegistrationError reports a rejected Register call.
type RegistrationError struct {
	ID     string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering template %q: %s", e.ID, e.Reason)
}

// RenderError wraps a failure (returned error or panic) inside a template's
// emit function.
type RenderError struct {
	TemplateID string
	Stage      string // "preview", "form" or "bundle"
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s for template %q: %v", e.Stage, e.TemplateID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
