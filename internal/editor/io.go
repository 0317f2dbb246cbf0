package editor

import (
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// PreviewFormat selects the aspect class the preview is framed in.
type PreviewFormat string

const (
	FormatAuto      PreviewFormat = "auto"
	FormatSquare    PreviewFormat = "square"
	FormatPortrait  PreviewFormat = "portrait"
	FormatLandscape PreviewFormat = "landscape"
	FormatWide      PreviewFormat = "wide"
)

// PreviewFormats lists every accepted format.
func PreviewFormats() []PreviewFormat {
	return []PreviewFormat{FormatAuto, FormatSquare, FormatPortrait, FormatLandscape, FormatWide}
}

func (f PreviewFormat) valid() bool {
	for _, v := range PreviewFormats() {
		if f == v {
			return true
		}
	}
	return false
}

// Preview is one rendered preview refresh.
type Preview struct {
	Format PreviewFormat `json:"format"`
	HTML   string        `json:"html"`
}

// Sink receives everything the session renders. Calls are made without the
// session lock held, from whichever goroutine triggered the refresh.
type Sink interface {
	ShowForm(html string)
	ShowPreview(p Preview)
}

type discardSink struct{}

func (discardSink) ShowForm(string)     {}
func (discardSink) ShowPreview(Preview) {}

// CredentialSource supplies the bearer credential presented on save.
type CredentialSource interface {
	Credential() (string, bool)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() (string, bool)

// Credential implements CredentialSource.
func (f CredentialFunc) Credential() (string, bool) { return f() }

// StaticCredential is a fixed credential; empty means none.
type StaticCredential string

// Credential implements CredentialSource.
func (c StaticCredential) Credential() (string, bool) { return string(c), c != "" }

// SavedEvent is raised after the bridge accepted a save, so open viewers of
// the object can swap in the new bundle.
type SavedEvent struct {
	TargetObject string        `json:"target_object"`
	TemplateID   string        `json:"template_id"`
	Config       record.Record `json:"config"`
	Bundle       emit.Bundle   `json:"bundle"`
	// Update is true when the object already had persisted content.
	Update bool `json:"update"`
}

// State is the session lifecycle state.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
	StateSaving State = "saving"
)

// Snapshot is a copy of the session's observable state.
type Snapshot struct {
	State          State         `json:"state"`
	TargetObject   string        `json:"target_object,omitempty"`
	TemplateID     string        `json:"template_id,omitempty"`
	Config         record.Record `json:"config,omitempty"`
	Previous       record.Record `json:"previous,omitempty"`
	Format         PreviewFormat `json:"format"`
	PreviewPending bool          `json:"preview_pending"`
}
