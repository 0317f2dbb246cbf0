// Package catalog defines the popup template contract and the registry that
// maps template identifiers to their implementations.
package catalog

import (
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Template is the contract every popup template implements. Implementations
// treat cfg as read-only input and must not depend on another template.
type Template interface {
	Name() string
	Icon() string
	Description() string
	// DefaultConfig returns a fresh record with a default for every field the
	// template's emitters read.
	DefaultConfig() record.Record
	// RenderBundle produces the standalone widget for the scene object objectID.
	RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error)
}

// PreviewRenderer is implemented by templates with a cheap live preview.
// Templates without one are previewed through their bundle's markup and style.
type PreviewRenderer interface {
	RenderPreview(cfg record.Record) (string, error)
}

// FormRenderer is implemented by templates that generate their own parameter form.
type FormRenderer interface {
	RenderFormFields(cfg record.Record) (string, error)
}

// RequiredFielder lists field paths that must be non-empty before a save.
type RequiredFielder interface {
	RequiredFields() []string
}

// Entry describes one registered template for listings.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	HasForm     bool   `json:"has_form"`
	HasPreview  bool   `json:"has_preview"`
}

func entryFor(id string, t Template) Entry {
	_, form := t.(FormRenderer)
	_, preview := t.(PreviewRenderer)
	return Entry{
		ID:          id,
		Name:        t.Name(),
		Icon:        t.Icon(),
		Description: t.Description(),
		HasForm:     form,
		HasPreview:  preview,
	}
}

// ListItemer supplies the blank row appended when the user adds an item to a
// list field. Without it the editor appends an empty record.
type ListItemer interface {
	NewListItem(list string) (record.Record, bool)
}
