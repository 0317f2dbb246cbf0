package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/ziadkadry99/popup-studio/internal/logging"
)

// Registry is the catalog of popup templates. It is constructed explicitly and
// injected where needed. Once every module has registered at startup the
// registry is locked so late registrations fail loudly.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
	locked    bool
}

// NewRegistry creates an empty, unlocked registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register stores t under id. It fails when the registry is locked, id is
// blank, or t is nil or unnamed. Replacing an existing id is allowed while
// unlocked and logged as a warning.
func (r *Registry) Register(id string, t Template) error {
	log := logging.With().Str("component", "catalog").Str("template", id).Logger()

	var reason string
	switch {
	case strings.TrimSpace(id) == "":
		reason = "id must be a non-empty string"
	case t == nil:
		reason = "template is nil"
	case strings.TrimSpace(t.Name()) == "":
		reason = "template has no name"
	}
	if reason != "" {
		err := &RegistrationError{ID: id, Reason: reason}
		log.Error().Err(err).Msg("template registration rejected")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		err := &RegistrationError{ID: id, Reason: "registry is locked"}
		log.Error().Err(err).Msg("template registration rejected")
		return err
	}
	if _, exists := r.templates[id]; exists {
		log.Warn().Msg("template id already registered; replacing")
	}
	r.templates[id] = t
	log.Debug().Str("name", t.Name()).Msg("template registered")
	return nil
}

// Get returns the template registered under id.
func (r *Registry) Get(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// All returns a snapshot of the catalog. Mutating the map does not affect the registry.
func (r *Registry) All() map[string]Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Template, len(r.templates))
	for id, t := range r.templates {
		out[id] = t
	}
	return out
}

// Count returns the number of registered templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// List returns an entry per template, sorted by id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.templates))
	for id, t := range r.templates {
		out = append(out, entryFor(id, t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Search fuzzy-matches query against template ids, names and descriptions,
// best match first. An empty query returns List().
func (r *Registry) Search(query string) []Entry {
	entries := r.List()
	if strings.TrimSpace(query) == "" {
		return entries
	}
	haystack := make([]string, len(entries))
	for i, e := range entries {
		haystack[i] = e.ID + " " + e.Name + " " + e.Description
	}
	matches := fuzzy.Find(query, haystack)
	out := make([]Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}

// Lock makes every later Register call fail.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
}

// Unlock re-enables registration.
func (r *Registry) Unlock() {
	r.mu.Lock()
	r.locked = false
	r.mu.Unlock()
}

// Locked reports whether the registry is locked.
func (r *Registry) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}
