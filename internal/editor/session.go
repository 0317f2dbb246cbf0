// Package editor implements the editing session for one scene object's
// popup: template selection, field edits with debounced preview, list edits,
// and save through a persistence bridge.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/popup-studio/internal/bridge"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// DefaultDebounce is the quiet period before a field edit refreshes the preview.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a Session. Registry and Bridge are required.
type Options struct {
	Registry    *catalog.Registry
	Bridge      bridge.Bridge
	Credentials CredentialSource
	Sink        Sink
	Scheduler   Scheduler
	Debounce    time.Duration
}

// Session is the editor for one scene object at a time. Opening another
// object discards the current one. All methods are safe for concurrent use.
type Session struct {
	reg      *catalog.Registry
	bridge   bridge.Bridge
	creds    CredentialSource
	sink     Sink
	sched    Scheduler
	debounce time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	state      State
	target     string
	templateID string
	cfg        record.Record
	previous   record.Record
	format     PreviewFormat
	// epoch changes whenever the session is opened or closed; results of
	// work started under an older epoch are dropped.
	epoch   uint64
	pending Timer
	// gen identifies the latest scheduled preview refresh.
	gen       uint64
	listeners []func(SavedEvent)
}

// New creates a closed Session.
func New(opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, errors.New("editor: registry is required")
	}
	if opts.Bridge == nil {
		return nil, errors.New("editor: bridge is required")
	}
	s := &Session{
		reg:      opts.Registry,
		bridge:   opts.Bridge,
		creds:    opts.Credentials,
		sink:     opts.Sink,
		sched:    opts.Scheduler,
		debounce: opts.Debounce,
		log:      logging.With().Str("component", "editor").Logger(),
		state:    StateClosed,
		format:   FormatAuto,
	}
	if s.creds == nil {
		s.creds = StaticCredential("")
	}
	if s.sink == nil {
		s.sink = discardSink{}
	}
	if s.sched == nil {
		s.sched = SystemScheduler{}
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	return s, nil
}

// OnSaved registers fn to be called after every successful save.
func (s *Session) OnSaved(fn func(SavedEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Open starts editing target. When existing holds persisted content for a
// registered template, that template is selected and its defaults are
// overlaid with the persisted fields; otherwise no template is selected.
// An unsaved session, or the result of an in-flight save, is discarded.
func (s *Session) Open(target string, existing *bridge.LoadResult) error {
	if strings.TrimSpace(target) == "" {
		return &ValidationError{Field: "target_object", Reason: "is required"}
	}
	if !utf8.ValidString(target) {
		return &ValidationError{Field: "target_object", Reason: "is not valid UTF-8"}
	}

	s.mu.Lock()
	if s.state == StateSaving {
		s.log.Warn().Str("object", s.target).Msg("opening over an in-flight save; its result will be discarded")
	}
	s.reset()
	s.state = StateOpen
	s.target = target

	if existing != nil && existing.Exists {
		if t, ok := s.reg.Get(existing.TemplateID); ok {
			s.templateID = existing.TemplateID
			s.cfg = record.Merge(t.DefaultConfig(), existing.Config)
			s.previous = existing.Config.Clone()
		} else {
			s.log.Warn().Str("object", target).Str("template", existing.TemplateID).Msg("persisted template is not registered; starting without a template")
			s.previous = existing.Config.Clone()
		}
	}
	s.log.Debug().Str("object", target).Str("template", s.templateID).Msg("session opened")

	form, preview, render := s.renderAll()
	s.mu.Unlock()

	if render {
		s.sink.ShowForm(form)
		s.sink.ShowPreview(preview)
	}
	return nil
}

// OpenFromBridge loads target's persisted content and opens it.
func (s *Session) OpenFromBridge(ctx context.Context, target string) error {
	res, err := s.bridge.Load(ctx, target)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return s.Open(target, &res)
}

// SelectTemplate switches to template id and resets the configuration to its
// defaults. Unsaved edits for another template are discarded.
func (s *Session) SelectTemplate(id string) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return fmt.Errorf("select template: %w", ErrInvalidState)
	}
	t, ok := s.reg.Get(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", catalog.ErrTemplateNotFound, id)
	}
	s.cancelPreview()
	s.templateID = id
	s.cfg = t.DefaultConfig()
	form, preview, _ := s.renderAll()
	s.mu.Unlock()

	s.sink.ShowForm(form)
	s.sink.ShowPreview(preview)
	return nil
}

// UpdateField sets path (e.g. "name" or "contacts[2].value") and schedules a
// preview refresh after the quiet period. A newer edit cancels the pending
// refresh, so a burst of edits renders once with the final values.
func (s *Session) UpdateField(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTemplate("update field"); err != nil {
		return err
	}
	if err := s.cfg.Set(path, value); err != nil {
		return &ValidationError{Field: path, Reason: err.Error()}
	}

	s.cancelPreview()
	s.gen++
	gen, epoch := s.gen, s.epoch
	s.pending = s.sched.AfterFunc(s.debounce, func() { s.flushPreview(gen, epoch) })
	return nil
}

// AddListItem appends item to the list field and refreshes form and preview
// immediately. A nil item is replaced by the template's blank row.
func (s *Session) AddListItem(list string, item record.Record) (int, error) {
	s.mu.Lock()
	if err := s.requireTemplate("add list item"); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if item == nil {
		item = record.Record{}
		if t, ok := s.reg.Get(s.templateID); ok {
			if li, ok := t.(catalog.ListItemer); ok {
				if blank, ok := li.NewListItem(list); ok {
					item = blank
				}
			}
		}
	}
	index, err := s.cfg.AppendItem(list, item.Clone())
	if err != nil {
		s.mu.Unlock()
		return 0, &ValidationError{Field: list, Reason: err.Error()}
	}
	s.cancelPreview()
	form, preview, _ := s.renderAll()
	s.mu.Unlock()

	s.sink.ShowForm(form)
	s.sink.ShowPreview(preview)
	return index, nil
}

// RemoveListItem deletes the row at index; later rows shift down. Form and
// preview are refreshed immediately.
func (s *Session) RemoveListItem(list string, index int) error {
	s.mu.Lock()
	if err := s.requireTemplate("remove list item"); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.cfg.RemoveItem(list, index); err != nil {
		s.mu.Unlock()
		return &ValidationError{Field: fmt.Sprintf("%s[%d]", list, index), Reason: err.Error()}
	}
	s.cancelPreview()
	form, preview, _ := s.renderAll()
	s.mu.Unlock()

	s.sink.ShowForm(form)
	s.sink.ShowPreview(preview)
	return nil
}

// SetPreviewFormat changes the preview frame and re-renders the preview.
// It is allowed in any state; the format survives reopening.
func (s *Session) SetPreviewFormat(f PreviewFormat) error {
	if !f.valid() {
		return &ValidationError{Field: "format", Reason: fmt.Sprintf("unknown preview format %q", f)}
	}
	s.mu.Lock()
	s.format = f
	if s.state != StateOpen || s.templateID == "" {
		s.mu.Unlock()
		return nil
	}
	preview := s.renderPreview()
	s.mu.Unlock()

	s.sink.ShowPreview(preview)
	return nil
}

// Save renders the bundle and hands it to the bridge. While the bridge call
// runs the session is Saving and further saves fail with ErrSaveInProgress.
// On success the session closes and OnSaved listeners run; on failure it
// returns to Open with the configuration unchanged.
func (s *Session) Save(ctx context.Context) (emit.Bundle, error) {
	s.mu.Lock()
	switch s.state {
	case StateSaving:
		s.mu.Unlock()
		s.log.Debug().Msg("save ignored; another save is in flight")
		return emit.Bundle{}, ErrSaveInProgress
	case StateClosed:
		s.mu.Unlock()
		return emit.Bundle{}, fmt.Errorf("save: %w", ErrInvalidState)
	}
	if s.templateID == "" {
		s.mu.Unlock()
		return emit.Bundle{}, &ValidationError{Reason: "no template selected"}
	}
	t, ok := s.reg.Get(s.templateID)
	if !ok {
		s.mu.Unlock()
		return emit.Bundle{}, fmt.Errorf("%w: %s", catalog.ErrTemplateNotFound, s.templateID)
	}
	if err := checkRequired(t, s.cfg); err != nil {
		s.mu.Unlock()
		return emit.Bundle{}, err
	}
	credential, ok := s.creds.Credential()
	if !ok {
		s.mu.Unlock()
		return emit.Bundle{}, &AuthenticationError{}
	}
	bundle, err := catalog.RenderBundle(s.templateID, t, s.target, s.cfg)
	if err != nil {
		s.mu.Unlock()
		return emit.Bundle{}, err
	}

	req := bridge.SaveRequest{
		TargetObject: s.target,
		TemplateID:   s.templateID,
		Config:       s.cfg.Clone(),
		Bundle:       bundle,
		Credential:   credential,
	}
	update := s.previous != nil
	epoch := s.epoch
	s.state = StateSaving
	log := s.log.With().Str("object", s.target).Str("template", s.templateID).Logger()
	s.mu.Unlock()

	err = s.bridge.Save(ctx, req)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Msg("save failed after the session was replaced")
		} else {
			log.Info().Msg("save completed after the session was replaced; result discarded")
		}
		if err != nil {
			return bundle, saveError(err)
		}
		return bundle, nil
	}
	if err != nil {
		s.state = StateOpen
		// A debounced refresh that came due during the save was dropped.
		refresh := s.pending != nil
		var preview Preview
		if refresh {
			s.cancelPreview()
			preview = s.renderPreview()
		}
		s.mu.Unlock()
		log.Warn().Err(err).Msg("save failed")
		if refresh {
			s.sink.ShowPreview(preview)
		}
		return emit.Bundle{}, saveError(err)
	}

	s.reset()
	listeners := append([]func(SavedEvent){}, s.listeners...)
	s.mu.Unlock()

	log.Info().Str("hash", bundle.Hash()[:12]).Bool("update", update).Msg("widget saved")
	ev := SavedEvent{
		TargetObject: req.TargetObject,
		TemplateID:   req.TemplateID,
		Config:       req.Config,
		Bundle:       bundle,
		Update:       update,
	}
	for _, fn := range listeners {
		fn(ev)
	}
	return bundle, nil
}

// saveError classifies a bridge failure.
func saveError(err error) error {
	if errors.Is(err, bridge.ErrUnauthorized) {
		return &AuthenticationError{Err: err}
	}
	return &PersistenceError{Err: err}
}

// Close discards the session without saving. Closing during a save is not
// allowed; closing a closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSaving:
		return fmt.Errorf("close: %w", ErrInvalidState)
	case StateClosed:
		return nil
	}
	s.log.Debug().Str("object", s.target).Msg("session closed without saving")
	s.reset()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:          s.state,
		TargetObject:   s.target,
		TemplateID:     s.templateID,
		Config:         s.cfg.Clone(),
		Previous:       s.previous.Clone(),
		Format:         s.format,
		PreviewPending: s.pending != nil,
	}
}

// reset returns to Closed and invalidates outstanding work. Callers hold mu.
func (s *Session) reset() {
	s.cancelPreview()
	s.epoch++
	s.state = StateClosed
	s.target = ""
	s.templateID = ""
	s.cfg = nil
	s.previous = nil
}

// cancelPreview stops the pending debounced refresh. Callers hold mu.
func (s *Session) cancelPreview() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
}

func (s *Session) requireTemplate(op string) error {
	if s.state != StateOpen {
		return fmt.Errorf("%s: %w", op, ErrInvalidState)
	}
	if s.templateID == "" {
		return &ValidationError{Reason: "no template selected"}
	}
	return nil
}

// flushPreview is the debounced refresh. It does nothing if a newer edit,
// an immediate refresh or a reopen superseded it.
func (s *Session) flushPreview(gen, epoch uint64) {
	s.mu.Lock()
	if gen != s.gen || epoch != s.epoch || s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	preview := s.renderPreview()
	s.mu.Unlock()

	s.sink.ShowPreview(preview)
}

// renderAll renders form and preview for the current state. render is false
// when no template is selected. Callers hold mu.
func (s *Session) renderAll() (form string, preview Preview, render bool) {
	if s.templateID == "" {
		return "", Preview{Format: s.format}, false
	}
	return s.renderForm(), s.renderPreview(), true
}

func (s *Session) renderForm() string {
	t, ok := s.reg.Get(s.templateID)
	if !ok {
		return emit.Placeholder("template " + s.templateID + " is not registered")
	}
	out, _, err := catalog.RenderForm(s.templateID, t, s.cfg.Clone())
	if err != nil {
		s.log.Error().Err(err).Str("template", s.templateID).Msg("form render failed")
		return emit.Placeholder(err.Error())
	}
	return out
}

func (s *Session) renderPreview() Preview {
	t, ok := s.reg.Get(s.templateID)
	if !ok {
		return Preview{Format: s.format, HTML: emit.Placeholder("template " + s.templateID + " is not registered")}
	}
	out, err := catalog.RenderPreview(s.templateID, t, s.cfg.Clone())
	if err != nil {
		s.log.Error().Err(err).Str("template", s.templateID).Msg("preview render failed")
		out = emit.Placeholder(err.Error())
	}
	return Preview{Format: s.format, HTML: frame(s.format, out)}
}

// frame wraps a preview fragment in the aspect container for f.
func frame(f PreviewFormat, html string) string {
	return `<div class="popup-preview-stage" data-format="` + string(f) + `">` + html + `</div>`
}

func checkRequired(t catalog.Template, cfg record.Record) error {
	rf, ok := t.(catalog.RequiredFielder)
	if !ok {
		return nil
	}
	for _, path := range rf.RequiredFields() {
		v, ok := cfg.Get(path)
		if !ok || strings.TrimSpace(fmt.Sprint(v)) == "" {
			return &ValidationError{Field: path, Reason: "is required"}
		}
	}
	return nil
}
