package widgetstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/notifications"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// InvalidError reports a save request the store refuses to persist.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "invalid widget: " + e.Reason
}

// Publisher announces saved and deleted widgets.
type Publisher interface {
	Dispatch(ctx context.Context, n notifications.Notification) (notifications.Notification, error)
}

// SaveInput is one widget as submitted by an editor.
type SaveInput struct {
	Object     string
	TemplateID string
	Config     record.Record
	Bundle     emit.Bundle
}

// SaveResult describes what a Save changed.
type SaveResult struct {
	Widget  *Widget `json:"widget"`
	Created bool    `json:"created"`
	// Unchanged is set when the submission equals the stored widget; no
	// revision, audit entry or notification is produced.
	Unchanged bool `json:"unchanged"`
}

// Service applies saves and deletes, recording each change in the audit log
// and announcing it once committed.
type Service struct {
	store     *Store
	audit     *audit.Store
	publisher Publisher
	registry  *catalog.Registry
	now       func() time.Time
}

// NewService wires the store to its collaborators. publisher and registry
// may be nil; without a registry any template id is accepted.
func NewService(store *Store, auditStore *audit.Store, publisher Publisher, registry *catalog.Registry) *Service {
	return &Service{
		store:     store,
		audit:     auditStore,
		publisher: publisher,
		registry:  registry,
		now:       time.Now,
	}
}

// Store returns the read side.
func (s *Service) Store() *Store {
	return s.store
}

// Save persists in on behalf of actor.
func (s *Service) Save(ctx context.Context, actor string, in SaveInput) (SaveResult, error) {
	if err := s.check(in); err != nil {
		return SaveResult{}, err
	}
	log := logging.With().Str("component", "widgetstore").Str("object", in.Object).Logger()

	var result SaveResult
	var previous record.Record
	err := s.store.DB().Tx(ctx, func(tx *sql.Tx) error {
		existing, err := getWidget(ctx, tx, in.Object)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		now := s.now().UTC().Truncate(time.Second)
		w := &Widget{
			Object:     in.Object,
			TemplateID: in.TemplateID,
			Config:     in.Config.Clone(),
			Bundle:     in.Bundle,
			BundleHash: in.Bundle.Hash(),
			Revision:   1,
			CreatedBy:  actor,
			UpdatedBy:  actor,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if existing != nil {
			if sameContent(existing, w) {
				result = SaveResult{Widget: existing, Unchanged: true}
				return nil
			}
			w.Revision = existing.Revision + 1
			w.CreatedBy = existing.CreatedBy
			w.CreatedAt = existing.CreatedAt
			previous = existing.Config
		}

		if err := put(ctx, tx, w); err != nil {
			return err
		}

		action := audit.ActionWidgetCreated
		if existing != nil {
			action = audit.ActionWidgetUpdated
		}
		entry := audit.Entry{
			ActorType: audit.ActorUser,
			ActorID:   actor,
			Action:    action,
			Object:    w.Object,
			Summary:   fmt.Sprintf("%s revision %d (%s)", w.TemplateID, w.Revision, w.BundleHash[:12]),
			NewValue:  encode(w.Config),
		}
		if previous != nil {
			entry.PreviousValue = encode(previous)
		}
		if s.audit != nil {
			if err := s.audit.LogTx(ctx, tx, entry); err != nil {
				return err
			}
		}

		result = SaveResult{Widget: w, Created: existing == nil}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}

	if result.Unchanged {
		log.Debug().Msg("save unchanged")
		return result, nil
	}
	log.Info().Str("template", in.TemplateID).Int("revision", result.Widget.Revision).Bool("created", result.Created).Msg("widget saved")
	s.publish(ctx, notifications.TypeContentSaved, result.Widget, actor)
	return result, nil
}

// Delete removes object and its history.
func (s *Service) Delete(ctx context.Context, actor, object string) error {
	var gone *Widget
	err := s.store.DB().Tx(ctx, func(tx *sql.Tx) error {
		existing, err := getWidget(ctx, tx, object)
		if err != nil {
			return err
		}
		if err := remove(ctx, tx, object); err != nil {
			return err
		}
		gone = existing
		if s.audit == nil {
			return nil
		}
		return s.audit.LogTx(ctx, tx, audit.Entry{
			ActorType:     audit.ActorUser,
			ActorID:       actor,
			Action:        audit.ActionWidgetDeleted,
			Object:        object,
			Summary:       fmt.Sprintf("deleted %s at revision %d", existing.TemplateID, existing.Revision),
			PreviousValue: encode(existing.Config),
		})
	})
	if err != nil {
		return err
	}

	logging.Info().Str("component", "widgetstore").Str("object", object).Msg("widget deleted")
	s.publish(ctx, notifications.TypeContentDeleted, gone, actor)
	return nil
}

func (s *Service) check(in SaveInput) error {
	switch {
	case strings.TrimSpace(in.Object) == "":
		return &InvalidError{Reason: "object is required"}
	case strings.TrimSpace(in.TemplateID) == "":
		return &InvalidError{Reason: "template_id is required"}
	case in.Config == nil:
		return &InvalidError{Reason: "config is required"}
	case in.Bundle.TemplateID != in.TemplateID:
		return &InvalidError{Reason: fmt.Sprintf("bundle was rendered by %q, not %q", in.Bundle.TemplateID, in.TemplateID)}
	}
	if s.registry != nil && !s.registry.Has(in.TemplateID) {
		return &InvalidError{Reason: fmt.Sprintf("%v: %s", catalog.ErrTemplateNotFound, in.TemplateID)}
	}
	if err := in.Bundle.Verify(in.Object); err != nil {
		return &InvalidError{Reason: err.Error()}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ notifications.Type, w *Widget, actor string) {
	if s.publisher == nil || w == nil {
		return
	}
	_, err := s.publisher.Dispatch(ctx, notifications.Notification{
		Type:       typ,
		Object:     w.Object,
		TemplateID: w.TemplateID,
		Revision:   w.Revision,
		BundleHash: w.BundleHash,
		Actor:      actor,
	})
	if err != nil {
		logging.Error().Err(err).Str("object", w.Object).Msg("dispatching notification")
	}
}

func sameContent(a, b *Widget) bool {
	return a.TemplateID == b.TemplateID &&
		a.BundleHash == b.BundleHash &&
		reflect.DeepEqual(normalize(a.Config), normalize(b.Config))
}

// normalize round-trips cfg through JSON so numbers compare the same way
// whether they came from a request or from the database.
func normalize(cfg record.Record) any {
	var out any
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	_ = json.Unmarshal(data, &out)
	return out
}

func encode(cfg record.Record) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return string(data)
}
