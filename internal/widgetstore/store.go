// Package widgetstore persists saved widgets with their revision history.
package widgetstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/popup-studio/internal/db"
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// ErrNotFound is returned when no widget is stored for an object.
var ErrNotFound = errors.New("widget not found")

// Widget is the persisted state of one scene object.
type Widget struct {
	Object     string        `json:"object"`
	TemplateID string        `json:"template_id"`
	Config     record.Record `json:"config"`
	Bundle     emit.Bundle   `json:"bundle"`
	BundleHash string        `json:"bundle_hash"`
	Revision   int           `json:"revision"`
	CreatedBy  string        `json:"created_by"`
	UpdatedBy  string        `json:"updated_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Revision is one historical save of a widget.
type Revision struct {
	ID         string        `json:"id"`
	Object     string        `json:"object"`
	Revision   int           `json:"revision"`
	TemplateID string        `json:"template_id"`
	Config     record.Record `json:"config"`
	BundleHash string        `json:"bundle_hash"`
	Actor      string        `json:"actor"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ListFilter controls which widgets List returns.
type ListFilter struct {
	TemplateID string
	Limit      int
	Offset     int
}

// Store provides CRUD operations for widgets.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// DB returns the underlying database so callers can join the store's writes
// with their own in one transaction.
func (s *Store) DB() *db.DB {
	return s.db
}

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const widgetColumns = "object, template_id, config, bundle, bundle_hash, revision, created_by, updated_by, created_at, updated_at"

// Get returns the widget stored for object, or ErrNotFound.
func (s *Store) Get(ctx context.Context, object string) (*Widget, error) {
	return getWidget(ctx, s.db, object)
}

func getWidget(ctx context.Context, q querier, object string) (*Widget, error) {
	row := q.QueryRowContext(ctx, "SELECT "+widgetColumns+" FROM widgets WHERE object = ?", object)
	w, err := scanWidget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// List returns widgets ordered by object name.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Widget, error) {
	query := "SELECT " + widgetColumns + " FROM widgets"
	var args []any
	if filter.TemplateID != "" {
		query += " WHERE template_id = ?"
		args = append(args, filter.TemplateID)
	}
	query += " ORDER BY object"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying widgets: %w", err)
	}
	defer rows.Close()

	var widgets []Widget
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, *w)
	}
	return widgets, rows.Err()
}

// Revisions returns the history of object, newest first.
func (s *Store) Revisions(ctx context.Context, object string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, object, revision, template_id, config, bundle_hash, actor, created_at
		FROM widget_revisions WHERE object = ? ORDER BY revision DESC`, object)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var (
			r          Revision
			config, ts string
		)
		if err := rows.Scan(&r.ID, &r.Object, &r.Revision, &r.TemplateID, &config, &r.BundleHash, &r.Actor, &ts); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		if r.Config, err = record.Decode([]byte(config)); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(ts)
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// put upserts w inside tx and appends a revision row. w.Revision is the new
// revision number.
func put(ctx context.Context, tx *sql.Tx, w *Widget) error {
	config, err := json.Marshal(w.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	bundle, err := json.Marshal(w.Bundle)
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	ts := w.UpdatedAt.UTC().Format(time.DateTime)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO widgets (`+widgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(object) DO UPDATE SET
			template_id = excluded.template_id,
			config = excluded.config,
			bundle = excluded.bundle,
			bundle_hash = excluded.bundle_hash,
			revision = excluded.revision,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		w.Object, w.TemplateID, string(config), string(bundle), w.BundleHash, w.Revision,
		w.CreatedBy, w.UpdatedBy, w.CreatedAt.UTC().Format(time.DateTime), ts,
	)
	if err != nil {
		return fmt.Errorf("upserting widget %s: %w", w.Object, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO widget_revisions (id, object, revision, template_id, config, bundle_hash, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), w.Object, w.Revision, w.TemplateID, string(config), w.BundleHash, w.UpdatedBy, ts,
	)
	if err != nil {
		return fmt.Errorf("recording revision %d of %s: %w", w.Revision, w.Object, err)
	}
	return nil
}

// remove deletes object and its history inside tx.
func remove(ctx context.Context, tx *sql.Tx, object string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM widgets WHERE object = ?", object)
	if err != nil {
		return fmt.Errorf("deleting widget %s: %w", object, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM widget_revisions WHERE object = ?", object); err != nil {
		return fmt.Errorf("deleting revisions of %s: %w", object, err)
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWidget(sc scanner) (*Widget, error) {
	var (
		w                    Widget
		config, bundle       string
		createdAt, updatedAt string
	)
	err := sc.Scan(&w.Object, &w.TemplateID, &config, &bundle, &w.BundleHash, &w.Revision,
		&w.CreatedBy, &w.UpdatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if w.Config, err = record.Decode([]byte(config)); err != nil {
		return nil, fmt.Errorf("widget %s: %w", w.Object, err)
	}
	if err := json.Unmarshal([]byte(bundle), &w.Bundle); err != nil {
		return nil, fmt.Errorf("widget %s: decoding bundle: %w", w.Object, err)
	}
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

func parseTime(ts string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, strings.TrimSpace(ts)); err == nil {
			return t
		}
	}
	return time.Time{}
}
