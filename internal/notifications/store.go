package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/popup-studio/internal/db"
)

// ListFilter controls which notifications are returned by List.
type ListFilter struct {
	Type      Type
	Object    string
	Delivered *bool
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Store provides CRUD operations for notifications and webhooks.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new notification and returns it with ID and CreatedAt
// filled in.
func (s *Store) Create(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	delivered := 0
	if n.Delivered {
		delivered = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, object, template_id, revision, bundle_hash, actor, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), n.Object, n.TemplateID, n.Revision, n.BundleHash, n.Actor, delivered,
		n.CreatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return n, fmt.Errorf("inserting notification: %w", err)
	}
	return n, nil
}

// GetByID retrieves a single notification.
func (s *Store) GetByID(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, object, template_id, revision, bundle_hash, actor, delivered, created_at
		FROM notifications WHERE id = ?`, id)

	return scanInto(row)
}

// List returns notifications matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Notification, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Object != "" {
		clauses = append(clauses, "object = ?")
		args = append(args, filter.Object)
	}
	if filter.Delivered != nil {
		v := 0
		if *filter.Delivered {
			v = 1
		}
		clauses = append(clauses, "delivered = ?")
		args = append(args, v)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	query := "SELECT id, type, object, template_id, revision, bundle_hash, actor, delivered, created_at FROM notifications"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

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
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		n, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkDelivered sets delivered=1 for the given notification.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET delivered = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}

// GetPending returns all undelivered notifications.
func (s *Store) GetPending(ctx context.Context) ([]Notification, error) {
	delivered := false
	return s.List(ctx, ListFilter{Delivered: &delivered})
}

// CreateWebhook registers a subscriber. An empty pattern matches every object.
func (s *Store) CreateWebhook(ctx context.Context, hook Webhook) (Webhook, error) {
	if hook.ID == "" {
		hook.ID = uuid.New().String()
	}
	if hook.ObjectPattern == "" {
		hook.ObjectPattern = "**"
	}
	if hook.CreatedAt.IsZero() {
		hook.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, url, object_pattern, created_at) VALUES (?, ?, ?, ?)`,
		hook.ID, hook.URL, hook.ObjectPattern, hook.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return hook, fmt.Errorf("inserting webhook: %w", err)
	}
	return hook, nil
}

// ListWebhooks returns every registered subscriber, oldest first.
func (s *Store) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, object_pattern, created_at FROM webhooks ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []Webhook
	for rows.Next() {
		var (
			h  Webhook
			ts string
		)
		if err := rows.Scan(&h.ID, &h.URL, &h.ObjectPattern, &ts); err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		h.CreatedAt = parseTime(ts)
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

// DeleteWebhook removes a subscriber.
func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("webhook %s not found", id)
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Notification, error) {
	var (
		n         Notification
		ntype, ts string
		delivered int
	)

	err := sc.Scan(&n.ID, &ntype, &n.Object, &n.TemplateID, &n.Revision, &n.BundleHash, &n.Actor, &delivered, &ts)
	if err != nil {
		return nil, err
	}

	n.Type = Type(ntype)
	n.Delivered = delivered != 0
	n.CreatedAt = parseTime(ts)
	return &n, nil
}

func parseTime(ts string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
