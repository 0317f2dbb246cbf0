package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ziadkadry99/popup-studio/internal/db"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists is returned when creating a duplicate username.
	ErrUserExists = errors.New("user already exists")
)

// minPasswordLength is enforced when users are created.
const minPasswordLength = 8

// User is an account allowed to request tokens.
type User struct {
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore persists users with bcrypt password hashes.
type UserStore struct {
	db   *db.DB
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserStore creates a UserStore backed by the given database.
func NewUserStore(database *db.DB) *UserStore {
	return &UserStore{db: database, cost: bcrypt.DefaultCost}
}

func (s *UserStore) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("popup-studio"), s.cost)
	})
	return s.dummyHash
}

// Create adds a user.
func (s *UserStore) Create(ctx context.Context, username, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, string(hash), string(role), now.Format(time.DateTime),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &User{Username: username, Role: role, CreatedAt: now}, nil
}

// Authenticate checks a password and returns the user on success.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var (
		u          User
		hash, role string
		ts         string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT username, password_hash, role, created_at FROM users WHERE username = ?", username,
	).Scan(&u.Username, &hash, &role, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown users cost one comparison too.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	u.Role = Role(role)
	u.CreatedAt, _ = time.Parse(time.DateTime, ts)
	return &u, nil
}

// List returns all users ordered by name.
func (s *UserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT username, role, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u        User
			role, ts string
		)
		if err := rows.Scan(&u.Username, &role, &ts); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Role = Role(role)
		u.CreatedAt, _ = time.Parse(time.DateTime, ts)
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the number of users.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
