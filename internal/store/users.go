// ABOUTME: User credit record persistence for the quota gate
// ABOUTME: Implements GetUser and the single-call UpdateQuota balance mutation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a new user record. Used by tests and the external
// registration subsystem's migrations; the pipeline itself never creates users.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	query := `
		INSERT INTO users (id, email, requests_left, last_reset_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var lastReset any
	if user.LastResetTime != nil {
		lastReset = user.LastResetTime.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.RequestsLeft,
		lastReset,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("user with email %q already exists", user.Email)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by email.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, requests_left, last_reset_time, created_at, updated_at
		FROM users
		WHERE email = ?
	`

	var user User
	var lastReset sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.RequestsLeft,
		&lastReset,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt = s.parseTimestamp(createdAt, "created_at", user.ID)
	user.UpdatedAt = s.parseTimestamp(updatedAt, "updated_at", user.ID)

	if lastReset.Valid {
		parsed, err := time.Parse(time.RFC3339, lastReset.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_reset_time for %q: %w", email, err)
		}
		user.LastResetTime = &parsed
	}

	return &user, nil
}

// UpdateQuota persists a user's balance and reset timestamp in a single
// update statement. A nil lastReset clears the stored timestamp.
// Returns ErrNotFound if no row matched.
func (s *SQLiteStore) UpdateQuota(ctx context.Context, email string, requestsLeft int, lastReset *time.Time) error {
	query := `
		UPDATE users
		SET requests_left = ?, last_reset_time = ?, updated_at = ?
		WHERE email = ?
	`

	var resetVal any
	if lastReset != nil {
		resetVal = lastReset.UTC().Format(time.RFC3339)
	}

	result, err := s.db.ExecContext(ctx, query,
		requestsLeft,
		resetVal,
		time.Now().UTC().Format(time.RFC3339),
		email,
	)
	if err != nil {
		return fmt.Errorf("updating quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated quota", "email", email, "requests_left", requestsLeft)
	return nil
}
