package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionRepository persists session tokens so logins survive restarts and
// can be shared by several server processes.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns the user bound to token, or ErrNotFound when the token is
// unknown or expired.
func (r *SessionRepository) Get(ctx context.Context, token string) (uuid.UUID, error) {
	const query = `
		SELECT user_id
		FROM sessions
		WHERE token = $1 AND expires_at > $2`
	var userID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, token, time.Now().UTC()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}

func (r *SessionRepository) Put(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	const query = `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			expires_at = EXCLUDED.expires_at`
	_, err := r.db.ExecContext(ctx, query, token, userID, expiresAt.UTC())
	return err
}

// Delete removes token. Deleting an unknown token is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// Sweep deletes every expired session and reports how many were removed.
func (r *SessionRepository) Sweep(ctx context.Context) (int, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
