package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/parkshare/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db dbExecutor
}

const sessionColumns = `id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a new session token for a user.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		strings.TrimSpace(session.Fingerprint),
		utc(session.ExpiresAt),
		utcPtr(session.RevokedAt),
		utc(session.CreatedAt),
		utc(session.UpdatedAt),
	))
}

// GetSession retrieves a session by its token value.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return scanSession(r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token))
}

// RevokeSession marks the session identified by token as revoked. The first
// revocation time is kept.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return scanSession(r.db.QueryRow(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, $1), updated_at = $1 WHERE token = $2 RETURNING `+sessionColumns,
		utc(revokedAt), token,
	))
}

// DeleteExpiredSessions removes sessions that expired or were revoked before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1 OR (revoked_at IS NOT NULL AND revoked_at <= $1)`,
		utc(reference),
	)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (persistence.Session, error) {
	var session persistence.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Fingerprint,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return persistence.Session{}, mapError(err)
	}
	session.ExpiresAt = utc(session.ExpiresAt)
	session.RevokedAt = utcPtr(session.RevokedAt)
	session.CreatedAt = utc(session.CreatedAt)
	session.UpdatedAt = utc(session.UpdatedAt)
	return session, nil
}
