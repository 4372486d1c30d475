package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool, mapper: NewErrorMapper()}
}

type sessionRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	ExpiresAt string         `db:"expires_at"`
	CreatedAt string         `db:"created_at"`
	RevokedAt sql.NullString `db:"revoked_at"`
}

// CreateSession stores a new session for a user
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.UserID == "" || session.ExpiresAt.IsZero() {
		return persistence.ErrConstraintViolation
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	row := sessionRow{
		ID:        session.ID,
		UserID:    session.UserID,
		ExpiresAt: formatTimestamp(session.ExpiresAt),
		CreatedAt: formatTimestamp(session.CreatedAt),
	}
	if session.RevokedAt != nil {
		row.RevokedAt = sql.NullString{String: formatTimestamp(*session.RevokedAt), Valid: true}
	}

	const query = `
		INSERT INTO sessions (id, user_id, expires_at, created_at, revoked_at)
		VALUES (:id, :user_id, :expires_at, :created_at, :revoked_at)`

	if _, err := r.pool.db.NamedExecContext(ctx, query, row); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var row sessionRow
	const query = `SELECT id, user_id, expires_at, created_at, revoked_at FROM sessions WHERE id = ?`
	if err := r.pool.db.GetContext(ctx, &row, query, id); err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	session := persistence.Session{ID: row.ID, UserID: row.UserID}
	var err error
	if session.ExpiresAt, err = parseTimestamp("expires_at", row.ExpiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTimestamp("created_at", row.CreatedAt); err != nil {
		return persistence.Session{}, err
	}
	if row.RevokedAt.Valid {
		revokedAt, err := parseTimestamp("revoked_at", row.RevokedAt.String)
		if err != nil {
			return persistence.Session{}, err
		}
		session.RevokedAt = &revokedAt
	}
	return session, nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first timestamp.
func (r *SessionRepository) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`,
		formatTimestamp(revokedAt), id,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// DeleteExpiredSessions removes sessions that expired before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, formatTimestamp(reference))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}
