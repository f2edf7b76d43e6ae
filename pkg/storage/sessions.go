package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// ErrSessionNotFound is returned when a session lookup finds nothing
// (spec.md §7 "SessionNotFound").
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionOwnership is returned when a userId attempts to act on a
// session owned by a different user (spec.md §3 "only that user may
// join/send on it").
var ErrSessionOwnership = errors.New("session is owned by a different user")

// SessionRepo persists Session rows (spec.md §4.8, §6).
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo over db.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session owned by userID.
func (r *SessionRepo) Create(ctx context.Context, id, userID, title string, now time.Time) (SessionRow, error) {
	row := SessionRow{
		ID: id, UserID: userID, Title: title,
		CreatedAt: now, LastActivity: now,
		State: StateActive, RecentQueries: json.RawMessage("[]"),
	}
	query, args, err := sq.Insert("sessions").
		Columns("id", "user_id", "title", "created_at", "last_activity", "message_count", "active", "state", "recent_queries").
		Values(row.ID, row.UserID, row.Title, row.CreatedAt, row.LastActivity, 0, false, row.State, row.RecentQueries).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return SessionRow{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return SessionRow{}, fmt.Errorf("insert session: %w", err)
	}
	return row, nil
}

// Get fetches a session by id.
func (r *SessionRepo) Get(ctx context.Context, id string) (SessionRow, error) {
	var row SessionRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRow{}, fmt.Errorf("query session: %w", err)
	}
	return row, nil
}

// CountForUser returns the number of sessions owned by userID, used to
// enforce the per-user session cap on join (spec.md §4.8).
func (r *SessionRepo) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM sessions WHERE user_id = $1 AND state != $2`, userID, StateDeleted)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// ListForUser lists non-deleted sessions owned by userID, most
// recently active first.
func (r *SessionRepo) ListForUser(ctx context.Context, userID string) ([]SessionRow, error) {
	var rows []SessionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM sessions WHERE user_id = $1 AND state != $2 ORDER BY last_activity DESC`,
		userID, StateDeleted)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// Touch updates last_activity and active and sets state to active for
// a join/send event. Endpoint context and recent queries are written by
// UpdateContext.
func (r *SessionRepo) Touch(ctx context.Context, id string, now time.Time, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = $1, active = $2, state = $3 WHERE id = $4`,
		now, active, StateActive, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// UpdateContext records the last db endpoint used and the bounded
// recent-queries window (≤5, spec.md §4.8).
func (r *SessionRepo) UpdateContext(ctx context.Context, id, dbEndpoint, dbKind string, recentQueries []string, messageCount int) error {
	if len(recentQueries) > 5 {
		recentQueries = recentQueries[len(recentQueries)-5:]
	}
	payload, err := json.Marshal(recentQueries)
	if err != nil {
		return fmt.Errorf("encode recent queries: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE sessions SET last_db_endpoint = $1, last_db_kind = $2, recent_queries = $3, message_count = $4 WHERE id = $5`,
		dbEndpoint, dbKind, payload, messageCount, id)
	if err != nil {
		return fmt.Errorf("update session context: %w", err)
	}
	return nil
}

// MarkIdle transitions every session whose last_activity predates cutoff
// from active to idle (spec.md §4.8 "Housekeeping sweep").
func (r *SessionRepo) MarkIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = false, state = $1 WHERE state = $2 AND last_activity < $3`,
		StateIdle, StateActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark sessions idle: %w", err)
	}
	return res.RowsAffected()
}

// MarkExpired transitions every session whose last_activity predates
// cutoff to expired (storage-level TTL, spec.md §4.8).
func (r *SessionRepo) MarkExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET state = $1 WHERE state != $1 AND last_activity < $2`,
		StateExpired, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark sessions expired: %w", err)
	}
	return res.RowsAffected()
}

// Delete soft-deletes a session owned by userID; returns
// ErrSessionOwnership if owned by someone else.
func (r *SessionRepo) Delete(ctx context.Context, id, userID string) error {
	row, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if row.UserID != userID {
		return ErrSessionOwnership
	}
	_, err = r.db.ExecContext(ctx, `UPDATE sessions SET state = $1, active = false WHERE id = $2`, StateDeleted, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CheckOwnership returns ErrSessionOwnership if the session is owned
// by a different user, ErrSessionNotFound if it doesn't exist.
func (r *SessionRepo) CheckOwnership(ctx context.Context, id, userID string) (SessionRow, error) {
	row, err := r.Get(ctx, id)
	if err != nil {
		return SessionRow{}, err
	}
	if row.UserID != userID {
		return SessionRow{}, ErrSessionOwnership
	}
	return row, nil
}
