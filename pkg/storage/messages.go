package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// MessageRepo persists ChatMessage rows, append-only per session
// (spec.md §3 "Append-only; bounded per session").
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo over db.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append inserts a new ChatMessage row.
func (r *MessageRepo) Append(ctx context.Context, id, sessionID, userID, text, role string, meta MessageMetadata, now time.Time) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	query, args, err := sq.Insert("chat_messages").
		Columns("id", "session_id", "user_id", "text", "role", "timestamp", "metadata").
		Values(id, sessionID, userID, text, role, now, payload).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListForSession returns a session's messages in chronological order,
// bounded to limit most recent messages (0 means unbounded).
func (r *MessageRepo) ListForSession(ctx context.Context, sessionID string, limit int) ([]ChatMessageRow, error) {
	if limit <= 0 {
		var rows []ChatMessageRow
		err := r.db.SelectContext(ctx, &rows,
			`SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY timestamp ASC`, sessionID)
		if err != nil {
			return nil, fmt.Errorf("list chat messages: %w", err)
		}
		return rows, nil
	}

	var rows []ChatMessageRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM (
		   SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY timestamp DESC LIMIT $2
		 ) recent ORDER BY timestamp ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return rows, nil
}
