package storage

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// MemoryRepo persists MemoryRecord rows (spec.md §3, §4.7). Immutable
// after write except for feedback.
type MemoryRepo struct {
	db *sqlx.DB
}

// NewMemoryRepo constructs a MemoryRepo over db.
func NewMemoryRepo(db *sqlx.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

// Insert persists rec.
func (r *MemoryRepo) Insert(ctx context.Context, rec MemoryRecordRow) error {
	query, args, err := sq.Insert("memory_records").
		Columns(
			"id", "user_id", "db_key", "original_text", "generated_query_description",
			"query_kind", "collections_or_tables", "execution_millis", "result_count",
			"succeeded", "feedback", "context_tags", "pattern_label", "timestamp",
		).
		Values(
			rec.ID, rec.UserID, rec.DBKey, rec.OriginalText, rec.GeneratedQueryDescription,
			rec.QueryKind, rec.CollectionsOrTables, rec.ExecutionMillis, rec.ResultCount,
			rec.Succeeded, rec.Feedback, rec.ContextTags, rec.PatternLabel, rec.Timestamp,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert memory record: %w", err)
	}
	return nil
}

// SetFeedback updates the feedback field of an existing record, the
// only field MemoryRecord allows mutating after write (spec.md §3).
func (r *MemoryRepo) SetFeedback(ctx context.Context, id, feedback string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE memory_records SET feedback = $1 WHERE id = $2`, feedback, id)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	return nil
}

// CountSimilar returns the number of prior successful records for
// userID sharing patternLabel, used for memoryInsights.similarQueries
// (spec.md §4.9, §5 ordering invariant).
func (r *MemoryRepo) CountSimilar(ctx context.Context, userID, patternLabel string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT count(*) FROM memory_records WHERE user_id = $1 AND pattern_label = $2 AND succeeded = true`,
		userID, patternLabel)
	if err != nil {
		return 0, fmt.Errorf("count similar records: %w", err)
	}
	return n, nil
}

// CountSuccessful returns the total number of successful records for
// userID, the basis for skill-level transitions (spec.md §4.7).
func (r *MemoryRepo) CountSuccessful(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT count(*) FROM memory_records WHERE user_id = $1 AND succeeded = true`, userID)
	if err != nil {
		return 0, fmt.Errorf("count successful records: %w", err)
	}
	return n, nil
}

// RecentForUser returns a userID's most recent records, newest first,
// bounded to limit.
func (r *MemoryRepo) RecentForUser(ctx context.Context, userID string, limit int) ([]MemoryRecordRow, error) {
	var rows []MemoryRecordRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM memory_records WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent memory records: %w", err)
	}
	return rows, nil
}

// DecodeStringSlice decodes a JSONB text-array column such as
// CollectionsOrTables or ContextTags.
func DecodeStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

// EncodeStringSlice encodes a string slice for a JSONB column.
func EncodeStringSlice(values []string) json.RawMessage {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return b
}
