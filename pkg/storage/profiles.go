package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// ProfileRepo persists UserProfile rows (spec.md §3, §4.7).
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo over db.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetOrCreate returns userID's profile, creating a default beginner
// profile on first use.
func (r *ProfileRepo) GetOrCreate(ctx context.Context, userID string) (UserProfileRow, error) {
	var row UserProfileRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM user_profiles WHERE user_id = $1`, userID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return UserProfileRow{}, fmt.Errorf("query user profile: %w", err)
	}

	row = UserProfileRow{
		UserID:              userID,
		FrequentCollections: json.RawMessage("[]"),
		PatternCounters:     json.RawMessage("[]"),
		SkillLevel:          SkillBeginner,
		PreferredDetail:     DetailBrief,
		CommonMistakes:      json.RawMessage("[]"),
	}
	query, args, err := sq.Insert("user_profiles").
		Columns("user_id", "frequent_collections", "pattern_counters", "skill_level", "preferred_detail", "common_mistakes").
		Values(row.UserID, row.FrequentCollections, row.PatternCounters, row.SkillLevel, row.PreferredDetail, row.CommonMistakes).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return UserProfileRow{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return UserProfileRow{}, fmt.Errorf("insert user profile: %w", err)
	}
	return row, nil
}

// Update persists the full profile row (used after skill-level
// transitions, counter increments, or commonMistakes updates).
func (r *ProfileRepo) Update(ctx context.Context, row UserProfileRow) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET frequent_collections = $1, pattern_counters = $2,
		   skill_level = $3, preferred_detail = $4, common_mistakes = $5
		 WHERE user_id = $6`,
		row.FrequentCollections, row.PatternCounters, row.SkillLevel,
		row.PreferredDetail, row.CommonMistakes, row.UserID)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}
