// Package memorystore implements the Memory Store (spec.md §3
// MemoryRecord/UserProfile, §4.7 "Memory update after the turn"):
// per-user query history, pattern counters, and skill-level
// progression, layered over pkg/storage's MemoryRepo/ProfileRepo.
package memorystore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nlquery/dbagent/pkg/storage"
)

// skillThresholds: >50 successful records promotes beginner→intermediate;
// >150 promotes to advanced (spec.md §4.7).
const (
	intermediateThreshold = 50
	advancedThreshold     = 150
)

// TurnOutcome is the input to RecordTurn: everything the pipeline
// observed about one completed turn.
type TurnOutcome struct {
	UserID                    string
	DBKey                     string
	OriginalText              string
	GeneratedQueryDescription string
	QueryKind                 string
	CollectionsOrTables       []string
	ExecutionMillis           int64
	ResultCount               int64
	Succeeded                 bool
	PatternLabel              string
	ContextTags               []string
}

// Store is the Memory Store over a storage-backed MemoryRepo and
// ProfileRepo.
type Store struct {
	memory   *storage.MemoryRepo
	profiles *storage.ProfileRepo
	now      func() time.Time
	newID    func() string
}

// New constructs a Store.
func New(memory *storage.MemoryRepo, profiles *storage.ProfileRepo) *Store {
	return &Store{memory: memory, profiles: profiles, now: time.Now, newID: uuid.NewString}
}

// RecordTurn persists a MemoryRecord for outcome and updates the
// user's profile: pattern counters, frequent collections, skill-level
// transitions on success; commonMistakes on failure (spec.md §4.7). It
// returns the new record's ID, surfaced to callers as the Feedback
// endpoint's queryId (spec.md §6 "Feedback endpoint — {queryId,
// feedback}").
func (s *Store) RecordTurn(ctx context.Context, outcome TurnOutcome) (string, error) {
	rec := storage.MemoryRecordRow{
		ID:                        s.newID(),
		UserID:                    outcome.UserID,
		DBKey:                     outcome.DBKey,
		OriginalText:              outcome.OriginalText,
		GeneratedQueryDescription: outcome.GeneratedQueryDescription,
		QueryKind:                 outcome.QueryKind,
		CollectionsOrTables:       storage.EncodeStringSlice(outcome.CollectionsOrTables),
		ExecutionMillis:           outcome.ExecutionMillis,
		ResultCount:               outcome.ResultCount,
		Succeeded:                 outcome.Succeeded,
		ContextTags:               storage.EncodeStringSlice(outcome.ContextTags),
		PatternLabel:              outcome.PatternLabel,
		Timestamp:                 s.now(),
	}
	if err := s.memory.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("insert memory record: %w", err)
	}

	profile, err := s.profiles.GetOrCreate(ctx, outcome.UserID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}

	if outcome.Succeeded {
		s.applySuccess(&profile, outcome)
		total, err := s.memory.CountSuccessful(ctx, outcome.UserID)
		if err != nil {
			return "", fmt.Errorf("count successful records: %w", err)
		}
		profile.SkillLevel = skillLevelFor(total)
	} else {
		s.applyMistake(&profile, outcome.PatternLabel)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return "", fmt.Errorf("update profile: %w", err)
	}
	return rec.ID, nil
}

// SetFeedback records +/- feedback against a previously recorded
// MemoryRecord (spec.md §6 Feedback endpoint).
func (s *Store) SetFeedback(ctx context.Context, queryID, feedback string) error {
	if feedback != storage.FeedbackPositive && feedback != storage.FeedbackNegative {
		return fmt.Errorf("feedback must be %q or %q, got %q", storage.FeedbackPositive, storage.FeedbackNegative, feedback)
	}
	return s.memory.SetFeedback(ctx, queryID, feedback)
}

// skillLevelFor maps a successful-record total to a skill level
// (spec.md §4.7 thresholds).
func skillLevelFor(totalSuccessful int64) string {
	switch {
	case totalSuccessful > advancedThreshold:
		return storage.SkillAdvanced
	case totalSuccessful > intermediateThreshold:
		return storage.SkillIntermediate
	default:
		return storage.SkillBeginner
	}
}

func (s *Store) applySuccess(profile *storage.UserProfileRow, outcome TurnOutcome) {
	collections := decodeStrings(profile.FrequentCollections)
	for _, c := range outcome.CollectionsOrTables {
		if !containsString(collections, c) {
			collections = append(collections, c)
		}
	}
	profile.FrequentCollections = storage.EncodeStringSlice(collections)

	if outcome.PatternLabel == "" {
		return
	}
	counters := decodeCounters(profile.PatternCounters)
	counters = bumpCounter(counters, outcome.PatternLabel, s.now())
	profile.PatternCounters = encodeCounters(counters)
}

// applyMistake adds patternLabel to commonMistakes, deduplicated
// (spec.md §4.7 "add the pattern label to commonMistakes
// (deduplicated)").
func (s *Store) applyMistake(profile *storage.UserProfileRow, patternLabel string) {
	if patternLabel == "" {
		return
	}
	mistakes := decodeStrings(profile.CommonMistakes)
	if !containsString(mistakes, patternLabel) {
		mistakes = append(mistakes, patternLabel)
	}
	profile.CommonMistakes = storage.EncodeStringSlice(mistakes)
}

// Insights is the subset of memory state the Response Shaper surfaces
// in verbose mode (spec.md §4.9 "memoryInsights").
type Insights struct {
	SimilarQueries  int64
	SkillLevel      string
	PatternLabel    string
	PreferredDetail string
}

// InsightsFor computes memoryInsights for the given user and pattern
// label, to be folded into planner context and the final response.
func (s *Store) InsightsFor(ctx context.Context, userID, patternLabel string) (Insights, error) {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return Insights{}, fmt.Errorf("load profile: %w", err)
	}
	similar, err := s.memory.CountSimilar(ctx, userID, patternLabel)
	if err != nil {
		return Insights{}, fmt.Errorf("count similar records: %w", err)
	}
	return Insights{
		SimilarQueries:  similar,
		SkillLevel:      profile.SkillLevel,
		PatternLabel:    patternLabel,
		PreferredDetail: profile.PreferredDetail,
	}, nil
}

func decodeStrings(raw json.RawMessage) []string {
	return storage.DecodeStringSlice(raw)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func decodeCounters(raw json.RawMessage) []storage.PatternCounter {
	if len(raw) == 0 {
		return nil
	}
	var out []storage.PatternCounter
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeCounters(counters []storage.PatternCounter) json.RawMessage {
	if counters == nil {
		counters = []storage.PatternCounter{}
	}
	b, _ := json.Marshal(counters)
	return b
}

func bumpCounter(counters []storage.PatternCounter, label string, now time.Time) []storage.PatternCounter {
	for i := range counters {
		if counters[i].Label == label {
			counters[i].Count++
			counters[i].LastUsed = now
			return counters
		}
	}
	return append(counters, storage.PatternCounter{Label: label, Count: 1, LastUsed: now})
}
