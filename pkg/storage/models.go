package storage

import (
	"encoding/json"
	"time"
)

// SessionRow is the persisted form of a Session (spec.md §3).
type SessionRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	Title          string          `db:"title"`
	CreatedAt      time.Time       `db:"created_at"`
	LastActivity   time.Time       `db:"last_activity"`
	MessageCount   int             `db:"message_count"`
	Active         bool            `db:"active"`
	State          string          `db:"state"`
	LastDBEndpoint string          `db:"last_db_endpoint"`
	LastDBKind     string          `db:"last_db_kind"`
	RecentQueries  json.RawMessage `db:"recent_queries"`
}

// Session states, mirroring spec.md §4.8's state machine.
const (
	StateActive  = "active"
	StateIdle    = "idle"
	StateDeleted = "deleted"
	StateExpired = "expired"
)

// ChatMessageRow is the persisted form of a ChatMessage (spec.md §3).
type ChatMessageRow struct {
	ID        string          `db:"id"`
	SessionID string          `db:"session_id"`
	UserID    string          `db:"user_id"`
	Text      string          `db:"text"`
	Role      string          `db:"role"`
	Timestamp time.Time       `db:"timestamp"`
	Metadata  json.RawMessage `db:"metadata"`
}

// ChatMessage roles (spec.md §3).
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// MessageMetadata is the decoded shape of ChatMessageRow.Metadata.
type MessageMetadata struct {
	QueryKind       string   `json:"queryKind,omitempty"`
	ExecutionMillis int64    `json:"executionMillis,omitempty"`
	DataRetrieved   bool     `json:"dataRetrieved,omitempty"`
	ToolsUsed       []string `json:"toolsUsed,omitempty"`
	Confidence      float64  `json:"confidence,omitempty"`
}

// MemoryRecordRow is the persisted form of a MemoryRecord (spec.md §3).
type MemoryRecordRow struct {
	ID                        string          `db:"id"`
	UserID                    string          `db:"user_id"`
	DBKey                     string          `db:"db_key"`
	OriginalText              string          `db:"original_text"`
	GeneratedQueryDescription string          `db:"generated_query_description"`
	QueryKind                 string          `db:"query_kind"`
	CollectionsOrTables       json.RawMessage `db:"collections_or_tables"`
	ExecutionMillis           int64           `db:"execution_millis"`
	ResultCount               int64           `db:"result_count"`
	Succeeded                 bool            `db:"succeeded"`
	Feedback                  string          `db:"feedback"`
	ContextTags               json.RawMessage `db:"context_tags"`
	PatternLabel              string          `db:"pattern_label"`
	Timestamp                 time.Time       `db:"timestamp"`
}

// QueryKind enumerates MemoryRecord.queryKind (spec.md §3).
const (
	QueryKindRead         = "read"
	QueryKindReadOne      = "readOne"
	QueryKindCount        = "count"
	QueryKindAggregate    = "aggregate"
	QueryKindSQL          = "sql"
	QueryKindInsert       = "insert"
	QueryKindUpdate       = "update"
	QueryKindDelete       = "delete"
	QueryKindConversation = "conversation"
)

// Feedback values (spec.md §3).
const (
	FeedbackPositive = "+"
	FeedbackNegative = "-"
)

// UserProfileRow is the persisted form of a UserProfile (spec.md §3).
type UserProfileRow struct {
	UserID              string          `db:"user_id"`
	FrequentCollections json.RawMessage `db:"frequent_collections"`
	PatternCounters     json.RawMessage `db:"pattern_counters"`
	SkillLevel          string          `db:"skill_level"`
	PreferredDetail     string          `db:"preferred_detail"`
	CommonMistakes      json.RawMessage `db:"common_mistakes"`
}

// Skill levels (spec.md §3, thresholds in §4.7).
const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
)

// Detail preference (spec.md §3).
const (
	DetailBrief   = "brief"
	DetailVerbose = "verbose"
)

// PatternCounter is one decoded entry of UserProfileRow.PatternCounters.
type PatternCounter struct {
	Label    string    `json:"label"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"lastUsed"`
}

// SchemaRegistryRow is the persisted form of a SchemaSnapshot keyed by
// dbKey (spec.md §4.3).
type SchemaRegistryRow struct {
	DBKey     string          `db:"db_key"`
	Snapshot  json.RawMessage `db:"snapshot"`
	LastBuilt time.Time       `db:"last_built"`
}
