// Package session implements the Session Manager (spec.md §4.8):
// join/send/list/create/delete over persisted Sessions and
// ChatMessages, ownership checks, the bounded recentQueries window,
// and the housekeeping sweep that ages sessions from active to idle
// and eventually expired.
//
// Unlike the teacher's in-memory pkg/session, state is persisted via
// pkg/storage (grounded on the teacher's pkg/services.SessionService,
// which layers the same operations — CreateSession, GetSession,
// UpdateSessionStatus, housekeeping via FindOrphanedSessions/
// SoftDeleteOldSessions — over ent instead of sqlx).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nlquery/dbagent/pkg/response"
	"github.com/nlquery/dbagent/pkg/storage"
)

// ErrSessionCapExceeded is returned by Join/Create when userID already
// owns the maximum number of non-deleted sessions (spec.md §4.8 "join
// ... subject to per-user session cap").
var ErrSessionCapExceeded = errors.New("per-user session cap exceeded")

// defaultMaxSessionsPerUser bounds how many concurrent sessions one
// user may hold open. The spec leaves the exact number to the
// implementation; 50 comfortably covers one user's multi-tab usage
// without letting a runaway client exhaust storage.
const defaultMaxSessionsPerUser = 50

// recentQueriesWindow bounds Session.context.recentQueries (spec.md §3).
const recentQueriesWindow = 5

// TurnExecutor drives the Agent Execution Pipeline for one user turn
// (spec.md §4.8 "send ... drives the Agent Execution Pipeline"). It is
// an interface rather than a direct pkg/pipeline dependency so
// pkg/pipeline can depend on pkg/session without a cycle.
type TurnExecutor interface {
	ExecuteTurn(ctx context.Context, req TurnRequest) (TurnResult, error)
}

// TurnRequest bundles what a TurnExecutor needs to process one turn.
type TurnRequest struct {
	SessionID          string
	UserID             string
	Text               string
	DBEndpointOverride string
	LastDBEndpoint     string
	LastDBKind         string
	DryRun             bool
}

// TurnResult is what the TurnExecutor hands back for persistence and
// session-context updates. Response carries the full Response Shaper
// output (spec.md §4.9) so the WebSocket/HTTP layer can surface it
// verbatim in an agent-response event or HTTP reply.
type TurnResult struct {
	AgentText      string
	Metadata       storage.MessageMetadata
	ResolvedDBKind string
	ResolvedDBURL  string
	QueryDescr     string
	Response       response.Response
}

// Config configures a Manager's policy knobs.
type Config struct {
	MaxSessionsPerUser int
	IdleTimeout        time.Duration
	ExpiryWindow       time.Duration
	SweepInterval      time.Duration
}

// DefaultConfig matches spec.md §4.8's defaults: inactivity window 30
// days, housekeeping sweep every 30 minutes. IdleTimeout (the
// soft-close timeout) is a separate, shorter knob left to the
// deployment; 30 minutes is a reasonable default for an idle chat tab.
func DefaultConfig() Config {
	return Config{
		MaxSessionsPerUser: defaultMaxSessionsPerUser,
		IdleTimeout:        30 * time.Minute,
		ExpiryWindow:       30 * 24 * time.Hour,
		SweepInterval:      30 * time.Minute,
	}
}

// Manager implements the Session Manager.
type Manager struct {
	sessions *storage.SessionRepo
	messages *storage.MessageRepo
	executor TurnExecutor
	cfg      Config
	now      func() time.Time
	newID    func() string

	logger *slog.Logger

	mu      sync.Mutex
	sweepOn bool
	stop    chan struct{}
}

// New builds a Manager. executor may be nil until pkg/pipeline wires
// one in (Send returns an error in that case rather than panicking).
func New(sessions *storage.SessionRepo, messages *storage.MessageRepo, executor TurnExecutor, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: sessions,
		messages: messages,
		executor: executor,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Create makes a new session for userID, enforcing the per-user cap
// (spec.md §4.8).
func (m *Manager) Create(ctx context.Context, userID, title string) (storage.SessionRow, error) {
	count, err := m.sessions.CountForUser(ctx, userID)
	if err != nil {
		return storage.SessionRow{}, fmt.Errorf("count sessions for user: %w", err)
	}
	if count >= m.cap() {
		return storage.SessionRow{}, ErrSessionCapExceeded
	}
	return m.sessions.Create(ctx, m.newID(), userID, title, m.now())
}

// Join returns the session, creating it if absent (subject to the
// per-user cap), and rejects cross-user access (spec.md §4.8 "join").
func (m *Manager) Join(ctx context.Context, sessionID, userID string) (storage.SessionRow, error) {
	row, err := m.sessions.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		count, cerr := m.sessions.CountForUser(ctx, userID)
		if cerr != nil {
			return storage.SessionRow{}, fmt.Errorf("count sessions for user: %w", cerr)
		}
		if count >= m.cap() {
			return storage.SessionRow{}, ErrSessionCapExceeded
		}
		row, err = m.sessions.Create(ctx, sessionID, userID, "", m.now())
		if err != nil {
			return storage.SessionRow{}, err
		}
	} else if err != nil {
		return storage.SessionRow{}, err
	} else if row.UserID != userID {
		return storage.SessionRow{}, storage.ErrSessionOwnership
	}

	if err := m.sessions.Touch(ctx, row.ID, m.now(), true); err != nil {
		return storage.SessionRow{}, fmt.Errorf("touch session: %w", err)
	}
	row.LastActivity = m.now()
	row.Active = true
	return row, nil
}

// List returns userID's non-deleted sessions, most recently active
// first.
func (m *Manager) List(ctx context.Context, userID string) ([]storage.SessionRow, error) {
	return m.sessions.ListForUser(ctx, userID)
}

// Get fetches a single session, checking ownership (spec.md §4.8 "get").
func (m *Manager) Get(ctx context.Context, sessionID, userID string) (storage.SessionRow, error) {
	return m.sessions.CheckOwnership(ctx, sessionID, userID)
}

// Delete soft-deletes a session, checking ownership (spec.md §4.8).
func (m *Manager) Delete(ctx context.Context, sessionID, userID string) error {
	return m.sessions.Delete(ctx, sessionID, userID)
}

// Messages returns a session's message history, most recent `limit`
// (0 = unbounded), oldest first.
func (m *Manager) Messages(ctx context.Context, sessionID, userID string, limit int) ([]storage.ChatMessageRow, error) {
	if _, err := m.sessions.CheckOwnership(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return m.messages.ListForSession(ctx, sessionID, limit)
}

// Send appends the user's ChatMessage, resolves the effective DB
// endpoint, drives the TurnExecutor, appends the agent's ChatMessage,
// and updates session context (spec.md §4.8 "send").
func (m *Manager) Send(ctx context.Context, sessionID, userID, text, dbEndpointOverride string, dryRun bool) (TurnResult, error) {
	row, err := m.sessions.CheckOwnership(ctx, sessionID, userID)
	if err != nil {
		return TurnResult{}, err
	}
	if m.executor == nil {
		return TurnResult{}, fmt.Errorf("no turn executor configured")
	}

	now := m.now()
	if err := m.messages.Append(ctx, m.newID(), sessionID, userID, text, storage.RoleUser, storage.MessageMetadata{}, now); err != nil {
		return TurnResult{}, fmt.Errorf("append user message: %w", err)
	}

	result, err := m.executor.ExecuteTurn(ctx, TurnRequest{
		SessionID: sessionID, UserID: userID, Text: text,
		DBEndpointOverride: dbEndpointOverride,
		LastDBEndpoint:     row.LastDBEndpoint, LastDBKind: row.LastDBKind,
		DryRun: dryRun,
	})
	if err != nil {
		return TurnResult{}, err
	}

	agentNow := m.now()
	if err := m.messages.Append(ctx, m.newID(), sessionID, "agent", result.AgentText, storage.RoleAgent, result.Metadata, agentNow); err != nil {
		return TurnResult{}, fmt.Errorf("append agent message: %w", err)
	}

	recent := m.appendRecentQuery(ctx, row, result.QueryDescr)
	messageCount := row.MessageCount + 2
	endpoint := result.ResolvedDBURL
	if endpoint == "" {
		endpoint = row.LastDBEndpoint
	}
	kind := result.ResolvedDBKind
	if kind == "" {
		kind = row.LastDBKind
	}
	if err := m.sessions.UpdateContext(ctx, sessionID, endpoint, kind, recent, messageCount); err != nil {
		m.logger.Warn("failed to update session context", "session_id", sessionID, "error", err)
	}
	if err := m.sessions.Touch(ctx, sessionID, agentNow, true); err != nil {
		m.logger.Warn("failed to touch session", "session_id", sessionID, "error", err)
	}

	return result, nil
}

func (m *Manager) appendRecentQuery(ctx context.Context, row storage.SessionRow, descr string) []string {
	if descr == "" {
		return storage.DecodeStringSlice(row.RecentQueries)
	}
	queries := append(storage.DecodeStringSlice(row.RecentQueries), descr)
	if len(queries) > recentQueriesWindow {
		queries = queries[len(queries)-recentQueriesWindow:]
	}
	return queries
}

func (m *Manager) cap() int {
	if m.cfg.MaxSessionsPerUser <= 0 {
		return defaultMaxSessionsPerUser
	}
	return m.cfg.MaxSessionsPerUser
}

// StartSweep launches the housekeeping sweep goroutine (spec.md §4.8
// "every 30 minutes, sessions whose lastActivity is older than the
// idle timeout are marked inactive"). Safe to call once; subsequent
// calls are no-ops. Stop via StopSweep or by cancelling ctx.
func (m *Manager) StartSweep(ctx context.Context) {
	m.mu.Lock()
	if m.sweepOn {
		m.mu.Unlock()
		return
	}
	m.sweepOn = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				m.sweepOnce(ctx)
			}
		}
	}()
}

// StopSweep halts a previously started sweep goroutine.
func (m *Manager) StopSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweepOn {
		close(m.stop)
		m.sweepOn = false
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	now := m.now()

	idleCutoff := now.Add(-m.cfg.IdleTimeout)
	idled, err := m.sessions.MarkIdle(ctx, idleCutoff)
	if err != nil {
		m.logger.Error("housekeeping sweep: mark idle failed", "error", err)
	} else if idled > 0 {
		m.logger.Info("housekeeping sweep: marked sessions idle", "count", idled)
	}

	expiryCutoff := now.Add(-m.cfg.ExpiryWindow)
	expired, err := m.sessions.MarkExpired(ctx, expiryCutoff)
	if err != nil {
		m.logger.Error("housekeeping sweep: mark expired failed", "error", err)
	} else if expired > 0 {
		m.logger.Info("housekeeping sweep: marked sessions expired", "count", expired)
	}
}
