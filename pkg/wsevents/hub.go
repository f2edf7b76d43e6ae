package wsevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nlquery/dbagent/pkg/session"
	"github.com/nlquery/dbagent/pkg/storage"
)

// defaultWriteTimeout bounds a single WebSocket write (grounded on the
// teacher's ConnectionManager.writeTimeout).
const defaultWriteTimeout = 10 * time.Second

// connection is a single WebSocket client. subscriptions is read/
// written only from the connection's own read-loop goroutine, mirroring
// the teacher's single-goroutine-ownership invariant for
// Connection.subscriptions.
type connection struct {
	id            string
	userID        string
	conn          *websocket.Conn
	subscriptions map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub dispatches WebSocket client events to the Session Manager and
// fans server events back out (spec.md §6).
type Hub struct {
	manager *session.Manager
	logger  *slog.Logger

	writeTimeout time.Duration

	mu          sync.RWMutex
	connections map[string]*connection
	// sessionConns tracks which connections have joined which session,
	// so a typing/agent event can reach every tab a user has open on it.
	sessionConns map[string]map[string]bool
}

// New builds a Hub over manager.
func New(manager *session.Manager, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		manager:      manager,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		connections:  make(map[string]*connection),
		sessionConns: make(map[string]map[string]bool),
	}
}

// HandleConnection manages one WebSocket client's lifecycle until it
// disconnects. userID is the identity extracted from the verified
// bearer token at handshake time (spec.md §6 "Authentication is
// bearer-token on connection handshake"). The caller is responsible for
// accepting the WebSocket upgrade (websocket.Accept) before calling
// this, mirroring the teacher's wsHandler/ConnectionManager split.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn, userID string) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{
		id:            uuid.NewString(),
		userID:        userID,
		conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.register(c)
	defer h.unregister(c)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var evt ClientEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			h.send(c, errorEvent("malformed event payload", CodeBadInput))
			continue
		}

		h.dispatch(ctx, c, evt)
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.id] = c
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	for sessionID := range c.subscriptions {
		if subs, ok := h.sessionConns[sessionID]; ok {
			delete(subs, c.id)
			if len(subs) == 0 {
				delete(h.sessionConns, sessionID)
			}
		}
	}
	delete(h.connections, c.id)
	h.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) dispatch(ctx context.Context, c *connection, evt ClientEvent) {
	if evt.UserID != "" && evt.UserID != c.userID {
		h.send(c, errorEvent("userId does not match authenticated connection", CodeUnauthorized))
		return
	}

	switch evt.Type {
	case ClientJoinSession:
		h.handleJoin(ctx, c, evt)
	case ClientSendMessage:
		h.handleSendMessage(ctx, c, evt)
	case ClientTyping:
		h.handleTyping(c, evt)
	case ClientCreate:
		h.handleCreate(ctx, c, evt)
	case ClientGet:
		h.handleGet(ctx, c, evt)
	case ClientDelete:
		h.handleDelete(ctx, c, evt)
	default:
		h.send(c, errorEvent(fmt.Sprintf("unknown event type %q", evt.Type), CodeBadInput))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *connection, evt ClientEvent) {
	if evt.SessionID == "" {
		h.send(c, errorEvent("sessionId is required", CodeBadInput))
		return
	}
	row, err := h.manager.Join(ctx, evt.SessionID, c.userID)
	if err != nil {
		h.send(c, mapError(err))
		return
	}

	h.mu.Lock()
	c.subscriptions[row.ID] = true
	if h.sessionConns[row.ID] == nil {
		h.sessionConns[row.ID] = make(map[string]bool)
	}
	h.sessionConns[row.ID][c.id] = true
	h.mu.Unlock()

	h.send(c, ServerEvent{Type: ServerSessionJoined, SessionID: row.ID, Session: &row})
}

func (h *Hub) handleSendMessage(ctx context.Context, c *connection, evt ClientEvent) {
	if evt.SessionID == "" || evt.Message == "" {
		h.send(c, errorEvent("sessionId and message are required", CodeBadInput))
		return
	}

	h.send(c, ServerEvent{Type: ServerMessageReceived, SessionID: evt.SessionID, Message: evt.Message})
	h.broadcastSession(evt.SessionID, ServerEvent{Type: ServerAgentThinking, SessionID: evt.SessionID})

	result, err := h.manager.Send(ctx, evt.SessionID, c.userID, evt.Message, evt.DBURL, evt.DryRun)
	if err != nil {
		h.send(c, mapError(err))
		return
	}

	resp := result.Response
	h.broadcastSession(evt.SessionID, ServerEvent{Type: ServerAgentResponse, SessionID: evt.SessionID, Response: &resp})
}

func (h *Hub) handleTyping(c *connection, evt ClientEvent) {
	if evt.SessionID == "" {
		h.send(c, errorEvent("sessionId is required", CodeBadInput))
		return
	}
	h.broadcastSessionExcept(evt.SessionID, c.id, ServerEvent{
		Type: ServerTypingIndicator, SessionID: evt.SessionID, IsTyping: evt.IsTyping,
	})
}

func (h *Hub) handleCreate(ctx context.Context, c *connection, evt ClientEvent) {
	row, err := h.manager.Create(ctx, c.userID, evt.Title)
	if err != nil {
		h.send(c, mapError(err))
		return
	}
	h.send(c, ServerEvent{Type: ServerSessionCreated, SessionID: row.ID, Session: &row})
}

func (h *Hub) handleGet(ctx context.Context, c *connection, evt ClientEvent) {
	if evt.SessionID == "" {
		rows, err := h.manager.List(ctx, c.userID)
		if err != nil {
			h.send(c, mapError(err))
			return
		}
		h.send(c, ServerEvent{Type: ServerSessionsList, Sessions: rows})
		return
	}
	row, err := h.manager.Get(ctx, evt.SessionID, c.userID)
	if err != nil {
		h.send(c, mapError(err))
		return
	}
	h.send(c, ServerEvent{Type: ServerSessionJoined, SessionID: row.ID, Session: &row})
}

func (h *Hub) handleDelete(ctx context.Context, c *connection, evt ClientEvent) {
	if evt.SessionID == "" {
		h.send(c, errorEvent("sessionId is required", CodeBadInput))
		return
	}
	if err := h.manager.Delete(ctx, evt.SessionID, c.userID); err != nil {
		h.send(c, mapError(err))
		return
	}
	h.send(c, ServerEvent{Type: ServerSessionDeleted, SessionID: evt.SessionID})
}

func mapError(err error) ServerEvent {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return errorEvent(err.Error(), CodeSessionNotFound)
	case errors.Is(err, storage.ErrSessionOwnership):
		return errorEvent(err.Error(), CodeUnauthorized)
	case errors.Is(err, session.ErrSessionCapExceeded):
		return errorEvent(err.Error(), CodeSessionCapped)
	default:
		return errorEvent(err.Error(), CodeInternal)
	}
}

// broadcastSession sends evt to every connection that has joined
// sessionID.
func (h *Hub) broadcastSession(sessionID string, evt ServerEvent) {
	h.broadcastSessionExcept(sessionID, "", evt)
}

func (h *Hub) broadcastSessionExcept(sessionID, exceptConnID string, evt ServerEvent) {
	h.mu.RLock()
	var targets []*connection
	for connID := range h.sessionConns[sessionID] {
		if connID == exceptConnID {
			continue
		}
		if c, ok := h.connections[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, evt)
	}
}

func (h *Hub) send(c *connection, evt ServerEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("failed to marshal ws event", "connection_id", c.id, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(c.ctx, h.writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Warn("failed to send ws event", "connection_id", c.id, "error", err)
	}
}
