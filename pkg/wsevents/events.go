// Package wsevents implements the real-time WebSocket surface (spec.md
// §6 "Real-time (WebSocket) surface"): a per-connection event
// dispatcher over the Session Manager, grounded on the teacher's
// pkg/events.ConnectionManager connection-registry pattern (register/
// unregister, per-connection send helpers) adapted from its
// channel-fanout/NOTIFY design to this spec's simpler per-session
// request/response model.
package wsevents

import (
	"github.com/nlquery/dbagent/pkg/response"
	"github.com/nlquery/dbagent/pkg/storage"
)

// Client→server event types (spec.md §6).
const (
	ClientJoinSession = "join-session"
	ClientSendMessage = "send-message"
	ClientTyping      = "typing"
	ClientCreate      = "create"
	ClientGet         = "get"
	ClientDelete      = "delete"
)

// Server→client event types (spec.md §6).
const (
	ServerSessionJoined   = "session-joined"
	ServerMessageReceived = "message-received"
	ServerAgentThinking   = "agent-thinking"
	ServerAgentResponse   = "agent-response"
	ServerTypingIndicator = "typing-indicator"
	ServerSessionsList    = "sessions-list"
	ServerSessionCreated  = "session-created"
	ServerSessionDeleted  = "session-deleted"
	ServerError           = "error"
)

// Error codes surfaced in ServerError events (spec.md §7 error taxonomy).
const (
	CodeSessionNotFound = "SessionNotFound"
	CodeUnauthorized    = "Unauthorized"
	CodeSessionCapped   = "SessionCapExceeded"
	CodeBadInput        = "BadInput"
	CodeInternal        = "InternalError"
)

// ClientEvent is the JSON shape of every client→server message
// (spec.md §6 "join-session {sessionId, userId}; send-message
// {sessionId, message, dbUrl?, dbType?, dryRun?}; typing {sessionId,
// isTyping}; session lifecycle events (create/get/delete)").
type ClientEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Message   string `json:"message,omitempty"`
	DBURL     string `json:"dbUrl,omitempty"`
	DBType    string `json:"dbType,omitempty"`
	DryRun    bool   `json:"dryRun,omitempty"`
	IsTyping  bool   `json:"isTyping,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ServerEvent is the JSON shape of every server→client message. Only
// the fields relevant to Type are populated.
type ServerEvent struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	Session   *storage.SessionRow  `json:"session,omitempty"`
	Sessions  []storage.SessionRow `json:"sessions,omitempty"`
	Response  *response.Response   `json:"response,omitempty"`
	IsTyping  bool                 `json:"isTyping,omitempty"`
	Message   string               `json:"message,omitempty"`
	Code      string               `json:"code,omitempty"`
}

func errorEvent(message, code string) ServerEvent {
	return ServerEvent{Type: ServerError, Message: message, Code: code}
}
