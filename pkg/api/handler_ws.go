package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to
// the wsevents Hub. Grounded on the teacher's real wired path
// (pkg/api/handler_ws.go + pkg/events.ConnectionManager), adapted from
// a channel-fanout event bus to this spec's per-session chat Hub.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.hub == nil {
		return echo.NewHTTPError(503, "WebSocket not available")
	}

	userID := extractAuthor(c)

	// Phase 3.4-equivalent posture, matching the teacher's current
	// state: origin validation deferred, accept all origins.
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.hub.HandleConnection(c.Request().Context(), conn, userID)
	return nil
}
