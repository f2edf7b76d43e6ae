// Package api provides the HTTP and WebSocket surface for the
// natural-language-to-database agent (spec.md §6).
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/nlquery/dbagent/pkg/memorystore"
	"github.com/nlquery/dbagent/pkg/pipeline"
	"github.com/nlquery/dbagent/pkg/wsevents"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	pipeline  *pipeline.Pipeline
	memory    *memorystore.Store
	hub       *wsevents.Hub
	storageDB *sqlx.DB
	version   string
}

// NewServer creates a new API server with Echo v5, grounded on the
// teacher's pkg/api/server.go wiring shape.
func NewServer(p *pipeline.Pipeline, memory *memorystore.Store, hub *wsevents.Hub, storageDB *sqlx.DB, version string) *Server {
	e := echo.New()

	s := &Server{
		echo:      e,
		pipeline:  p,
		memory:    memory,
		hub:       hub,
		storageDB: storageDB,
		version:   version,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	// Server-wide body size limit (2 MB), well above the 500-char query
	// body, to reject oversized payloads at the HTTP read level.
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.queryHandler)
	v1.POST("/feedback", s.feedbackHandler)
	v1.GET("/status", s.statusHandler)
	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address. It blocks until
// the server stops; callers run it in its own goroutine.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
