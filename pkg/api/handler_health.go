package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.storageDB.PingContext(reqCtx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
	}

	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: s.version})
}
