package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// statusHandler handles GET /api/v1/status (spec.md §6 "Status
// endpoint — returns capability list"). dbUrl/dbType are taken from
// the query string since status is a read-only introspection call,
// not a query submission.
func (s *Server) statusHandler(c *echo.Context) error {
	dbURL := c.QueryParam("dbUrl")
	dbType := c.QueryParam("dbType")
	if dbURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "BadInput: dbUrl is required"})
	}

	kind, capabilities, err := s.pipeline.Capabilities(c.Request().Context(), dbURL, dbType)
	if err != nil {
		return mapPipelineError(err)
	}

	return c.JSON(http.StatusOK, StatusResponse{DBKind: kind, Capabilities: capabilities})
}
