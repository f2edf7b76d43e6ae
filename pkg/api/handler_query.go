package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nlquery/dbagent/pkg/pipeline"
)

// queryHandler handles POST /api/v1/query (spec.md §6 "Query endpoint").
func (s *Server) queryHandler(c *echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "BadInput: " + err.Error()})
	}

	result, err := s.pipeline.Execute(c.Request().Context(), pipeline.Request{
		UserID:        extractAuthor(c),
		Text:          req.Query,
		DBURL:         req.DBURL,
		DBKind:        req.DBType,
		DryRun:        req.DryRun,
		RefreshSchema: req.RefreshSchema,
		Verbose:       req.Insight,
	})
	if err != nil {
		return mapPipelineError(err)
	}

	return c.JSON(http.StatusOK, QueryResponse{Response: result.Response, QueryID: result.QueryID})
}
