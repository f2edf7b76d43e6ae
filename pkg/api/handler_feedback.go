package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nlquery/dbagent/pkg/storage"
)

// feedbackHandler handles POST /api/v1/feedback (spec.md §6 "Feedback
// endpoint — {queryId, feedback}").
func (s *Server) feedbackHandler(c *echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "BadInput: " + err.Error()})
	}
	if req.QueryID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "BadInput: queryId is required"})
	}
	if req.Feedback != storage.FeedbackPositive && req.Feedback != storage.FeedbackNegative {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: "BadInput: feedback must be \"+\" or \"-\""})
	}

	if err := s.memory.SetFeedback(c.Request().Context(), req.QueryID, req.Feedback); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, FeedbackResponse{QueryID: req.QueryID, Status: "recorded"})
}
