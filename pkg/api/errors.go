package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/pool"
)

// mapPipelineError maps a pipeline framing error (spec.md §7 error
// taxonomy: BadInput, UnsupportedEndpoint, ConnectionFailed) to an
// HTTP response. Every framing error already renders as "<ErrorKind>:
// <detail>" via its Error() method, so the body message is the error
// text verbatim (spec.md §6 "Error shape").
func mapPipelineError(err error) *echo.HTTPError {
	var unsupported *dbendpoint.ErrUnsupportedEndpoint
	var connFailed *pool.ConnectionFailed
	switch {
	case errors.As(err, &unsupported):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.As(err, &connFailed):
		return echo.NewHTTPError(http.StatusBadGateway, ErrorResponse{Message: err.Error()})
	case strings.HasPrefix(err.Error(), "BadInput:"):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	default:
		slog.Error("unexpected pipeline error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
	}
}
