package api

import (
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/pool"
)

func TestMapPipelineError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
	}{
		{
			name:       "unsupported endpoint maps to 400",
			err:        fmt.Errorf("wrap: %w", &dbendpoint.ErrUnsupportedEndpoint{Scheme: "ftp"}),
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "connection failed maps to 502",
			err:        &pool.ConnectionFailed{Reason: fmt.Errorf("dial tcp: timeout")},
			expectCode: http.StatusBadGateway,
		},
		{
			name:       "bad input prefix maps to 400",
			err:        fmt.Errorf("BadInput: query must be between 3 and 500 characters, got 1"),
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("unexpected failure"),
			expectCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapPipelineError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
		})
	}
}
