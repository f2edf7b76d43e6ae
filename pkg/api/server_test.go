package api

import (
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestSetupRoutesRegistersExpectedEndpoints(t *testing.T) {
	s := &Server{echo: echo.New()}
	s.setupRoutes()

	routes := s.echo.Routes()

	want := map[string]bool{
		"GET /health":           false,
		"POST /api/v1/query":    false,
		"POST /api/v1/feedback": false,
		"GET /api/v1/status":    false,
		"GET /api/v1/ws":        false,
	}

	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}

	for key, found := range want {
		assert.True(t, found, "expected route %q to be registered", key)
	}
}
