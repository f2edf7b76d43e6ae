package api

import "github.com/nlquery/dbagent/pkg/response"

// QueryResponse is the HTTP response body for POST /api/v1/query: the
// core Response envelope (spec.md §6) plus queryId, the handle the
// client needs to submit Feedback endpoint calls against this turn.
type QueryResponse struct {
	response.Response
	QueryID string `json:"queryId,omitempty"`
}

// ErrorResponse is the HTTP error body shape (spec.md §7 "Error shape:
// {message: '<ErrorKind>: <detail>'}").
type ErrorResponse struct {
	Message string `json:"message"`
}

// FeedbackResponse is returned by POST /api/v1/feedback.
type FeedbackResponse struct {
	QueryID string `json:"queryId"`
	Status  string `json:"status"`
}

// StatusResponse is returned by GET /api/v1/status (spec.md §6 "Status
// endpoint — returns capability list").
type StatusResponse struct {
	DBKind       string   `json:"dbKind"`
	Capabilities []string `json:"capabilities"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
