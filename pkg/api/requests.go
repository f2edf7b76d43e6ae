package api

// QueryRequest is the HTTP request body for POST /api/v1/query
// (spec.md §6 "Query endpoint").
type QueryRequest struct {
	Query         string `json:"query"`
	DBURL         string `json:"dbUrl"`
	DBType        string `json:"dbType,omitempty"`
	DryRun        bool   `json:"dryRun,omitempty"`
	RefreshSchema bool   `json:"refreshSchema,omitempty"`
	Insight       bool   `json:"insight,omitempty"`
}

// FeedbackRequest is the HTTP request body for POST /api/v1/feedback
// (spec.md §6 "Feedback endpoint — {queryId, feedback}").
type FeedbackRequest struct {
	QueryID  string `json:"queryId"`
	Feedback string `json:"feedback"`
}
