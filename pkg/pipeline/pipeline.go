// Package pipeline implements the Agent Execution Pipeline (spec.md
// §2 "Plan -> Execute -> Analyze"): wires the Connection Pool, Schema
// Registry, Capability Profiler/Keyword Matcher, Memory Store,
// Planner, Executor, Safety Gate, and Response Shaper into one
// request-scoped flow, grounded on the teacher's pkg/agent/base_agent.go
// orchestration shape (resolve context, run iterations, record
// outcome) generalized from "agent processes an alert" to "agent
// answers a natural-language data request".
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nlquery/dbagent/pkg/capability"
	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/executor"
	"github.com/nlquery/dbagent/pkg/llmclient"
	"github.com/nlquery/dbagent/pkg/memorystore"
	"github.com/nlquery/dbagent/pkg/planner"
	"github.com/nlquery/dbagent/pkg/pool"
	"github.com/nlquery/dbagent/pkg/response"
	"github.com/nlquery/dbagent/pkg/safety"
	"github.com/nlquery/dbagent/pkg/schema"
	"github.com/nlquery/dbagent/pkg/session"
	"github.com/nlquery/dbagent/pkg/storage"
)

// Config bundles the pipeline's policy knobs, sourced from pkg/config.
type Config struct {
	DefaultRowCap     int64
	QueryTimeout      time.Duration
	PreflightTimeout  time.Duration
	RedactSQL         bool
	RelationalDialect string // unused directly; dialect is derived per-request from Kind
}

// Pipeline implements session.TurnExecutor and the standalone,
// session-less single-turn flow used by the HTTP Query endpoint
// (spec.md §6).
type Pipeline struct {
	cfg Config

	pool     *pool.Pool
	registry *schema.Registry
	memory   *memorystore.Store

	planner  *planner.Planner
	executor *executor.Executor
	shaper   *response.Shaper

	logger *slog.Logger
}

// New builds a Pipeline.
func New(cfg Config, p *pool.Pool, registry *schema.Registry, memory *memorystore.Store, oracle llmclient.Oracle, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		pool:     p,
		registry: registry,
		memory:   memory,
		planner:  planner.New(oracle),
		executor: executor.New(oracle),
		shaper:   response.New(oracle),
		logger:   logger,
	}
}

// Request is a single-turn input, independent of any session (spec.md
// §6 Query endpoint body).
type Request struct {
	UserID        string
	Text          string
	DBURL         string
	DBKind        string
	DryRun        bool
	RefreshSchema bool
	Verbose       bool
}

// Result is what Execute hands back.
type Result struct {
	AgentText      string
	Response       response.Response
	ResolvedDBKind string
	ResolvedDBURL  string
	QueryDescr     string
	QueryID        string
}

var _ session.TurnExecutor = (*Pipeline)(nil)

// ExecuteTurn adapts a session turn to Execute, implementing
// session.TurnExecutor (spec.md §4.8 "send ... drives the Agent
// Execution Pipeline").
func (p *Pipeline) ExecuteTurn(ctx context.Context, req session.TurnRequest) (session.TurnResult, error) {
	dbURL := req.DBEndpointOverride
	if dbURL == "" {
		dbURL = req.LastDBEndpoint
	}

	result, err := p.Execute(ctx, Request{
		UserID: req.UserID, Text: req.Text, DBURL: dbURL, DBKind: req.LastDBKind,
		DryRun: req.DryRun, Verbose: true,
	})
	if err != nil {
		return session.TurnResult{}, err
	}

	return session.TurnResult{
		AgentText: result.AgentText,
		Metadata: storage.MessageMetadata{
			QueryKind:       queryKindLabel(result.Response),
			ExecutionMillis: result.Response.ExecutionMillis,
			DataRetrieved:   len(result.Response.Data) > 0,
		},
		ResolvedDBKind: result.ResolvedDBKind,
		ResolvedDBURL:  result.ResolvedDBURL,
		QueryDescr:     result.QueryDescr,
		Response:       result.Response,
	}, nil
}

// Execute runs the full Plan -> Execute -> Analyze flow for one
// request (spec.md §2). Framing errors (BadInput, UnsupportedEndpoint,
// ConnectionFailed) abort the request and are returned directly;
// within-pipeline failures are captured per-step and never surface as
// a Go error (spec.md §7 "Propagation policy").
func (p *Pipeline) Execute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if planner.IsConversational(req.Text) {
		return p.executeConversational(ctx, req, start), nil
	}

	if err := validateText(req.Text); err != nil {
		return Result{}, err
	}

	ep, err := dbendpoint.New(req.DBURL, dbendpoint.Kind(req.DBKind))
	if err != nil {
		return Result{}, err
	}

	handle, err := p.pool.Acquire(ctx, ep)
	if err != nil {
		return Result{}, err
	}

	dbKey := ep.Key()
	snap, schemaJSON := p.loadSchema(ctx, dbKey, req.RefreshSchema, handle)

	capabilities := capability.Profile(snap)
	capabilitiesString := capability.CapabilitiesString(capabilities)
	tokens := capability.Tokenize(req.Text)
	candidates := capability.MatchCandidates(snap, tokens)
	candidateNames := make([]string, len(candidates))
	for i, c := range candidates {
		candidateNames[i] = c.Name
	}

	insights, err := p.memory.InsightsFor(ctx, req.UserID, "")
	if err != nil {
		p.logger.Warn("failed to load memory insights", "user_id", req.UserID, "error", err)
	}

	plan := p.planner.Plan(ctx, planner.Request{
		UserText: req.Text, SchemaJSON: schemaJSON, MemoryInsights: insightsString(insights),
		CapabilitiesString: capabilitiesString, KeywordCandidates: candidateNames, Kind: string(ep.Kind),
	})

	runCfg := executor.RunConfig{
		Kind: ep.Kind, Candidates: candidateNames, SchemaJSON: schemaJSON,
		MemoryInsights: insightsString(insights), DryRun: req.DryRun,
		DocumentGateCfg:   safety.DocumentGateConfig{DefaultRowCap: p.cfg.DefaultRowCap, Sensitive: snap.SensitiveFieldNames()},
		RelationalGateCfg: safety.RelationalGateConfig{Dialect: relationalDialect(ep.Kind), StatementTimeout: p.cfg.QueryTimeout, RedactSQL: p.cfg.RedactSQL, DefaultRowCap: p.cfg.DefaultRowCap},
		DocumentRunner:    p.documentRunnerFor(handle),
		RelationalRunner:  p.relationalRunnerFor(handle),
	}
	results := p.executor.Run(ctx, plan, runCfg)

	elapsed := time.Since(start).Milliseconds()
	resp := p.shaper.Shape(ctx, response.Request{
		Verbose: req.Verbose, DryRun: req.DryRun, Query: req.Text, Plan: plan, Steps: results,
		MemoryInsights: insights, Suggestions: suggestionsFrom(candidateNames, results), ExecutionMillis: elapsed,
	})

	queryID := p.recordMemory(ctx, req.UserID, dbKey, req.Text, results, elapsed)

	return Result{
		AgentText:      resp.Message,
		Response:       resp,
		ResolvedDBKind: string(ep.Kind),
		ResolvedDBURL:  dbendpoint.StripCredentials(ep.URL),
		QueryDescr:     describeQuery(results),
		QueryID:        queryID,
	}, nil
}

// minQueryLen/maxQueryLen bound the query text (spec.md §6 "query:
// string (3..500 chars)", §8 "Query length exactly 3 and exactly 500
// chars accepted; 2 and 501 rejected with BadInput").
const (
	minQueryLen = 3
	maxQueryLen = 500
)

func validateText(text string) error {
	n := len(strings.TrimSpace(text))
	if n < minQueryLen || n > maxQueryLen {
		return fmt.Errorf("BadInput: query must be between %d and %d characters, got %d", minQueryLen, maxQueryLen, n)
	}
	return nil
}

// Capabilities resolves dbURL/dbKind to a live handle, loads its
// schema snapshot, and returns the Capability Profiler's verdict
// (spec.md §6 "Status endpoint — returns capability list"). It never
// records a memory turn; this is a read-only introspection call.
func (p *Pipeline) Capabilities(ctx context.Context, dbURL, dbKind string) (resolvedKind string, capabilities []string, err error) {
	ep, err := dbendpoint.New(dbURL, dbendpoint.Kind(dbKind))
	if err != nil {
		return "", nil, err
	}

	handle, err := p.pool.Acquire(ctx, ep)
	if err != nil {
		return "", nil, err
	}

	snap, _ := p.loadSchema(ctx, ep.Key(), false, handle)
	caps := capability.Profile(snap)
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return string(ep.Kind), names, nil
}

func (p *Pipeline) executeConversational(ctx context.Context, req Request, start time.Time) Result {
	reply := planner.ConversationalReply(req.Text)
	resp := response.Response{Message: reply, Success: true}
	if req.Verbose {
		resp.ExecutionMillis = time.Since(start).Milliseconds()
	}

	queryID, err := p.memory.RecordTurn(ctx, memorystore.TurnOutcome{
		UserID: req.UserID, OriginalText: req.Text, QueryKind: storage.QueryKindConversation,
		CollectionsOrTables: []string{"n/a"}, Succeeded: true, ExecutionMillis: resp.ExecutionMillis,
	})
	if err != nil {
		p.logger.Warn("failed to record conversational memory turn", "user_id", req.UserID, "error", err)
	}

	return Result{AgentText: reply, Response: resp, QueryDescr: "", QueryID: queryID}
}

// loadSchema fetches (or degrades past) the schema snapshot for dbKey
// (spec.md §7 "SchemaBuildFailed ... treat schema as empty array,
// continue; log warning").
func (p *Pipeline) loadSchema(ctx context.Context, dbKey string, refresh bool, handle pool.Handle) (schema.Snapshot, string) {
	schemaJSON, err := p.registry.GetOrBuild(ctx, dbKey, refresh, func(ctx context.Context) (schema.Snapshot, error) {
		return buildSchema(ctx, handle)
	})
	if err != nil {
		p.logger.Warn("schema build failed, degrading to empty schema", "db_key", dbKey, "error", err)
		return schema.Snapshot{}, "{}"
	}

	var snap schema.Snapshot
	if decodeErr := json.Unmarshal([]byte(schemaJSON), &snap); decodeErr != nil {
		p.logger.Warn("failed to decode schema snapshot", "db_key", dbKey, "error", decodeErr)
		return schema.Snapshot{}, schemaJSON
	}
	return snap, schemaJSON
}

func (p *Pipeline) documentRunnerFor(handle pool.Handle) executor.DocumentRunner {
	h, ok := handle.(*pool.MongoHandle)
	if !ok {
		return nil
	}
	return &timeoutDocumentRunner{inner: newMongoRunner(h.Client.Database(h.Database)), timeout: p.cfg.QueryTimeout}
}

func (p *Pipeline) relationalRunnerFor(handle pool.Handle) executor.RelationalRunner {
	switch h := handle.(type) {
	case *pool.SQLAHandle:
		return &timeoutRelationalRunner{inner: &sqlRunner{db: h.DB}, timeout: p.cfg.QueryTimeout}
	case *pool.SQLBHandle:
		return &timeoutRelationalRunner{inner: &sqlRunner{db: h.DB}, timeout: p.cfg.QueryTimeout}
	default:
		return nil
	}
}

func (p *Pipeline) recordMemory(ctx context.Context, userID, dbKey, text string, results []executor.StepResult, elapsed int64) string {
	final, hasFinal := executor.FinalData(results)
	succeeded := hasFinal && final.Status == executor.StatusOk && !anyDBQueryFailed(results)

	outcome := memorystore.TurnOutcome{
		UserID: userID, DBKey: dbKey, OriginalText: text,
		GeneratedQueryDescription: describeQuery(results),
		QueryKind:                 queryKindFromResults(results, text),
		CollectionsOrTables:       collectionsFromResults(results),
		ExecutionMillis:           elapsed,
		ResultCount:               final.TotalCount,
		Succeeded:                 succeeded,
		PatternLabel:              patternLabelFromResults(results),
	}
	queryID, err := p.memory.RecordTurn(ctx, outcome)
	if err != nil {
		p.logger.Warn("failed to record memory turn", "user_id", userID, "error", err)
	}
	return queryID
}

func anyDBQueryFailed(results []executor.StepResult) bool {
	for _, r := range results {
		if r.Kind == planner.KindDBQuery && r.Status == executor.StatusErr {
			return true
		}
	}
	return false
}

func describeQuery(results []executor.StepResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].ExecutedQuery != nil {
			return results[i].ExecutedQuery.Description
		}
	}
	if len(results) == 0 {
		return ""
	}
	return results[len(results)-1].Output
}

func collectionsFromResults(results []executor.StepResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range results {
		if r.ExecutedQuery == nil || r.ExecutedQuery.Collection == "" {
			continue
		}
		if !seen[r.ExecutedQuery.Collection] {
			seen[r.ExecutedQuery.Collection] = true
			out = append(out, r.ExecutedQuery.Collection)
		}
	}
	return out
}

// queryKindFromResults derives the MemoryRecord queryKind from the
// last dbQuery step's executed operation; falls back to a keyword
// sniff over the user text when the step failed without recording a
// trace (e.g. the Safety Gate rejected the synthesized query, spec.md
// §8 scenario 1).
func queryKindFromResults(results []executor.StepResult, text string) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Kind != planner.KindDBQuery {
			continue
		}
		if results[i].ExecutedQuery != nil {
			return operationToQueryKind(results[i].ExecutedQuery.Operation)
		}
		return keywordQueryKind(text)
	}
	return storage.QueryKindRead
}

func operationToQueryKind(operation string) string {
	switch operation {
	case string(safety.OpFind):
		return storage.QueryKindRead
	case string(safety.OpFindOne):
		return storage.QueryKindReadOne
	case string(safety.OpCount):
		return storage.QueryKindCount
	case string(safety.OpAggregate):
		return storage.QueryKindAggregate
	case string(safety.OpInsertOne):
		return storage.QueryKindInsert
	case string(safety.OpUpdateOne):
		return storage.QueryKindUpdate
	case string(safety.OpDeleteOne):
		return storage.QueryKindDelete
	case "sql":
		return storage.QueryKindSQL
	default:
		return storage.QueryKindRead
	}
}

func keywordQueryKind(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "delete"), strings.Contains(lower, "remove"):
		return storage.QueryKindDelete
	case strings.Contains(lower, "update"), strings.Contains(lower, "change"), strings.Contains(lower, "set "):
		return storage.QueryKindUpdate
	case strings.Contains(lower, "insert"), strings.Contains(lower, "add "), strings.Contains(lower, "create "):
		return storage.QueryKindInsert
	default:
		return storage.QueryKindRead
	}
}

// patternLabelFromResults extracts the Safety Gate rule name from a
// failed dbQuery step's output, or the executed operation on success,
// for the Memory Store's pattern counters / commonMistakes (spec.md
// §4.7).
func patternLabelFromResults(results []executor.StepResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Kind != planner.KindDBQuery {
			continue
		}
		if results[i].Status == executor.StatusErr {
			return safetyRuleFromOutput(results[i].Output)
		}
		if results[i].ExecutedQuery != nil {
			return results[i].ExecutedQuery.Operation
		}
	}
	return ""
}

func safetyRuleFromOutput(output string) string {
	const prefix = "safety gate rejected: "
	if !strings.HasPrefix(output, prefix) {
		return "execution_error"
	}
	rest := strings.TrimPrefix(output, prefix)
	if idx := strings.Index(rest, ": "); idx != -1 {
		return rest[:idx]
	}
	return rest
}

func queryKindLabel(resp response.Response) string {
	if len(resp.ExecutedQueries) == 0 {
		return storage.QueryKindConversation
	}
	return operationToQueryKind(resp.ExecutedQueries[len(resp.ExecutedQueries)-1].Operation)
}

// suggestionsFrom proposes follow-up questions for matched
// tables/collections the plan never touched (spec.md §4.9
// "suggestions" — content left to the implementation).
func suggestionsFrom(candidateNames []string, results []executor.StepResult) []string {
	touched := map[string]bool{}
	for _, r := range results {
		if r.ExecutedQuery != nil && r.ExecutedQuery.Collection != "" {
			touched[r.ExecutedQuery.Collection] = true
		}
	}
	var out []string
	for _, name := range candidateNames {
		if !touched[name] {
			out = append(out, fmt.Sprintf("Try asking about %s", name))
		}
	}
	return out
}

func relationalDialect(kind dbendpoint.Kind) string {
	if kind == dbendpoint.KindSQLB {
		return "mysql"
	}
	return "postgres"
}

func insightsString(insights memorystore.Insights) string {
	return fmt.Sprintf("skillLevel=%s similarQueries=%d patternLabel=%s preferredDetail=%s",
		insights.SkillLevel, insights.SimilarQueries, insights.PatternLabel, insights.PreferredDetail)
}
