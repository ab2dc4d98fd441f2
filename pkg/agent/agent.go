// Package agent runs user requests through the query graph: schema dump,
// service planning, the SQL generate/validate/execute loop with refinement
// and widening, search-result enrichment, and final response synthesis.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datanaut-ai/datanaut/pkg/agent/prompt"
	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/graph"
	"github.com/datanaut-ai/datanaut/pkg/history"
	"github.com/datanaut-ai/datanaut/pkg/llm"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

const (
	// MaxRefineAttempts caps the repair loop for failing SQL.
	MaxRefineAttempts = 5
	// MaxWidenAttempts caps the broadening loop for empty results.
	MaxWidenAttempts = 5
	// MaxCustomPromptLen bounds the custom system prompt of one request.
	MaxCustomPromptLen = 5000
)

var (
	// ErrPromptTooLong rejects envelopes whose custom system prompt exceeds
	// MaxCustomPromptLen. Rejection happens before the graph runs.
	ErrPromptTooLong = errors.New("custom system prompt too long")
	// ErrUnknownDatabase rejects envelopes naming a database that is not
	// configured.
	ErrUnknownDatabase = errors.New("unknown database")
)

// emptyRequestResponse is returned without any LLM involvement.
const emptyRequestResponse = "I'm sorry, I can't work with an empty request. Please describe what you would like to find out."

// DatabaseRunner is the database surface the nodes use. *database.Manager
// implements it.
type DatabaseRunner interface {
	Names() []string
	Len() int
	Schema(ctx context.Context, name string) (map[string]state.TableSchema, error)
	DumpAll(ctx context.Context) (map[string]state.TableSchema, map[string]string, map[string]error)
	QueryAll(ctx context.Context, names []string, query string) (map[string][]map[string]any, map[string]error)
}

// ServiceCaller invokes workers through the uniform result envelope.
// *adapter.Adapter implements it.
type ServiceCaller interface {
	Call(ctx context.Context, serviceID, action string, params map[string]any) state.ServiceResult
	CallByType(ctx context.Context, serviceType, action string, params map[string]any) state.ServiceResult
}

// ServiceDiscoverer lists live workers. *registry.Client implements it.
type ServiceDiscoverer interface {
	Discover(ctx context.Context) ([]registry.ServiceInfo, error)
}

// RunRecorder persists completed runs. *history.Store implements it.
type RunRecorder interface {
	Record(ctx context.Context, run *history.Run) error
}

// Dependencies carries everything the nodes call out to. Config, LLM,
// Databases and Adapter are required; Registry and History are optional.
type Dependencies struct {
	Config    *config.Config
	LLM       llm.Client
	Databases DatabaseRunner
	Adapter   ServiceCaller
	Registry  ServiceDiscoverer
	History   RunRecorder
	Logger    *slog.Logger
}

// Agent owns the compiled query graph and the dependencies its nodes use.
// One Agent serves concurrent runs; per-run state lives in the AgentState
// value threaded through the graph.
type Agent struct {
	deps   Dependencies
	prompt *prompt.Builder
	graph  *graph.Graph[state.AgentState]
	logger *slog.Logger
}

// New validates the dependencies and compiles the query graph.
func New(deps Dependencies) (*Agent, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("agent: Config is required")
	case deps.LLM == nil:
		return nil, fmt.Errorf("agent: LLM is required")
	case deps.Databases == nil:
		return nil, fmt.Errorf("agent: Databases is required")
	case deps.Adapter == nil:
		return nil, fmt.Errorf("agent: Adapter is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	a := &Agent{
		deps:   deps,
		prompt: prompt.NewBuilder(),
		logger: deps.Logger.With("component", "agent"),
	}
	g, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("compile query graph: %w", err)
	}
	a.graph = g
	return a, nil
}

// Request is one query-run submission.
type Request struct {
	UserRequest        string
	CustomSystemPrompt string
	// DisableSQLBlocking overrides the configured default when non-nil.
	DisableSQLBlocking *bool
	// DatabaseName restricts SQL execution to one configured database.
	DatabaseName string
}

// Run walks one request through the graph and returns the terminal state.
// FinalResponse is always populated, apologetic runs included. The error is
// non-nil only for rejected envelopes, cancellation, and graph wiring
// faults.
func (a *Agent) Run(ctx context.Context, req Request) (state.AgentState, error) {
	if len(req.CustomSystemPrompt) > MaxCustomPromptLen {
		return state.AgentState{}, fmt.Errorf("%w: %d characters (limit %d)",
			ErrPromptTooLong, len(req.CustomSystemPrompt), MaxCustomPromptLen)
	}
	if req.DatabaseName != "" && !slices.Contains(a.deps.Databases.Names(), req.DatabaseName) {
		return state.AgentState{}, fmt.Errorf("%w: %q", ErrUnknownDatabase, req.DatabaseName)
	}

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	start := time.Now()

	initial := *state.New(strings.TrimSpace(req.UserRequest))
	initial.CustomSystemPrompt = req.CustomSystemPrompt
	initial.DatabaseName = req.DatabaseName
	initial.RegistryURL = a.deps.Config.RegistryURL
	initial.DisableDatabases = a.deps.Config.DisableDatabases || a.deps.Databases.Len() == 0
	initial.DisableSQLBlocking = a.deps.Config.DisableSQLBlocking()
	if req.DisableSQLBlocking != nil {
		initial.DisableSQLBlocking = *req.DisableSQLBlocking
	}

	if initial.UserRequest == "" {
		logger.Info("Empty request, answering without the graph")
		initial.FinalResponse = emptyRequestResponse
		a.record(runID, initial, start)
		return initial, nil
	}

	logger.Info("Run started",
		"request_chars", len(initial.UserRequest),
		"databases_disabled", initial.DisableDatabases,
		"sql_blocking_disabled", initial.DisableSQLBlocking,
		"database", initial.DatabaseName)

	final, err := a.graph.Invoke(ctx, initial, graph.RunOptions[state.AgentState]{
		OnNodeError: func(s state.AgentState, node string, err error) state.AgentState {
			logger.Error("Node failed", "node", node, "error", err)
			s.SetError(state.Classify(err), err.Error())
			return s
		},
		OnBudgetExhausted: func(s state.AgentState) state.AgentState {
			if s.FinalResponse != "" {
				return s
			}
			s.SetError(state.ErrorKindBudget, "the step budget for this request ran out before an answer converged")
			s.FinalResponse = fallbackResponse(s)
			return s
		},
		Logger: logger,
	})
	if err != nil {
		logger.Warn("Graph walk aborted", "error", err)
		if final.FinalResponse == "" {
			if _, _, active := final.ActiveError(); !active {
				final.SetError(state.Classify(err), err.Error())
			}
			final.FinalResponse = fallbackResponse(final)
		}
		a.record(runID, final, start)
		return final, err
	}

	if final.FinalResponse == "" {
		final.FinalResponse = fallbackResponse(final)
	}

	logger.Info("Run finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"sql_attempts", len(final.PreviousSQLQueries),
		"rows", len(final.DBResults),
		"service_calls", len(final.MCPServiceResults),
		"documents", len(final.RAGDocuments),
		"retries", final.RetryCount)

	a.record(runID, final, start)
	return final, nil
}

// fallbackResponse is the apologetic text used when the response model never
// ran or failed. It names the most recent recorded failure.
func fallbackResponse(s state.AgentState) string {
	if _, msg, ok := s.ActiveError(); ok {
		return fmt.Sprintf("I'm sorry, I could not complete this request. The last failure was: %s.", msg)
	}
	return "I'm sorry, I could not complete this request with the information available."
}

// record persists the finished run when a history store is configured. The
// write gets its own deadline so a cancelled run still lands in history.
func (a *Agent) record(runID string, s state.AgentState, start time.Time) {
	if a.deps.History == nil {
		return
	}

	kind := ""
	if k, _, ok := s.ActiveError(); ok {
		kind = string(k)
	}
	run := &history.Run{
		ID:            runID,
		Request:       s.UserRequest,
		DatabaseName:  s.DatabaseName,
		SQLQueries:    s.PreviousSQLQueries,
		RowCount:      len(s.DBResults),
		ServiceCalls:  len(s.MCPServiceResults),
		DocumentCount: len(s.RAGDocuments),
		FinalResponse: s.FinalResponse,
		ErrorKind:     kind,
		Duration:      time.Since(start),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.deps.History.Record(ctx, run); err != nil {
		a.logger.Warn("Run history write failed", "run_id", runID, "error", err)
	}
}
