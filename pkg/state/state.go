// Package state defines the typed agent state threaded through the query
// graph, the unified document shape evidence is normalized into, and the
// error taxonomy shared by state slots and service-call envelopes.
package state

import (
	"time"

	"github.com/datanaut-ai/datanaut/pkg/registry"
)

// SourceDatabaseKey tags every row in DBResults with the database it came
// from; the tag always matches a key of AllDBResults.
const SourceDatabaseKey = "_source_database"

// QueryType distinguishes the first SQL attempt from widened retries.
type QueryType string

const (
	// QueryTypeInitial is the first query built for a request.
	QueryTypeInitial QueryType = "initial"
	// QueryTypeWiderSearch marks candidates produced by the widening loop.
	QueryTypeWiderSearch QueryType = "wider_search"
)

// IsValid checks if the query type is valid.
func (q QueryType) IsValid() bool {
	return q == QueryTypeInitial || q == QueryTypeWiderSearch
}

// Column describes one column of a dumped table schema.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

// TableSchema is the dumped shape of one table.
type TableSchema struct {
	Columns []Column `json:"columns"`
	Comment string   `json:"comment,omitempty"`
}

// ToolCall is one planned service invocation.
type ToolCall struct {
	ServiceID  string         `json:"service_id"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// CallStatus is the outcome tag of a service call.
type CallStatus string

const (
	// CallStatusSuccess marks a completed call with a usable result.
	CallStatusSuccess CallStatus = "success"
	// CallStatusError marks a failed or timed-out call.
	CallStatusError CallStatus = "error"
)

// ServiceResult is the uniform envelope every adapter call collapses into.
type ServiceResult struct {
	ServiceID  string         `json:"service_id"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     CallStatus     `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// AgentState is the single mutable value threaded through the graph. It is
// created at request entry, mutated by nodes, read by the terminal node,
// then discarded. Never shared across requests.
type AgentState struct {
	UserRequest        string `json:"user_request"`
	CustomSystemPrompt string `json:"custom_system_prompt,omitempty"`

	// Schema evidence, populated once per run by the schema node.
	SchemaDump       map[string]TableSchema `json:"schema_dump,omitempty"`
	TableToDBMapping map[string]string      `json:"table_to_db_mapping,omitempty"`

	// SQL loop.
	SQLQuery           string                      `json:"sql_query"`
	PreviousSQLQueries []string                    `json:"previous_sql_queries"`
	DBResults          []map[string]any            `json:"db_results"`
	AllDBResults       map[string][]map[string]any `json:"all_db_results"`

	// Service plan and outcomes.
	MCPToolCalls      []ToolCall      `json:"mcp_tool_calls"`
	MCPServiceResults []ServiceResult `json:"mcp_service_results"`

	// Retrieval evidence.
	RAGDocuments []UnifiedDocument `json:"rag_documents"`

	// Synthesis. AugmentedContext is the compact evidence rendering built
	// from documents, rows and service outcomes; ResponsePrompt folds it
	// together with the request and any custom system prompt.
	AugmentedContext string `json:"augmented_context,omitempty"`
	ResponsePrompt   string `json:"response_prompt"`
	FinalResponse    string `json:"final_response"`

	// Error slots. At most one is non-nil when a router runs; the node the
	// router picks to consume it clears it.
	ValidationError    *string `json:"validation_error"`
	ExecutionError     *string `json:"execution_error"`
	SQLGenerationError *string `json:"sql_generation_error"`

	// Control. RetryCount is the total number of recorded failures and
	// widening attempts; the two loop counters enforce their caps
	// independently.
	RetryCount     int       `json:"retry_count"`
	RefineAttempts int       `json:"refine_attempts"`
	WidenAttempts  int       `json:"widen_attempts"`
	QueryType      QueryType `json:"query_type"`

	DisableSQLBlocking    bool `json:"disable_sql_blocking"`
	DisableDatabases      bool `json:"disable_databases"`
	UseMCPResults         bool `json:"use_mcp_results"`
	ReturnMCPResultsToLLM bool `json:"return_mcp_results_to_llm"`

	DatabaseName       string                 `json:"database_name,omitempty"`
	RegistryURL        string                 `json:"registry_url,omitempty"`
	DiscoveredServices []registry.ServiceInfo `json:"discovered_services,omitempty"`
}

// New creates the initial state for a request.
func New(userRequest string) *AgentState {
	return &AgentState{
		UserRequest:  userRequest,
		QueryType:    QueryTypeInitial,
		AllDBResults: make(map[string][]map[string]any),
	}
}

// RecordSQLCandidate sets the current candidate and appends it to the
// ordered history. Every generated query goes through here so the history
// invariant holds.
func (s *AgentState) RecordSQLCandidate(query string) {
	s.SQLQuery = query
	if query != "" {
		s.PreviousSQLQueries = append(s.PreviousSQLQueries, query)
	}
}

// SetError records a tagged message into the slot for the given kind and
// bumps RetryCount. Generation, validation and schema failures land in
// their own slots; everything else lands in the execution slot.
func (s *AgentState) SetError(kind ErrorKind, msg string) {
	tagged := Tagged(kind, msg)
	switch kind {
	case ErrorKindGeneration:
		s.SQLGenerationError = &tagged
	case ErrorKindValidation, ErrorKindSchema:
		s.ValidationError = &tagged
	default:
		s.ExecutionError = &tagged
	}
	s.RetryCount++
}

// ActiveError returns the non-nil error slot, if any. Slots are mutually
// orthogonal, so the first hit is the only hit.
func (s *AgentState) ActiveError() (ErrorKind, string, bool) {
	switch {
	case s.SQLGenerationError != nil:
		return KindOf(*s.SQLGenerationError), *s.SQLGenerationError, true
	case s.ValidationError != nil:
		return KindOf(*s.ValidationError), *s.ValidationError, true
	case s.ExecutionError != nil:
		return KindOf(*s.ExecutionError), *s.ExecutionError, true
	}
	return "", "", false
}

// ClearErrors empties all three slots. Called by the node a router picked
// to consume the active error.
func (s *AgentState) ClearErrors() {
	s.ValidationError = nil
	s.ExecutionError = nil
	s.SQLGenerationError = nil
}

// HasRows reports whether any database returned rows this run.
func (s *AgentState) HasRows() bool {
	return len(s.DBResults) > 0
}
