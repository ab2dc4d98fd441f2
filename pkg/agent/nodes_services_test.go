package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

func TestParseAnalysis_PlainObject(t *testing.T) {
	plan, err := parseAnalysis(`{"response": "needs dns", "confidence_level": 0.8, "tool_calls": [{"service_id": "dns-worker-1", "method": "resolve", "params": {"host": "example.com"}}]}`)

	require.NoError(t, err)
	assert.Equal(t, "needs dns", plan.Response)
	assert.InDelta(t, 0.8, plan.ConfidenceLevel, 0.001)
	require.Len(t, plan.ToolCalls, 1)
	assert.Equal(t, "dns-worker-1", plan.ToolCalls[0].ServiceID)
	assert.Equal(t, "resolve", plan.ToolCalls[0].Method)
	assert.Equal(t, "example.com", plan.ToolCalls[0].Params["host"])
}

func TestParseAnalysis_FencedWithProse(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"tool_calls\": [{\"service_id\": \"rag-worker-1\", \"method\": \"query\"}]}\n```\nDone."

	plan, err := parseAnalysis(raw)

	require.NoError(t, err)
	require.Len(t, plan.ToolCalls, 1)
	assert.Equal(t, "rag-worker-1", plan.ToolCalls[0].ServiceID)
}

func TestParseAnalysis_NoJSON(t *testing.T) {
	_, err := parseAnalysis("I would just query the database for this.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestParseAnalysis_MalformedJSON(t *testing.T) {
	_, err := parseAnalysis(`{"tool_calls": [}`)
	require.Error(t, err)
}

func TestMergeServices_CatalogFillsUnseenIDs(t *testing.T) {
	discovered := []registry.ServiceInfo{
		{ID: "rag-worker-1", Type: "rag", Host: "10.0.0.5", Port: 9301},
	}
	catalog := []registry.ServiceInfo{
		{ID: "rag-worker-1", Type: "rag", Host: "static-host", Port: 1},
		{ID: "search-worker-1", Type: "search", Host: "static-host", Port: 2},
	}

	merged := mergeServices(discovered, catalog)

	require.Len(t, merged, 2)
	assert.Equal(t, "10.0.0.5", merged[0].Host, "the live registration wins over the catalog")
	assert.Equal(t, "search-worker-1", merged[1].ID)
}

func TestServiceType_PrefersDiscoveredType(t *testing.T) {
	a := newTestAgent(t, Dependencies{LLM: &scriptedLLM{}})
	s := state.AgentState{DiscoveredServices: []registry.ServiceInfo{
		{ID: "docsearch", Type: "rag"},
	}}

	assert.Equal(t, "rag", a.serviceType(s, "docsearch"))
}

func TestServiceType_FallsBackToIDPrefix(t *testing.T) {
	a := newTestAgent(t, Dependencies{LLM: &scriptedLLM{}})

	assert.Equal(t, "search", a.serviceType(state.AgentState{}, "search-worker-2"))
	assert.Equal(t, "download", a.serviceType(state.AgentState{}, "download-worker-1"))
	assert.Equal(t, "dns", a.serviceType(state.AgentState{}, "dns"))
}

func TestCallParams_InjectsRAGConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.RAG = &config.RAGConfig{
		EmbeddingModel:      "all-minilm",
		VectorStoreType:     "chroma",
		TopKResults:         7,
		SimilarityThreshold: 0.5,
		CollectionName:      "docs",
	}
	a := newTestAgent(t, Dependencies{Config: cfg, LLM: &scriptedLLM{}})
	s := state.AgentState{UserRequest: "find Atlantis"}

	params := a.callParams(s, state.ToolCall{
		ServiceID:  "rag-worker-1",
		Action:     "query",
		Parameters: map[string]any{"top_k_results": 2},
	})

	assert.Equal(t, "all-minilm", params["embedding_model"])
	assert.Equal(t, 2, params["top_k_results"], "planned parameters win on conflict")
	assert.Equal(t, "find Atlantis", params["query"], "the query defaults to the user request")
}

func TestCallParams_NonRAGCallsPassThrough(t *testing.T) {
	a := newTestAgent(t, Dependencies{LLM: &scriptedLLM{}})
	planned := map[string]any{"host": "example.com"}

	params := a.callParams(state.AgentState{}, state.ToolCall{
		ServiceID:  "dns-worker-1",
		Action:     "resolve",
		Parameters: planned,
	})

	assert.Equal(t, planned, params)
	assert.NotContains(t, params, "query")
}

func TestAnalyzeRequest_FiltersIncompleteCalls(t *testing.T) {
	llmc := &scriptedLLM{replies: map[config.LLMRole][]string{
		config.RoleMCP: {`{"tool_calls": [
			{"service_id": "", "method": "resolve"},
			{"service_id": "dns-worker-1", "method": ""},
			{"service_id": "dns-worker-1", "method": "resolve"}
		]}`},
	}}
	a := newTestAgent(t, Dependencies{LLM: llmc})

	s, err := a.analyzeRequest(t.Context(), state.AgentState{UserRequest: "resolve example.com"})

	require.NoError(t, err)
	require.Len(t, s.MCPToolCalls, 1)
	assert.Equal(t, "dns-worker-1", s.MCPToolCalls[0].ServiceID)
	assert.True(t, s.UseMCPResults)
}

func TestAnalyzeRequest_UnparseableReplyLeavesPlanEmpty(t *testing.T) {
	llmc := &scriptedLLM{replies: map[config.LLMRole][]string{
		config.RoleMCP: {"just use sql for this one"},
	}}
	a := newTestAgent(t, Dependencies{LLM: llmc})

	s, err := a.analyzeRequest(t.Context(), state.AgentState{UserRequest: "list contacts"})

	require.NoError(t, err)
	assert.Empty(t, s.MCPToolCalls)
	assert.False(t, s.UseMCPResults)
}

func TestRetrieveDocuments_OnlySuccessfulRAGResults(t *testing.T) {
	a := newTestAgent(t, Dependencies{LLM: &scriptedLLM{}})
	s := state.AgentState{
		DiscoveredServices: []registry.ServiceInfo{
			{ID: "rag-worker-1", Type: "rag"},
			{ID: "dns-worker-1", Type: "dns"},
		},
		MCPServiceResults: []state.ServiceResult{
			{ServiceID: "rag-worker-1", Status: state.CallStatusSuccess, Result: []any{
				map[string]any{"content": "Atlantis sank.", "source": "timaeus.txt"},
			}},
			{ServiceID: "rag-worker-1", Status: state.CallStatusError, Error: "worker down"},
			{ServiceID: "dns-worker-1", Status: state.CallStatusSuccess, Result: []any{
				map[string]any{"content": "not a document"},
			}},
		},
	}

	out, err := a.retrieveDocuments(t.Context(), s)

	require.NoError(t, err)
	require.Len(t, out.RAGDocuments, 1)
	assert.Equal(t, "Atlantis sank.", out.RAGDocuments[0].Content)
	assert.Equal(t, "timaeus.txt", out.RAGDocuments[0].Source)
}
