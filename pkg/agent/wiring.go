package agent

import (
	"github.com/datanaut-ai/datanaut/pkg/graph"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// Node names as they appear in logs.
const (
	nodeGetSchema          = "get_schema"
	nodeAnalyzeRequest     = "analyze_request"
	nodeExecuteMCPQueries  = "execute_mcp_queries"
	nodeProcessSearch      = "process_search_results_with_download"
	nodeRetrieveDocuments  = "retrieve_documents"
	nodeGenerateSQL        = "generate_sql"
	nodeValidateSQL        = "validate_sql"
	nodeExecuteSQL         = "execute_sql"
	nodeExecuteWiderSearch = "execute_wider_search"
	nodeRefineSQL          = "refine_sql"
	nodeGenerateWiderQuery = "generate_wider_search_query"
	nodeAugmentContext     = "augment_context"
	nodeGeneratePrompt     = "generate_prompt"
	nodeGenerateResponse   = "generate_response"
)

// Router labels.
const (
	routeServices     = "services"
	routeSQL          = "sql"
	routeAugment      = "augment"
	routeRefine       = "refine"
	routeValidate     = "validate"
	routeExecute      = "execute"
	routeExecuteWider = "execute_wider"
	routeWiden        = "widen"
	routeRespond      = "respond"
)

// buildGraph wires the nodes. The shape is static; all run-to-run variation
// goes through the routers below.
func (a *Agent) buildGraph() (*graph.Graph[state.AgentState], error) {
	return graph.NewBuilder[state.AgentState]().
		AddNode(nodeGetSchema, a.getSchema).
		AddNode(nodeAnalyzeRequest, a.analyzeRequest).
		AddNode(nodeExecuteMCPQueries, a.executeMCPQueries).
		AddNode(nodeProcessSearch, a.processSearchResults).
		AddNode(nodeRetrieveDocuments, a.retrieveDocuments).
		AddNode(nodeGenerateSQL, a.generateSQL).
		AddNode(nodeValidateSQL, a.validateSQL).
		AddNode(nodeExecuteSQL, a.executeSQL).
		AddNode(nodeExecuteWiderSearch, a.executeWiderSearch).
		AddNode(nodeRefineSQL, a.refineSQL).
		AddNode(nodeGenerateWiderQuery, a.generateWiderSearchQuery).
		AddNode(nodeAugmentContext, a.augmentContext).
		AddNode(nodeGeneratePrompt, a.generatePrompt).
		AddNode(nodeGenerateResponse, a.generateResponse).
		SetEntry(nodeGetSchema).
		AddEdge(nodeGetSchema, nodeAnalyzeRequest).
		AddConditionalEdges(nodeAnalyzeRequest, routeAfterAnalysis, map[string]string{
			routeServices: nodeExecuteMCPQueries,
			routeSQL:      nodeGenerateSQL,
			routeAugment:  nodeAugmentContext,
		}).
		AddEdge(nodeExecuteMCPQueries, nodeProcessSearch).
		AddEdge(nodeProcessSearch, nodeRetrieveDocuments).
		AddConditionalEdges(nodeRetrieveDocuments, routeAfterRetrieval, map[string]string{
			routeSQL:     nodeGenerateSQL,
			routeAugment: nodeAugmentContext,
		}).
		AddConditionalEdges(nodeGenerateSQL, routeAfterGeneration, map[string]string{
			routeRefine:   nodeRefineSQL,
			routeValidate: nodeValidateSQL,
		}).
		AddConditionalEdges(nodeValidateSQL, routeAfterValidation, map[string]string{
			routeRefine:       nodeRefineSQL,
			routeExecuteWider: nodeExecuteWiderSearch,
			routeExecute:      nodeExecuteSQL,
		}).
		AddConditionalEdges(nodeExecuteSQL, routeAfterExecution, map[string]string{
			routeRefine:  nodeRefineSQL,
			routeWiden:   nodeGenerateWiderQuery,
			routeAugment: nodeAugmentContext,
		}).
		AddConditionalEdges(nodeExecuteWiderSearch, routeAfterWiderExecution, map[string]string{
			routeWiden:   nodeGenerateWiderQuery,
			routeAugment: nodeAugmentContext,
		}).
		AddConditionalEdges(nodeRefineSQL, routeAfterRefine, map[string]string{
			routeRespond:  nodeGenerateResponse,
			routeValidate: nodeValidateSQL,
		}).
		AddEdge(nodeGenerateWiderQuery, nodeValidateSQL).
		AddEdge(nodeAugmentContext, nodeGeneratePrompt).
		AddEdge(nodeGeneratePrompt, nodeGenerateResponse).
		AddEdge(nodeGenerateResponse, graph.End).
		Compile()
}

func routeAfterAnalysis(s state.AgentState) string {
	if len(s.MCPToolCalls) > 0 {
		return routeServices
	}
	if s.DisableDatabases {
		return routeAugment
	}
	return routeSQL
}

func routeAfterRetrieval(s state.AgentState) string {
	if s.DisableDatabases {
		return routeAugment
	}
	return routeSQL
}

func routeAfterGeneration(s state.AgentState) string {
	if s.SQLGenerationError != nil {
		return routeRefine
	}
	return routeValidate
}

func routeAfterValidation(s state.AgentState) string {
	if s.ValidationError != nil {
		return routeRefine
	}
	if s.QueryType == state.QueryTypeWiderSearch {
		return routeExecuteWider
	}
	return routeExecute
}

func routeAfterExecution(s state.AgentState) string {
	if s.ExecutionError != nil && s.RefineAttempts < MaxRefineAttempts {
		return routeRefine
	}
	if !s.HasRows() && s.QueryType == state.QueryTypeInitial && s.WidenAttempts < MaxWidenAttempts {
		return routeWiden
	}
	return routeAugment
}

func routeAfterWiderExecution(s state.AgentState) string {
	if !s.HasRows() && s.WidenAttempts < MaxWidenAttempts {
		return routeWiden
	}
	return routeAugment
}

func routeAfterRefine(s state.AgentState) string {
	if s.RefineAttempts >= MaxRefineAttempts {
		return routeRespond
	}
	return routeValidate
}
