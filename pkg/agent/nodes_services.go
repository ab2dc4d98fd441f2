package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// Well-known worker types the pipeline treats specially.
const (
	serviceTypeSearch   = "search"
	serviceTypeDownload = "download"
	serviceTypeRAG      = "rag"
)

// analysisPlan is the JSON contract of the planning reply.
type analysisPlan struct {
	Response          string        `json:"response"`
	IsFinalAnswer     bool          `json:"is_final_answer"`
	HasSufficientInfo bool          `json:"has_sufficient_info"`
	ConfidenceLevel   float64       `json:"confidence_level"`
	ToolCalls         []plannedCall `json:"tool_calls"`
}

type plannedCall struct {
	ServiceID string         `json:"service_id"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params"`
}

// analyzeRequest discovers the available workers and asks the planning
// model which of them this request needs. A failed or unparseable planning
// call leaves the plan empty; the run then proceeds on databases alone.
func (a *Agent) analyzeRequest(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	s.DiscoveredServices = a.discoverServices(ctx)

	reply, err := a.deps.LLM.Complete(ctx, config.RoleMCP, a.prompt.AnalysisRequest(s.UserRequest, s.DiscoveredServices))
	if err != nil {
		a.logger.Warn("Request analysis failed, continuing without a service plan", "error", err)
		return s, nil
	}

	plan, err := parseAnalysis(reply)
	if err != nil {
		a.logger.Warn("Unparseable analysis reply, continuing without a service plan", "error", err)
		return s, nil
	}

	calls := make([]state.ToolCall, 0, len(plan.ToolCalls))
	for _, call := range plan.ToolCalls {
		if call.ServiceID == "" || call.Method == "" {
			continue
		}
		calls = append(calls, state.ToolCall{
			ServiceID:  call.ServiceID,
			Action:     call.Method,
			Parameters: call.Params,
		})
	}
	s.MCPToolCalls = calls
	s.UseMCPResults = len(calls) > 0
	s.ReturnMCPResultsToLLM = len(calls) > 0

	a.logger.Info("Request analyzed",
		"planned_calls", len(calls),
		"confidence", plan.ConfidenceLevel,
		"sufficient_info", plan.HasSufficientInfo)
	return s, nil
}

// executeMCPQueries dispatches the planned calls in parallel. Results come
// back in plan order; a failed call is an error-status result, never a
// failure of the node.
func (a *Agent) executeMCPQueries(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	if len(s.MCPToolCalls) == 0 {
		return s, nil
	}

	results := make([]state.ServiceResult, len(s.MCPToolCalls))
	var wg sync.WaitGroup
	for i, call := range s.MCPToolCalls {
		wg.Add(1)
		go func(i int, call state.ToolCall) {
			defer wg.Done()
			results[i] = a.deps.Adapter.Call(ctx, call.ServiceID, call.Action, a.callParams(s, call))
		}(i, call)
	}
	wg.Wait()

	for _, res := range results {
		if res.Status == state.CallStatusError {
			a.logger.Warn("Service call failed",
				"service_id", res.ServiceID, "action", res.Action, "error", res.Error)
		}
	}
	s.MCPServiceResults = append(s.MCPServiceResults, results...)
	return s, nil
}

// retrieveDocuments folds successful rag-worker results into the document
// pool alongside whatever the search pipeline already produced. The rag
// call itself ran with the planned batch; this node only normalizes.
func (a *Agent) retrieveDocuments(_ context.Context, s state.AgentState) (state.AgentState, error) {
	for _, res := range s.MCPServiceResults {
		if res.Status != state.CallStatusSuccess || a.serviceType(s, res.ServiceID) != serviceTypeRAG {
			continue
		}
		docs := documentsFromPayload(res.Result)
		if len(docs) == 0 {
			continue
		}
		a.logger.Debug("Documents retrieved", "service_id", res.ServiceID, "count", len(docs))
		s.RAGDocuments = append(s.RAGDocuments, docs...)
	}
	return s, nil
}

// discoverServices merges registry discovery with the static catalog;
// catalog entries fill in only where the registry has no record of the id.
func (a *Agent) discoverServices(ctx context.Context) []registry.ServiceInfo {
	var services []registry.ServiceInfo
	if a.deps.Registry != nil {
		discovered, err := a.deps.Registry.Discover(ctx)
		if err != nil {
			a.logger.Warn("Service discovery failed", "error", err)
		} else {
			services = discovered
		}
	}
	if a.deps.Config.Catalog != nil {
		services = mergeServices(services, a.deps.Config.Catalog.ServiceInfos())
	}
	return services
}

func mergeServices(discovered, catalog []registry.ServiceInfo) []registry.ServiceInfo {
	seen := make(map[string]struct{}, len(discovered))
	for _, svc := range discovered {
		seen[svc.ID] = struct{}{}
	}
	for _, svc := range catalog {
		if _, ok := seen[svc.ID]; !ok {
			discovered = append(discovered, svc)
		}
	}
	return discovered
}

// callParams injects the retrieval configuration into rag-worker calls; the
// planner cannot know embedding models or thresholds. Planned params win on
// conflict, and the query defaults to the user request.
func (a *Agent) callParams(s state.AgentState, call state.ToolCall) map[string]any {
	if a.serviceType(s, call.ServiceID) != serviceTypeRAG {
		return call.Parameters
	}

	params := make(map[string]any)
	if a.deps.Config.RAG != nil {
		for k, v := range a.deps.Config.RAG.Params() {
			params[k] = v
		}
	}
	for k, v := range call.Parameters {
		params[k] = v
	}
	if _, ok := params["query"]; !ok {
		params["query"] = s.UserRequest
	}
	return params
}

// serviceType resolves a service id to its declared type, falling back to
// the id's leading segment ("rag-worker-1" reads as "rag").
func (a *Agent) serviceType(s state.AgentState, serviceID string) string {
	for _, svc := range s.DiscoveredServices {
		if svc.ID == serviceID {
			return svc.Type
		}
	}
	segment, _, _ := strings.Cut(serviceID, "-")
	return segment
}

// parseAnalysis decodes the planning reply, tolerating fences or prose
// around the JSON object.
func parseAnalysis(raw string) (*analysisPlan, error) {
	obj := jsonObject(raw)
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in analysis reply")
	}
	var plan analysisPlan
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return nil, fmt.Errorf("decode analysis reply: %w", err)
	}
	return &plan, nil
}

// jsonObject cuts the outermost {...} span out of raw.
func jsonObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
