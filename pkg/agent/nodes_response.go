package agent

import (
	"context"

	"github.com/datanaut-ai/datanaut/pkg/agent/prompt"
	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// augmentContext renders the collected evidence into the compact block the
// response prompt embeds. Service results are held back when the plan
// decided they are not for the model.
func (a *Agent) augmentContext(_ context.Context, s state.AgentState) (state.AgentState, error) {
	calls := s.MCPServiceResults
	if !s.ReturnMCPResultsToLLM {
		calls = nil
	}
	s.AugmentedContext = prompt.FormatEvidenceSection(s.RAGDocuments, s.DBResults, calls)
	return s, nil
}

// generatePrompt assembles the full response prompt.
func (a *Agent) generatePrompt(_ context.Context, s state.AgentState) (state.AgentState, error) {
	s.ResponsePrompt = a.prompt.BuildResponsePrompt(s.UserRequest, s.AugmentedContext, a.executionNotes(s), s.CustomSystemPrompt)
	return s, nil
}

// generateResponse is the terminal node. The response model writes the
// final text; when it fails, or when a hard failure routed here directly,
// the apologetic fallback names the most recent error instead.
func (a *Agent) generateResponse(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	// The refine-cap route skips augment/prompt, so build the prompt here.
	if s.ResponsePrompt == "" {
		s.ResponsePrompt = a.prompt.BuildResponsePrompt(s.UserRequest, s.AugmentedContext, a.executionNotes(s), s.CustomSystemPrompt)
	}

	reply, err := a.deps.LLM.Complete(ctx, config.RoleResponse, a.prompt.ResponseRequest(s.ResponsePrompt))
	if err != nil {
		a.logger.Warn("Response generation failed, falling back to the stock apology", "error", err)
		s.FinalResponse = fallbackResponse(s)
		return s, nil
	}
	s.FinalResponse = reply
	return s, nil
}

// executionNotes summarizes what ran, including the still-active failure
// the answer must own up to.
func (a *Agent) executionNotes(s state.AgentState) string {
	failure := ""
	if _, msg, ok := s.ActiveError(); ok {
		failure = msg
	}
	return prompt.FormatExecutionSection(s.PreviousSQLQueries, s.AllDBResults, failure)
}
