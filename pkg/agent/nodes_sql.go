package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/sqlguard"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// defaultWidenStrategies keeps the widening loop moving when the strategy
// model is unavailable.
const defaultWidenStrategies = `1. Relax exact matches to case-insensitive pattern matches.
2. Add well-known synonyms or related terms for the searched values.
3. Drop the most selective filter.`

// generateSQL asks the SQL model for the first candidate. Nothing
// extractable from the reply is a generation failure the refine loop picks
// up.
func (a *Agent) generateSQL(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	reply, err := a.deps.LLM.Complete(ctx, config.RoleSQL,
		a.prompt.SQLRequest(s.UserRequest, s.SchemaDump, s.TableToDBMapping, s.PreviousSQLQueries))
	if err != nil {
		s.SetError(state.ErrorKindGeneration, fmt.Sprintf("SQL generation failed: %v", err))
		return s, nil
	}

	candidate := sqlguard.Extract(reply)
	if candidate == "" {
		s.SetError(state.ErrorKindGeneration, "no SQL statement could be extracted from the model reply")
		return s, nil
	}
	s.RecordSQLCandidate(candidate)
	a.logger.Debug("SQL candidate generated", "query", candidate)
	return s, nil
}

// validateSQL screens the current candidate. With blocking disabled only
// the empty check remains; otherwise the stages run in order: security
// review (when configured), keyword screen, schema reference check. A
// security-review outage degrades to the keyword screen, never to
// acceptance.
func (a *Agent) validateSQL(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	if strings.TrimSpace(s.SQLQuery) == "" {
		s.SetError(state.ErrorKindValidation, "the SQL candidate is empty")
		return s, nil
	}
	if s.DisableSQLBlocking {
		return s, nil
	}

	if a.deps.Config.UseSecurityLLM {
		verdict, err := a.deps.LLM.Complete(ctx, config.RoleSecurity, a.prompt.SecurityRequest(s.SQLQuery))
		if err != nil {
			a.logger.Warn("Security review unavailable, falling back to the keyword screen", "error", err)
		} else if strings.Contains(strings.ToUpper(verdict), "UNSAFE") {
			s.SetError(state.ErrorKindValidation, "the security review rejected the query")
			return s, nil
		}
	}

	if err := sqlguard.Screen(s.SQLQuery); err != nil {
		s.SetError(state.ErrorKindValidation, err.Error())
		return s, nil
	}
	if err := sqlguard.ValidateReferences(sqlguard.Sanitize(s.SQLQuery), s.SchemaDump); err != nil {
		s.SetError(state.ErrorKindSchema, err.Error())
		return s, nil
	}
	return s, nil
}

// refineSQL consumes the active failure and asks the SQL model for a
// corrected candidate. When the model itself fails here, the state passes
// through unchanged and the attempt counter alone guarantees termination.
func (a *Agent) refineSQL(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	_, failure, _ := s.ActiveError()
	s.ClearErrors()
	s.RefineAttempts++

	reply, err := a.deps.LLM.Complete(ctx, config.RoleSQL,
		a.prompt.RefineRequest(s.UserRequest, s.SQLQuery, failure, s.SchemaDump, s.TableToDBMapping, s.PreviousSQLQueries))
	if err != nil {
		a.logger.Warn("SQL refinement failed", "attempt", s.RefineAttempts, "error", err)
		return s, nil
	}

	candidate := sqlguard.Extract(reply)
	if candidate == "" {
		a.logger.Warn("No SQL in refinement reply", "attempt", s.RefineAttempts)
		return s, nil
	}
	s.RecordSQLCandidate(candidate)
	a.logger.Debug("SQL candidate refined", "attempt", s.RefineAttempts, "query", candidate)
	return s, nil
}

// generateWiderSearchQuery runs the two-step widening: the prompt model
// proposes broadening strategies, the SQL model realizes them. It consumes
// whatever failure routed here and marks the run as a wider search.
func (a *Agent) generateWiderSearchQuery(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	s.ClearErrors()
	s.WidenAttempts++
	s.RetryCount++
	s.QueryType = state.QueryTypeWiderSearch

	strategies, err := a.deps.LLM.Complete(ctx, config.RolePrompt,
		a.prompt.WidenStrategyRequest(s.UserRequest, s.SQLQuery))
	if err != nil {
		a.logger.Warn("Widening strategy generation failed, using stock strategies", "error", err)
		strategies = defaultWidenStrategies
	}

	reply, err := a.deps.LLM.Complete(ctx, config.RoleSQL,
		a.prompt.WidenSQLRequest(s.UserRequest, strategies, s.SchemaDump, s.TableToDBMapping, s.PreviousSQLQueries))
	if err != nil {
		a.logger.Warn("Widened SQL generation failed", "attempt", s.WidenAttempts, "error", err)
		return s, nil
	}

	candidate := sqlguard.Extract(reply)
	if candidate == "" {
		a.logger.Warn("No SQL in widening reply", "attempt", s.WidenAttempts)
		return s, nil
	}
	s.RecordSQLCandidate(candidate)
	a.logger.Debug("Wider SQL candidate generated", "attempt", s.WidenAttempts, "query", candidate)
	return s, nil
}
