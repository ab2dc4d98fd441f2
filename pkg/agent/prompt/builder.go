package prompt

import (
	"fmt"
	"strings"

	"github.com/datanaut-ai/datanaut/pkg/llm"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// Builder composes the payload for every LLM call the query graph makes.
// Stateless; all state comes from parameters, so one Builder serves
// concurrent runs.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AnalysisRequest plans service usage for a user request.
func (b *Builder) AnalysisRequest(userRequest string, services []registry.ServiceInfo) llm.Request {
	var sb strings.Builder
	sb.WriteString("## User Request\n")
	sb.WriteString(userRequest)
	sb.WriteString("\n\n")
	sb.WriteString(FormatServicesSection(services))
	sb.WriteString("\nPlan the service calls for this request.")
	return llm.Request{System: analysisSystem, User: sb.String()}
}

// SQLRequest asks for the first SQL candidate.
func (b *Builder) SQLRequest(userRequest string, schema map[string]state.TableSchema, mapping map[string]string, previous []string) llm.Request {
	return llm.Request{System: sqlSystem, User: b.sqlUser(userRequest, schema, mapping, previous, sqlTask)}
}

// RefineRequest asks for a corrected query after a recorded failure.
func (b *Builder) RefineRequest(userRequest, failedSQL, failure string, schema map[string]state.TableSchema, mapping map[string]string, previous []string) llm.Request {
	task := fmt.Sprintf(refineTaskTemplate, failedSQL, failure)
	return llm.Request{System: sqlSystem, User: b.sqlUser(userRequest, schema, mapping, previous, task)}
}

// WidenStrategyRequest asks for broadening strategies after zero rows.
func (b *Builder) WidenStrategyRequest(userRequest, zeroRowSQL string) llm.Request {
	return llm.Request{
		System: widenStrategySystem,
		User:   fmt.Sprintf(widenStrategyUserTemplate, userRequest, zeroRowSQL),
	}
}

// WidenSQLRequest asks the SQL model to realize broadening strategies.
func (b *Builder) WidenSQLRequest(userRequest, strategies string, schema map[string]state.TableSchema, mapping map[string]string, previous []string) llm.Request {
	task := fmt.Sprintf(widenSQLTaskTemplate, strategies)
	return llm.Request{System: sqlSystem, User: b.sqlUser(userRequest, schema, mapping, previous, task)}
}

// SecurityRequest asks for a SAFE or UNSAFE verdict on one query.
func (b *Builder) SecurityRequest(sqlQuery string) llm.Request {
	return llm.Request{
		System:    securitySystem,
		User:      fmt.Sprintf(securityUserTemplate, sqlQuery),
		MaxTokens: 16,
	}
}

// SummarizeRequest condenses one downloaded page for the request at hand.
func (b *Builder) SummarizeRequest(userRequest, pageURL, content string) llm.Request {
	return llm.Request{
		System: summarizeSystem,
		User:   fmt.Sprintf(summarizeUserTemplate, userRequest, pageURL, content),
	}
}

// RerankRequest scores snippets against the request. Snippet order maps to
// the indexes the reply must use.
func (b *Builder) RerankRequest(userRequest string, snippets []string) llm.Request {
	var sb strings.Builder
	for i, snippet := range snippets {
		fmt.Fprintf(&sb, "[%d] %s\n", i, clip(snippet, maxEvidenceItemLen))
	}
	return llm.Request{
		System: rerankSystem,
		User:   fmt.Sprintf(rerankUserTemplate, userRequest, sb.String()),
	}
}

// BuildResponsePrompt assembles the response prompt from its parts. The
// custom system prompt, when present, leads.
func (b *Builder) BuildResponsePrompt(userRequest, evidence, execution, custom string) string {
	var sb strings.Builder
	if custom != "" {
		sb.WriteString(custom)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## User Request\n")
	sb.WriteString(userRequest)
	sb.WriteString("\n\n")
	if evidence != "" {
		sb.WriteString(evidence)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("## Evidence\nNo evidence was collected for this request.\n\n")
	}
	if execution != "" {
		sb.WriteString(execution)
		sb.WriteString("\n")
	}
	sb.WriteString(responseTask)
	return sb.String()
}

// ResponseRequest turns a finished response prompt into the final LLM call.
func (b *Builder) ResponseRequest(responsePrompt string) llm.Request {
	return llm.Request{System: responseSystem, User: responsePrompt, MaxTokens: 4096}
}

// sqlUser builds the shared user message for all SQL-producing calls.
func (b *Builder) sqlUser(userRequest string, schema map[string]state.TableSchema, mapping map[string]string, previous []string, task string) string {
	var sb strings.Builder
	sb.WriteString("## User Request\n")
	sb.WriteString(userRequest)
	sb.WriteString("\n\n")
	sb.WriteString(FormatSchemaSection(schema, mapping))
	sb.WriteString("\n")
	if prev := FormatPreviousQueriesSection(previous); prev != "" {
		sb.WriteString(prev)
		sb.WriteString("\n")
	}
	sb.WriteString(task)
	return sb.String()
}
