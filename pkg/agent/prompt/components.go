package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

const (
	// maxEvidenceRows caps how many database rows are rendered verbatim.
	maxEvidenceRows = 50
	// maxEvidenceItemLen caps the rendered length of one document or result.
	maxEvidenceItemLen = 600
)

// FormatSchemaSection renders the dumped table schemas with their owning
// databases, sorted by table name.
func FormatSchemaSection(schema map[string]state.TableSchema, mapping map[string]string) string {
	if len(schema) == 0 {
		return "## Database Schema\nNo database schema is available.\n"
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("## Database Schema\n")
	for _, name := range names {
		table := schema[name]
		sb.WriteString("\n### ")
		sb.WriteString(name)
		if db := mapping[name]; db != "" {
			sb.WriteString(" (database: ")
			sb.WriteString(db)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
		if table.Comment != "" {
			sb.WriteString(table.Comment)
			sb.WriteString("\n")
		}
		for _, col := range table.Columns {
			sb.WriteString("- ")
			sb.WriteString(col.Name)
			sb.WriteString(": ")
			sb.WriteString(col.Type)
			if !col.Nullable {
				sb.WriteString(", not null")
			}
			if col.Comment != "" {
				sb.WriteString(" (")
				sb.WriteString(col.Comment)
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatServicesSection lists discovered services with their declared
// methods so the planner can only pick real ones.
func FormatServicesSection(services []registry.ServiceInfo) string {
	if len(services) == 0 {
		return "## Available Services\nNo services are available. Plan no service calls.\n"
	}

	var sb strings.Builder
	sb.WriteString("## Available Services\n")
	for _, svc := range services {
		sb.WriteString("- ")
		sb.WriteString(svc.ID)
		if svc.Type != "" {
			sb.WriteString(" (type: ")
			sb.WriteString(svc.Type)
			sb.WriteString(")")
		}
		if caps := svc.Capabilities(); len(caps) > 0 {
			sb.WriteString(", methods: ")
			sb.WriteString(strings.Join(caps, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatPreviousQueriesSection lists the queries already attempted this run.
// Empty history renders nothing.
func FormatPreviousQueriesSection(queries []string) string {
	if len(queries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Previously Attempted Queries\nDo not repeat these:\n")
	for i, q := range queries {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	return sb.String()
}

// FormatEvidenceSection renders collected documents, database rows and
// service outcomes as the compact evidence block of the response prompt.
// Document labels go through the source resolution chain, so no document is
// attributed to a generic placeholder.
func FormatEvidenceSection(docs []state.UnifiedDocument, rows []map[string]any, calls []state.ServiceResult) string {
	var sb strings.Builder

	if len(docs) > 0 {
		sb.WriteString("## Retrieved Documents\n")
		for i, doc := range docs {
			text := doc.Summary
			if text == "" {
				text = doc.Content
			}
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, state.ResolveSource(doc), clip(text, maxEvidenceItemLen))
		}
		sb.WriteString("\n")
	}

	if len(rows) > 0 {
		fmt.Fprintf(&sb, "## Database Rows\n%d rows returned", len(rows))
		shown := rows
		if len(shown) > maxEvidenceRows {
			shown = shown[:maxEvidenceRows]
			fmt.Fprintf(&sb, ", showing the first %d", maxEvidenceRows)
		}
		sb.WriteString(":\n")
		for _, row := range shown {
			sb.WriteString(compactJSON(row))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(calls) > 0 {
		sb.WriteString("## Service Call Results\n")
		for _, call := range calls {
			fmt.Fprintf(&sb, "- %s.%s: %s", call.ServiceID, call.Action, call.Status)
			if call.Status == state.CallStatusError {
				fmt.Fprintf(&sb, " (%s)", call.Error)
			} else if call.Result != nil {
				fmt.Fprintf(&sb, " %s", clip(compactJSON(call.Result), maxEvidenceItemLen))
			}
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatExecutionSection summarizes what actually ran, including any
// unresolved failure the answer must acknowledge.
func FormatExecutionSection(queries []string, all map[string][]map[string]any, failure string) string {
	if len(queries) == 0 && len(all) == 0 && failure == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Execution Notes\n")
	if len(queries) > 0 {
		fmt.Fprintf(&sb, "- SQL attempts: %d (last: %s)\n", len(queries), queries[len(queries)-1])
	}
	if len(all) > 0 {
		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		total := 0
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s: %d", name, len(all[name])))
			total += len(all[name])
		}
		fmt.Fprintf(&sb, "- Rows by database: %s (total %d)\n", strings.Join(parts, ", "), total)
	}
	if failure != "" {
		fmt.Fprintf(&sb, "- Unresolved failure: %s\n", failure)
	}
	return sb.String()
}

// compactJSON renders v on one line with sorted map keys. Unmarshalable
// values fall back to fmt.
func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// clip truncates s to max runes with an ellipsis marker.
func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
