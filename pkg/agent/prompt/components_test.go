package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

func TestFormatSchemaSection_SortedWithDatabases(t *testing.T) {
	schema := map[string]state.TableSchema{
		"orders": {Columns: []state.Column{
			{Name: "id", Type: "integer"},
			{Name: "total", Type: "numeric", Nullable: true},
		}},
		"contacts": {Columns: []state.Column{
			{Name: "name", Type: "text", Nullable: true, Comment: "full name"},
		}},
	}
	mapping := map[string]string{"orders": "warehouse", "contacts": "crm"}

	result := FormatSchemaSection(schema, mapping)

	assert.Contains(t, result, "## Database Schema")
	assert.Contains(t, result, "### contacts (database: crm)")
	assert.Contains(t, result, "### orders (database: warehouse)")
	assert.Contains(t, result, "- id: integer, not null")
	assert.Contains(t, result, "- total: numeric\n")
	assert.Contains(t, result, "- name: text (full name)")
	assert.Less(t, strings.Index(result, "contacts"), strings.Index(result, "orders"),
		"tables render in sorted order")
}

func TestFormatSchemaSection_Empty(t *testing.T) {
	result := FormatSchemaSection(nil, nil)
	assert.Contains(t, result, "No database schema is available")
}

func TestFormatSchemaSection_TableComment(t *testing.T) {
	schema := map[string]state.TableSchema{
		"cities": {Comment: "settlements, real and legendary", Columns: []state.Column{{Name: "name", Type: "text"}}},
	}
	result := FormatSchemaSection(schema, nil)
	assert.Contains(t, result, "### cities\n")
	assert.Contains(t, result, "settlements, real and legendary")
}

func TestFormatServicesSection_WithCapabilities(t *testing.T) {
	services := []registry.ServiceInfo{
		{ID: "dns-worker-1", Type: "dns", Metadata: map[string]any{"capabilities": []any{"resolve", "reverse"}}},
		{ID: "search-worker-1", Type: "search"},
	}

	result := FormatServicesSection(services)

	assert.Contains(t, result, "## Available Services")
	assert.Contains(t, result, "- dns-worker-1 (type: dns), methods: resolve, reverse")
	assert.Contains(t, result, "- search-worker-1 (type: search)")
}

func TestFormatServicesSection_Empty(t *testing.T) {
	result := FormatServicesSection(nil)
	assert.Contains(t, result, "No services are available")
	assert.Contains(t, result, "Plan no service calls")
}

func TestFormatPreviousQueriesSection_Numbered(t *testing.T) {
	result := FormatPreviousQueriesSection([]string{
		"SELECT * FROM contacts",
		"SELECT name FROM contacts",
	})

	assert.Contains(t, result, "## Previously Attempted Queries")
	assert.Contains(t, result, "1. SELECT * FROM contacts")
	assert.Contains(t, result, "2. SELECT name FROM contacts")
}

func TestFormatPreviousQueriesSection_Empty(t *testing.T) {
	assert.Empty(t, FormatPreviousQueriesSection(nil))
}

func TestFormatEvidenceSection_DocumentsResolveSources(t *testing.T) {
	docs := []state.UnifiedDocument{
		{
			Content:  "Atlantis sank in a single day and night.",
			Source:   "rag document",
			Metadata: map[string]any{"file_name": "plato_timaeus.txt"},
		},
		{
			Content: "The city was rediscovered in 1970.",
			Summary: "Rediscovery dated to 1970.",
			URL:     "https://en.wikipedia.org/wiki/Atlantis",
		},
	}

	result := FormatEvidenceSection(docs, nil, nil)

	assert.Contains(t, result, "## Retrieved Documents")
	assert.Contains(t, result, "[plato_timaeus.txt] Atlantis sank")
	assert.Contains(t, result, "[en.wikipedia.org] Rediscovery dated to 1970.")
	assert.NotContains(t, result, "[rag document]")
}

func TestFormatEvidenceSection_RowsCapped(t *testing.T) {
	rows := make([]map[string]any, maxEvidenceRows+10)
	for i := range rows {
		rows[i] = map[string]any{"id": i, "_source_database": "crm"}
	}

	result := FormatEvidenceSection(nil, rows, nil)

	assert.Contains(t, result, "## Database Rows")
	assert.Contains(t, result, "60 rows returned, showing the first 50")
	assert.Equal(t, maxEvidenceRows, strings.Count(result, `"_source_database":"crm"`))
}

func TestFormatEvidenceSection_ServiceCalls(t *testing.T) {
	calls := []state.ServiceResult{
		{ServiceID: "dns-worker-1", Action: "resolve", Status: state.CallStatusSuccess, Result: map[string]any{"ip": "93.184.216.34"}},
		{ServiceID: "search-worker-1", Action: "search", Status: state.CallStatusError, Error: "connection refused"},
	}

	result := FormatEvidenceSection(nil, nil, calls)

	assert.Contains(t, result, "## Service Call Results")
	assert.Contains(t, result, "- dns-worker-1.resolve: success")
	assert.Contains(t, result, `"ip":"93.184.216.34"`)
	assert.Contains(t, result, "- search-worker-1.search: error (connection refused)")
}

func TestFormatEvidenceSection_Empty(t *testing.T) {
	assert.Empty(t, FormatEvidenceSection(nil, nil, nil))
}

func TestFormatExecutionSection_Full(t *testing.T) {
	all := map[string][]map[string]any{
		"crm":       {{"id": 1}, {"id": 2}},
		"warehouse": {{"id": 3}},
	}

	result := FormatExecutionSection([]string{"SELECT 1", "SELECT 2"}, all, "execution: relation missing")

	assert.Contains(t, result, "## Execution Notes")
	assert.Contains(t, result, "SQL attempts: 2 (last: SELECT 2)")
	assert.Contains(t, result, "Rows by database: crm: 2, warehouse: 1 (total 3)")
	assert.Contains(t, result, "Unresolved failure: execution: relation missing")
}

func TestFormatExecutionSection_Empty(t *testing.T) {
	assert.Empty(t, FormatExecutionSection(nil, nil, ""))
}

func TestClip_LongText(t *testing.T) {
	long := strings.Repeat("x", maxEvidenceItemLen+100)
	clipped := clip(long, maxEvidenceItemLen)
	assert.Len(t, clipped, maxEvidenceItemLen+3)
	assert.True(t, strings.HasSuffix(clipped, "..."))
}

func TestClip_PreservesShortUTF8(t *testing.T) {
	text := "Найди Атлантиду в 東京"
	assert.Equal(t, text, clip(text, maxEvidenceItemLen))
}
