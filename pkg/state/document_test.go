package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSource_Priority(t *testing.T) {
	tests := []struct {
		name string
		doc  UnifiedDocument
		want string
	}{
		{
			name: "metadata source wins over everything",
			doc: UnifiedDocument{
				Source:   "fallback.pdf",
				URL:      "https://example.com/page",
				Title:    "A Title",
				Metadata: map[string]any{"source": "reports/q3.pdf", "file_name": "other.pdf"},
			},
			want: "reports/q3.pdf",
		},
		{
			name: "metadata file_name when source absent",
			doc: UnifiedDocument{
				Metadata: map[string]any{"file_name": "handbook.docx"},
			},
			want: "handbook.docx",
		},
		{
			name: "metadata url reduced to hostname",
			doc: UnifiedDocument{
				Metadata: map[string]any{"url": "https://docs.example.org/a/b?x=1"},
			},
			want: "docs.example.org",
		},
		{
			name: "generic metadata source skipped",
			doc: UnifiedDocument{
				Source:   "contracts/2024.md",
				Metadata: map[string]any{"source": "RAG Document"},
			},
			want: "contracts/2024.md",
		},
		{
			name: "top-level source before url",
			doc: UnifiedDocument{
				Source: "wiki/setup.md",
				URL:    "https://wiki.internal/setup",
			},
			want: "wiki/setup.md",
		},
		{
			name: "url hostname before title",
			doc: UnifiedDocument{
				URL:   "https://www.cnn.com/article/123",
				Title: "Some Article",
			},
			want: "www.cnn.com",
		},
		{
			name: "title as last resort",
			doc:  UnifiedDocument{Title: "Quarterly Report"},
			want: "Quarterly Report",
		},
		{
			name: "generic top-level source falls through to title",
			doc:  UnifiedDocument{Source: "Search Result", Title: "Weather in Oslo"},
			want: "Weather in Oslo",
		},
		{
			name: "nothing specific",
			doc:  UnifiedDocument{Content: "text only"},
			want: "unknown",
		},
		{
			name: "stored_file_path probed",
			doc: UnifiedDocument{
				Metadata: map[string]any{"stored_file_path": "/data/uploads/notes.txt"},
			},
			want: "/data/uploads/notes.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSource(tt.doc)
			assert.Equal(t, tt.want, got)
			assert.False(t, IsGenericSource(got))
		})
	}
}

func TestIsGenericSource(t *testing.T) {
	for _, generic := range []string{
		"RAG Document", "Search Result", "search", "Web Search",
		"DOCUMENT", "Result", "generic document", "  Search Result  ",
	} {
		assert.True(t, IsGenericSource(generic), generic)
	}
	for _, specific := range []string{
		"www.cnn.com", "reports/q3.pdf", "unknown", "contacts table", "",
	} {
		assert.False(t, IsGenericSource(specific), specific)
	}
}

func TestHostname(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.cnn.com/2026/weather", "www.cnn.com"},
		{"http://localhost:8080/call", "localhost"},
		{"https://пример.рф/страница", "пример.рф"},
		{"not a url", ""},
		{"", ""},
		{"/relative/path", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hostname(tt.url), tt.url)
	}
}
