package state

import (
	"net/url"
	"strings"
)

// SourceType classifies where a unified document came from.
type SourceType string

const (
	// SourceTypeLocalDocument is a document from the local RAG store.
	SourceTypeLocalDocument SourceType = "local_document"
	// SourceTypeWebSearch is a raw web search hit.
	SourceTypeWebSearch SourceType = "web_search"
	// SourceTypeProcessedSearch is a search hit that went through the
	// download/summarize/rerank pipeline.
	SourceTypeProcessedSearch SourceType = "processed_search"
)

// IsValid checks if the source type is valid.
func (t SourceType) IsValid() bool {
	return t == SourceTypeLocalDocument || t == SourceTypeWebSearch || t == SourceTypeProcessedSearch
}

// UnifiedDocument is the single shape every retrieved fragment is
// normalized into before augmentation. Source must hold the most specific
// identifier available; generic placeholders are forbidden values.
type UnifiedDocument struct {
	Content        string         `json:"content"`
	Source         string         `json:"source"`
	SourceType     SourceType     `json:"source_type"`
	URL            string         `json:"url,omitempty"`
	Title          string         `json:"title,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	RelevanceScore float64        `json:"relevance_score,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// genericSources are placeholder labels upstream systems emit when they do
// not know the real origin. Resolution treats them as absent.
var genericSources = map[string]struct{}{
	"rag document":     {},
	"search result":    {},
	"search":           {},
	"web search":       {},
	"document":         {},
	"result":           {},
	"generic document": {},
}

// IsGenericSource reports whether the value is a known placeholder rather
// than a real origin.
func IsGenericSource(source string) bool {
	_, generic := genericSources[strings.ToLower(strings.TrimSpace(source))]
	return generic
}

// metadataSourceKeys are probed in priority order when resolving a source
// from document metadata.
var metadataSourceKeys = []string{
	"source", "file_name", "filename", "title", "url", "path", "file_path", "stored_file_path",
}

// ResolveSource computes the most specific source identifier for a
// document. Priority: metadata keys, then the top-level source, then the
// URL hostname, then the title. Generic placeholders never win; when
// nothing specific exists the result is "unknown".
func ResolveSource(doc UnifiedDocument) string {
	for _, key := range metadataSourceKeys {
		if v, ok := doc.Metadata[key].(string); ok && usable(v) {
			if key == "url" {
				if host := Hostname(v); host != "" {
					return host
				}
			}
			return strings.TrimSpace(v)
		}
	}
	if usable(doc.Source) {
		return strings.TrimSpace(doc.Source)
	}
	if host := Hostname(doc.URL); host != "" {
		return host
	}
	if usable(doc.Title) {
		return strings.TrimSpace(doc.Title)
	}
	return "unknown"
}

func usable(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !IsGenericSource(v)
}

// Hostname extracts the host part of a URL, without port. Empty when the
// value does not parse as a URL with a host.
func Hostname(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}
