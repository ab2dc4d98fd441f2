package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

const (
	// maxSearchHits caps how many search results go through the download
	// and summarization pipeline.
	maxSearchHits = 5
	// maxDocContentChars caps raw page text kept when summarization is
	// unavailable.
	maxDocContentChars = 2000
)

// searchHit is one extracted search result.
type searchHit struct {
	URL     string
	Title   string
	Snippet string
}

// processSearchResults enriches search-worker hits: each URL is downloaded
// in parallel, summarized against the user request, then the batch is
// reranked by relevance. Every produced document carries a real source (URL
// hostname, title as fallback).
func (a *Agent) processSearchResults(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	hits := a.collectSearchHits(s)
	if len(hits) == 0 {
		return s, nil
	}
	if len(hits) > maxSearchHits {
		hits = hits[:maxSearchHits]
	}

	docs := make([]state.UnifiedDocument, len(hits))
	var wg sync.WaitGroup
	for i, hit := range hits {
		wg.Add(1)
		go func(i int, hit searchHit) {
			defer wg.Done()
			docs[i] = a.enrichHit(ctx, s.UserRequest, hit)
		}(i, hit)
	}
	wg.Wait()

	a.rerankDocuments(ctx, s.UserRequest, docs)
	s.RAGDocuments = append(s.RAGDocuments, docs...)
	a.logger.Info("Search results processed", "documents", len(docs))
	return s, nil
}

// collectSearchHits extracts URL/title/snippet triples from successful
// search-worker results, deduplicating by URL.
func (a *Agent) collectSearchHits(s state.AgentState) []searchHit {
	seen := make(map[string]struct{})
	var hits []searchHit
	for _, res := range s.MCPServiceResults {
		if res.Status != state.CallStatusSuccess {
			continue
		}
		if a.serviceType(s, res.ServiceID) != serviceTypeSearch && res.Action != "search" {
			continue
		}
		list, ok := res.Result.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			hit := searchHit{
				URL:     stringField(m, "url", "link", "href"),
				Title:   stringField(m, "title", "name"),
				Snippet: stringField(m, "snippet", "description", "content", "summary"),
			}
			if hit.URL == "" {
				continue
			}
			if _, dup := seen[hit.URL]; dup {
				continue
			}
			seen[hit.URL] = struct{}{}
			hits = append(hits, hit)
		}
	}
	return hits
}

// enrichHit turns one search hit into a processed document. Download or
// summarization failures degrade to the snippet; the hit is never dropped.
func (a *Agent) enrichHit(ctx context.Context, userRequest string, hit searchHit) state.UnifiedDocument {
	doc := state.UnifiedDocument{
		Content:    hit.Snippet,
		SourceType: state.SourceTypeProcessedSearch,
		URL:        hit.URL,
		Title:      hit.Title,
	}
	doc.Source = state.Hostname(hit.URL)
	if doc.Source == "" {
		doc.Source = hit.Title
	}
	if doc.Source == "" || state.IsGenericSource(doc.Source) {
		doc.Source = "unknown"
	}

	res := a.deps.Adapter.CallByType(ctx, serviceTypeDownload, "download", map[string]any{"url": hit.URL})
	if res.Status != state.CallStatusSuccess {
		a.logger.Warn("Page download failed, keeping the snippet", "url", hit.URL, "error", res.Error)
		return doc
	}
	content := textPayload(res.Result)
	if content == "" {
		return doc
	}

	summary, err := a.deps.LLM.Complete(ctx, config.RoleDefault,
		a.prompt.SummarizeRequest(userRequest, hit.URL, content))
	if err != nil {
		a.logger.Warn("Page summarization failed, keeping raw text", "url", hit.URL, "error", err)
		doc.Content = clipRunes(content, maxDocContentChars)
		return doc
	}
	doc.Summary = summary
	doc.Content = summary
	return doc
}

// rerankScore is one entry of the reranking reply.
type rerankScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// rerankDocuments asks the default model to score the batch and sorts it
// best-first. A failed or unparseable reranking leaves the original order.
func (a *Agent) rerankDocuments(ctx context.Context, userRequest string, docs []state.UnifiedDocument) {
	if len(docs) < 2 {
		if len(docs) == 1 {
			docs[0].RelevanceScore = 1
		}
		return
	}

	snippets := make([]string, len(docs))
	for i, doc := range docs {
		snippets[i] = doc.Content
	}
	reply, err := a.deps.LLM.Complete(ctx, config.RoleDefault, a.prompt.RerankRequest(userRequest, snippets))
	if err != nil {
		a.logger.Warn("Reranking failed, keeping search order", "error", err)
		return
	}

	scores, err := parseRerank(reply, len(docs))
	if err != nil {
		a.logger.Warn("Unparseable reranking reply, keeping search order", "error", err)
		return
	}
	for i := range docs {
		docs[i].RelevanceScore = scores[i]
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].RelevanceScore > docs[j].RelevanceScore
	})
}

// parseRerank decodes the score array, tolerating text around it. Entries
// with out-of-range indexes are dropped; unscored documents stay at zero.
func parseRerank(raw string, count int) ([]float64, error) {
	span := jsonArray(raw)
	if span == "" {
		return nil, fmt.Errorf("no JSON array in reranking reply")
	}
	var entries []rerankScore
	if err := json.Unmarshal([]byte(span), &entries); err != nil {
		return nil, fmt.Errorf("decode reranking reply: %w", err)
	}

	scores := make([]float64, count)
	for _, e := range entries {
		if e.Index < 0 || e.Index >= count {
			continue
		}
		scores[e.Index] = e.Score
	}
	return scores, nil
}

// jsonArray cuts the outermost [...] span out of raw.
func jsonArray(raw string) string {
	start := -1
	for i, r := range raw {
		if r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	for i := len(raw) - 1; i > start; i-- {
		if raw[i] == ']' {
			return raw[start : i+1]
		}
	}
	return ""
}

// documentsFromPayload converts a rag-worker reply into unified documents.
// Each document's source goes through the resolution chain so placeholders
// never survive.
func documentsFromPayload(payload any) []state.UnifiedDocument {
	list, ok := payload.([]any)
	if !ok {
		return nil
	}

	var docs []state.UnifiedDocument
	for _, item := range list {
		if text, ok := item.(string); ok {
			if text != "" {
				docs = append(docs, state.UnifiedDocument{
					Content:    text,
					Source:     "unknown",
					SourceType: state.SourceTypeLocalDocument,
				})
			}
			continue
		}
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}

		doc := state.UnifiedDocument{
			Content:    stringField(m, "content", "text", "page_content"),
			Source:     stringField(m, "source"),
			SourceType: state.SourceTypeLocalDocument,
			URL:        stringField(m, "url"),
			Title:      stringField(m, "title"),
		}
		if doc.Content == "" {
			continue
		}
		if score, ok := floatField(m, "relevance_score", "score"); ok {
			doc.RelevanceScore = score
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			doc.Metadata = meta
		}
		doc.Source = state.ResolveSource(doc)
		docs = append(docs, doc)
	}
	return docs
}

// textPayload extracts page text from a download-worker reply.
func textPayload(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	case map[string]any:
		return stringField(v, "content", "text", "html", "body")
	default:
		return ""
	}
}

// stringField returns the first non-empty string among the keys.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// floatField returns the first numeric value among the keys.
func floatField(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}

// clipRunes truncates s to max runes.
func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
