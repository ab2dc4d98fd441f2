package api

import (
	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/history"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// QueryResponse is returned by POST /api/v1/query. Error carries the
// tagged failure of an apologetic run; the response itself is still 200
// because the run completed.
type QueryResponse struct {
	RequestID     string         `json:"request_id"`
	FinalResponse string         `json:"final_response"`
	SQLQueries    []string       `json:"sql_queries,omitempty"`
	RowCount      int            `json:"row_count"`
	ServiceCalls  int            `json:"service_calls"`
	Documents     []DocumentView `json:"documents,omitempty"`
	Error         string         `json:"error,omitempty"`
	RetryCount    int            `json:"retry_count"`
	DurationMs    int64          `json:"duration_ms"`
}

// DocumentView is the document metadata exposed to API callers. Content
// stays server-side; the final response already folds it in.
type DocumentView struct {
	Source         string  `json:"source"`
	SourceType     string  `json:"source_type"`
	Title          string  `json:"title,omitempty"`
	URL            string  `json:"url,omitempty"`
	Summary        string  `json:"summary,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

func documentViews(docs []state.UnifiedDocument) []DocumentView {
	if len(docs) == 0 {
		return nil
	}
	views := make([]DocumentView, len(docs))
	for i, doc := range docs {
		views[i] = DocumentView{
			Source:         state.ResolveSource(doc),
			SourceType:     string(doc.SourceType),
			Title:          doc.Title,
			URL:            doc.URL,
			Summary:        doc.Summary,
			RelevanceScore: doc.RelevanceScore,
		}
	}
	return views
}

// Health status values.
const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// HealthCheck is one named probe inside the health report.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status    string                           `json:"status"`
	Version   string                           `json:"version"`
	Databases map[string]database.HealthStatus `json:"databases,omitempty"`
	Checks    map[string]HealthCheck           `json:"checks"`
}

// ServicesResponse is returned by GET /api/v1/services.
type ServicesResponse struct {
	Services []registry.ServiceInfo `json:"services"`
	Count    int                    `json:"count"`
}

// RunsResponse is returned by GET /api/v1/runs.
type RunsResponse struct {
	Runs  []history.Run `json:"runs"`
	Count int           `json:"count"`
}
