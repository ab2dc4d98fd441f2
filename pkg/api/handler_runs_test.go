package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datanaut-ai/datanaut/pkg/history"
)

func TestHandleRuns_ReturnsRecentRuns(t *testing.T) {
	hist := &fakeHistory{runs: []history.Run{
		{
			ID:            "0198b2ce-1111-7000-8000-000000000001",
			Request:       "how many contacts",
			SQLQueries:    []string{"SELECT count(*) FROM contacts"},
			RowCount:      1,
			FinalResponse: "One contact.",
			Duration:      420 * time.Millisecond,
			CreatedAt:     time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC),
		},
	}}
	s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, hist, testLogger())

	rec := serve(s, http.MethodGet, "/api/v1/runs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "how many contacts", resp.Runs[0].Request)
	assert.Equal(t, 20, hist.limit, "default page size")
}

func TestHandleRuns_LimitQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"explicit limit", "?limit=5", http.StatusOK, 5},
		{"capped at the maximum", "?limit=5000", http.StatusOK, 100},
		{"zero rejected", "?limit=0", http.StatusBadRequest, 0},
		{"negative rejected", "?limit=-3", http.StatusBadRequest, 0},
		{"garbage rejected", "?limit=soon", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := &fakeHistory{}
			s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, hist, testLogger())

			rec := serve(s, http.MethodGet, "/api/v1/runs"+tt.query, "")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantLimit, hist.limit)
			} else {
				assert.Contains(t, rec.Body.String(), "limit must be a positive integer")
			}
		})
	}
}

func TestHandleRuns_NotConfiguredIs404(t *testing.T) {
	s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodGet, "/api/v1/runs", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run history is not configured")
}

func TestHandleRuns_ReadFailureIs500(t *testing.T) {
	hist := &fakeHistory{readErr: errors.New("pool closed")}
	s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, hist, testLogger())

	rec := serve(s, http.MethodGet, "/api/v1/runs", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "run history read failed")
}
