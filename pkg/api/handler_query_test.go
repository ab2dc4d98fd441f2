package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datanaut-ai/datanaut/pkg/agent"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

func TestHandleQuery_CompletedRun(t *testing.T) {
	final := *state.New("how many contacts")
	final.FinalResponse = "There is one contact: Ada."
	final.PreviousSQLQueries = []string{"SELECT name FROM contacts"}
	final.DBResults = []map[string]any{{"name": "Ada"}}
	final.RAGDocuments = []state.UnifiedDocument{{
		Content:    "Atlantis sank.",
		Source:     "timaeus.txt",
		SourceType: state.SourceTypeLocalDocument,
		Summary:    "Plato's account.",
	}}
	fa := &fakeAgent{final: final}
	s := NewServer(testAPIConfig(), fa, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodPost, "/api/v1/query",
		`{"user_request": "how many contacts", "custom_system_prompt": "be brief"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "There is one contact: Ada.", resp.FinalResponse)
	assert.Equal(t, []string{"SELECT name FROM contacts"}, resp.SQLQueries)
	assert.Equal(t, 1, resp.RowCount)
	assert.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "timaeus.txt", resp.Documents[0].Source)
	assert.Equal(t, "Plato's account.", resp.Documents[0].Summary)

	require.NotNil(t, fa.got)
	assert.Equal(t, "how many contacts", fa.got.UserRequest)
	assert.Equal(t, "be brief", fa.got.CustomSystemPrompt)
	assert.Nil(t, fa.got.DisableSQLBlocking)
}

func TestHandleQuery_ForwardsOverrides(t *testing.T) {
	fa := &fakeAgent{final: *state.New("x")}
	s := NewServer(testAPIConfig(), fa, nil, nil, nil, testLogger())

	serve(s, http.MethodPost, "/api/v1/query",
		`{"user_request": "x", "disable_sql_blocking": true, "database_name": "crm"}`)

	require.NotNil(t, fa.got)
	require.NotNil(t, fa.got.DisableSQLBlocking)
	assert.True(t, *fa.got.DisableSQLBlocking)
	assert.Equal(t, "crm", fa.got.DatabaseName)
}

func TestHandleQuery_ApologeticRunIsStill200(t *testing.T) {
	final := *state.New("list contacts")
	final.SetError(state.ErrorKindExecution, "query failed on crm: relation vanished")
	final.FinalResponse = "I'm sorry, I could not complete this request."
	s := NewServer(testAPIConfig(), &fakeAgent{final: final}, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodPost, "/api/v1/query", `{"user_request": "list contacts"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.FinalResponse, "sorry")
	assert.Contains(t, resp.Error, "execution:")
	assert.Equal(t, 1, resp.RetryCount)
}

func TestHandleQuery_MissingUserRequest(t *testing.T) {
	s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodPost, "/api/v1/query", `{"custom_system_prompt": "hi"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UserRequest")
}

func TestHandleQuery_MalformedBody(t *testing.T) {
	s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodPost, "/api/v1/query", `{"user_request": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuery_RejectedEnvelopeIs400(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"oversized prompt", fmt.Errorf("%w: 5001 characters (limit 5000)", agent.ErrPromptTooLong), "custom system prompt too long"},
		{"unknown database", fmt.Errorf("%w: %q", agent.ErrUnknownDatabase, "warehouse"), "unknown database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(testAPIConfig(), &fakeAgent{err: tt.err}, nil, nil, nil, testLogger())

			rec := serve(s, http.MethodPost, "/api/v1/query", `{"user_request": "x"}`)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestHandleQuery_DeadlineIsGatewayTimeout(t *testing.T) {
	s := NewServer(testAPIConfig(), &fakeAgent{err: fmt.Errorf("walking graph: %w", context.DeadlineExceeded)}, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodPost, "/api/v1/query", `{"user_request": "x"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHandleQuery_AbortedWalkCarriesApology(t *testing.T) {
	final := *state.New("x")
	final.FinalResponse = "I'm sorry, I could not complete this request. The last failure was: timeout: context canceled."
	s := NewServer(testAPIConfig(), &fakeAgent{final: final, err: errors.New("walk aborted")}, nil, nil, nil, testLogger())

	rec := serve(s, http.MethodPost, "/api/v1/query", `{"user_request": "x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "walk aborted")
	assert.Contains(t, rec.Body.String(), "final_response")
}
