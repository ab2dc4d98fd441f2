package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dnsService() ServiceInfo {
	return ServiceInfo{
		ID:   "dns-worker-1",
		Host: "10.0.0.5",
		Port: 8600,
		Type: "dns",
		Metadata: map[string]any{
			"capabilities": []string{"resolve", "reverse"},
		},
	}
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getServices(t *testing.T, router *gin.Engine, query string) []ServiceInfo {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/services"+query, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload servicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Services
}

func TestRegisterAndListServices(t *testing.T) {
	store := NewStore(discardLogger())
	router := NewServer(store, discardLogger()).Routes()

	rec := postJSON(t, router, "/register",
		`{"id":"dns-worker-1","host":"10.0.0.5","port":8600,"type":"dns","metadata":{"capabilities":["resolve"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	services := getServices(t, router, "")
	require.Len(t, services, 1)
	assert.Equal(t, "dns-worker-1", services[0].ID)
	assert.Equal(t, "http://10.0.0.5:8600", services[0].Endpoint())
	assert.Equal(t, []string{"resolve"}, services[0].Capabilities())
	assert.Equal(t, DefaultTTLSeconds, services[0].TTLSeconds)
	assert.False(t, services[0].LastHeartbeat.IsZero())
}

func TestRegister_RejectsMissingFields(t *testing.T) {
	router := NewServer(NewStore(discardLogger()), discardLogger()).Routes()

	cases := []struct {
		name string
		body string
	}{
		{"no id", `{"host":"10.0.0.5","port":8600,"type":"dns"}`},
		{"no host", `{"id":"dns-worker-1","port":8600,"type":"dns"}`},
		{"zero port", `{"id":"dns-worker-1","host":"10.0.0.5","type":"dns"}`},
		{"not json", `resolve please`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServices_FilterByType(t *testing.T) {
	store := NewStore(discardLogger())
	router := NewServer(store, discardLogger()).Routes()

	store.Put(dnsService())
	store.Put(ServiceInfo{ID: "search-worker-1", Host: "10.0.0.6", Port: 8700, Type: "search"})

	assert.Len(t, getServices(t, router, ""), 2)

	dns := getServices(t, router, "?type=dns")
	require.Len(t, dns, 1)
	assert.Equal(t, "dns-worker-1", dns[0].ID)

	assert.Empty(t, getServices(t, router, "?type=rag"))
}

func TestHeartbeat_UnknownService(t *testing.T) {
	router := NewServer(NewStore(discardLogger()), discardLogger()).Routes()

	rec := postJSON(t, router, "/heartbeat", `{"id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeregister_RemovesService(t *testing.T) {
	store := NewStore(discardLogger())
	router := NewServer(store, discardLogger()).Routes()
	store.Put(dnsService())

	rec := postJSON(t, router, "/deregister", `{"id":"dns-worker-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, getServices(t, router, ""))

	rec = postJSON(t, router, "/deregister", `{"id":"dns-worker-1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTTLExpiry_RemovesSilentWorker(t *testing.T) {
	store := NewStore(discardLogger())
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put(dnsService())
	require.Len(t, store.List(""), 1)

	// Inside the 45s lifetime the worker stays discoverable.
	current = current.Add(44 * time.Second)
	require.Len(t, store.List(""), 1)

	// One silent second past the TTL and it is gone.
	current = current.Add(2 * time.Second)
	assert.Empty(t, store.List(""))
	assert.Equal(t, 0, store.Len())

	// The sweeper reclaims the stale record, and a late heartbeat is refused.
	assert.Equal(t, 1, store.Sweep())
	assert.False(t, store.Touch("dns-worker-1"))
}

func TestHeartbeat_ExtendsLifetime(t *testing.T) {
	store := NewStore(discardLogger())
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put(dnsService())

	current = current.Add(40 * time.Second)
	require.True(t, store.Touch("dns-worker-1"))

	// 40s after the heartbeat the worker is still live, 80s after Put.
	current = current.Add(40 * time.Second)
	require.Len(t, store.List(""), 1)

	current = current.Add(6 * time.Second)
	assert.Empty(t, store.List(""))
}

func TestHealthEndpoint(t *testing.T) {
	store := NewStore(discardLogger())
	router := NewServer(store, discardLogger()).Routes()
	store.Put(dnsService())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Status   string `json:"status"`
		Services int    `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload.Status)
	assert.Equal(t, 1, payload.Services)
}

func TestServerStop_Idempotent(t *testing.T) {
	srv := NewServer(NewStore(discardLogger()), discardLogger())
	srv.StartSweeper(context.Background())

	srv.Stop()
	srv.Stop()
}
