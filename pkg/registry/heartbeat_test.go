package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeater_KeepsRegistrationFresh(t *testing.T) {
	client, store := newTestRegistry(t)

	h := NewHeartbeater(client, dnsService(), discardLogger())
	h.interval = 20 * time.Millisecond

	require.NoError(t, h.Start(context.Background()))

	services := store.List("")
	require.Len(t, services, 1)
	registeredAt := services[0].LastHeartbeat

	require.Eventually(t, func() bool {
		services := store.List("")
		return len(services) == 1 && services[0].LastHeartbeat.After(registeredAt)
	}, time.Second, 5*time.Millisecond, "heartbeat never refreshed the registration")

	// Stop deregisters the service.
	h.Stop()
	assert.Empty(t, store.List(""))
}

func TestHeartbeater_ReregistersWhenRecordLost(t *testing.T) {
	client, store := newTestRegistry(t)

	h := NewHeartbeater(client, dnsService(), discardLogger())
	h.interval = 20 * time.Millisecond

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	require.Len(t, store.List(""), 1)

	// Simulate a registry restart losing the record.
	require.True(t, store.Remove("dns-worker-1"))

	require.Eventually(t, func() bool {
		return len(store.List("")) == 1
	}, time.Second, 5*time.Millisecond, "heartbeater never re-registered the lost record")
}

func TestHeartbeater_StartTwiceIsNoOp(t *testing.T) {
	client, store := newTestRegistry(t)

	h := NewHeartbeater(client, dnsService(), discardLogger())
	h.interval = 20 * time.Millisecond

	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	assert.Equal(t, 1, store.Len())
}

func TestHeartbeater_StartFailsWhenRegistryDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", discardLogger())

	h := NewHeartbeater(client, dnsService(), discardLogger())
	err := h.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dns-worker-1")
}

func TestNextBackoff_DoublesUpToCap(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
	assert.Equal(t, 4*time.Second, nextBackoff(2*time.Second))
	assert.Equal(t, 8*time.Second, nextBackoff(4*time.Second))
	assert.Equal(t, 8*time.Second, nextBackoff(8*time.Second))
}
