package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Heartbeat failure backoff bounds.
const (
	initialHeartbeatBackoff = time.Second
	maxHeartbeatBackoff     = 8 * time.Second
)

// Heartbeater keeps one registration alive in the background. Heartbeat
// failures back off exponentially and never terminate the host; a registry
// that lost the record gets a fresh registration.
type Heartbeater struct {
	client   *Client
	info     ServiceInfo
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// NewHeartbeater builds a heartbeater for the given service registration.
func NewHeartbeater(client *Client, info ServiceInfo, logger *slog.Logger) *Heartbeater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeater{
		client:   client,
		info:     info,
		interval: DefaultHeartbeatInterval * time.Second,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start registers the service and launches the heartbeat loop. It is safe
// to call multiple times; subsequent calls are no-ops.
func (h *Heartbeater) Start(ctx context.Context) error {
	if h.started {
		h.logger.Warn("Heartbeater already started, ignoring duplicate Start call", "service_id", h.info.ID)
		return nil
	}
	h.started = true

	if err := h.client.Register(ctx, h.info); err != nil {
		return fmt.Errorf("register service %q: %w", h.info.ID, err)
	}

	h.wg.Add(1)
	go h.run(ctx)
	return nil
}

// Stop terminates the loop, waits for it to finish, and deregisters the
// service. Safe to call multiple times.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.client.Deregister(ctx, h.info.ID); err != nil {
			h.logger.Warn("Deregister on stop failed", "service_id", h.info.ID, "error", err)
		}
	})
}

// run is the heartbeat loop.
func (h *Heartbeater) run(ctx context.Context) {
	defer h.wg.Done()

	log := h.logger.With("service_id", h.info.ID)
	log.Info("Heartbeat loop started", "interval", h.interval)

	backoff := initialHeartbeatBackoff
	timer := time.NewTimer(h.interval)
	defer timer.Stop()

	for {
		select {
		case <-h.stopCh:
			log.Info("Heartbeat loop stopping")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, heartbeat loop stopping")
			return
		case <-timer.C:
			err := h.client.Heartbeat(ctx, h.info.ID)
			if errors.Is(err, ErrNotRegistered) {
				// The registry restarted or expired the record; put it back.
				log.Info("Registration lost, re-registering")
				err = h.client.Register(ctx, h.info)
			}
			if err != nil {
				log.Warn("Heartbeat failed, backing off", "backoff", backoff, "error", err)
				timer.Reset(backoff)
				backoff = nextBackoff(backoff)
				continue
			}
			backoff = initialHeartbeatBackoff
			timer.Reset(h.interval)
		}
	}
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxHeartbeatBackoff {
		return maxHeartbeatBackoff
	}
	return d
}
