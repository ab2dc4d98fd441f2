// Package cleanup enforces run-history retention.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/datanaut-ai/datanaut/pkg/config"
)

// RunPruner deletes runs recorded before a cutoff. *history.Store
// implements it.
type RunPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically deletes runs older than the retention window.
// Pruning is idempotent and safe to run from multiple replicas.
type Service struct {
	config *config.RetentionConfig
	store  RunPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. A nil cfg gets the built-in
// retention defaults.
func NewService(cfg *config.RetentionConfig, store RunPruner) *Service {
	if cfg == nil {
		cfg = config.DefaultRetentionConfig()
	}
	return &Service{config: cfg, store: store}
}

// Start launches the background cleanup loop. A zero retention window
// means nothing to enforce, so no loop is started.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil || s.config.RunRetentionDays <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"run_retention_days", s.config.RunRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.pruneOldRuns(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneOldRuns(ctx)
		}
	}
}

func (s *Service) pruneOldRuns(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.config.RunRetentionDays) * 24 * time.Hour)
	count, err := s.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: run pruning failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned old runs", "count", count)
	}
}
