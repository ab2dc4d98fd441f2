package database

import (
	"context"
	"time"
)

// HealthStatus reports connectivity and connection pool statistics for one
// database.
type HealthStatus struct {
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	ResponseTime    int64  `json:"response_time_ms"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	WaitDuration    int64  `json:"wait_duration_ms"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

// Health pings every configured database and returns its status keyed by
// name. An unreachable database reports unhealthy with the failure attached;
// the rest of the report proceeds.
func (m *Manager) Health(ctx context.Context) map[string]HealthStatus {
	report := make(map[string]HealthStatus, len(m.configs))
	for _, name := range m.Names() {
		report[name] = m.healthOne(ctx, name)
	}
	return report
}

func (m *Manager) healthOne(ctx context.Context, name string) HealthStatus {
	start := time.Now()

	db, err := m.pool(name)
	if err != nil {
		return HealthStatus{
			Status:       "unhealthy",
			Error:        err.Error(),
			ResponseTime: time.Since(start).Milliseconds(),
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return HealthStatus{
			Status:       "unhealthy",
			Error:        err.Error(),
			ResponseTime: time.Since(start).Milliseconds(),
		}
	}

	stats := db.Stats()
	return HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start).Milliseconds(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration.Milliseconds(),
		MaxOpenConns:    stats.MaxOpenConnections,
	}
}
