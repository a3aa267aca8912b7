package app

import (
	"sync"
	"time"

	"govreminder/internal/metrics"
	"govreminder/internal/observability/debugsrv"
)

// health remembers the last run for /healthz.
type health struct {
	mu      sync.Mutex
	lastRun time.Time
	lastOK  time.Time
	lastErr string
}

func (h *health) record(rep Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRun = rep.StartedAt
	if rep.Outcome == metrics.OutcomeOK {
		h.lastOK = rep.StartedAt
		h.lastErr = ""
		return
	}
	h.lastErr = rep.Err
}

// snapshot is degraded while the latest run failed. Before the first run
// the process is considered healthy.
func (h *health) snapshot(next time.Time) debugsrv.Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	status := "ok"
	if h.lastErr != "" {
		status = "degraded"
	}
	return debugsrv.Health{
		Status:    status,
		LastRun:   h.lastRun,
		LastOK:    h.lastOK,
		LastError: h.lastErr,
		NextRun:   next,
	}
}
