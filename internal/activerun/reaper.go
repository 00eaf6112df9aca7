package activerun

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically calls Registry.ReapTimedOut on a fixed interval
// (janitord passes internal/config's ReaperInterval).
type Reaper struct {
	registry    Registry
	interval    time.Duration
	timeout     time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewReaper builds a Reaper. interval is how often to scan; timeout is
// heartbeat_timeout (a run silent for longer than this is considered
// dead); maxAttempts bounds re-queueing: a timed-out run's queue entry is
// re-queued at most maxAttempts-1 times, and the next timeout drops it.
func NewReaper(registry Registry, interval, timeout time.Duration, maxAttempts int, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{registry: registry, interval: interval, timeout: timeout, maxAttempts: maxAttempts, logger: logger}
}

// Run blocks, reaping on every tick until ctx is cancelled. Intended to be
// started as a startup hook's background goroutine and stopped via
// context cancellation from a shutdown hook.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.registry.ReapTimedOut(ctx, r.timeout, r.maxAttempts)
			if err != nil {
				r.logger.Error("active-run reap failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Info("reaped timed-out runs", "count", n)
			}
		}
	}
}
