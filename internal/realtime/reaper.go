package realtime

import (
	"context"
	"time"

	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type Reaper struct {
	reg       *Registry
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	log       *logger.Logger
	metrics   *observability.Metrics
}

func NewReaper(reg *Registry, interval, threshold time.Duration, log *logger.Logger, metrics *observability.Metrics) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if threshold <= 0 {
		threshold = 600 * time.Second
	}
	return &Reaper{
		reg:       reg,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		log:       log.With("component", "StaleConnectionReaper"),
		metrics:   metrics,
	}
}

// Run sweeps on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	r.log.Info("Reaper starting", "interval", r.interval.String(), "threshold", r.threshold.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Reaper stopping")
			return nil
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// Sweep force-closes and removes every key idle longer than the threshold at now.
// It returns the number of connections closed.
func (r *Reaper) Sweep(now time.Time) int {
	stale := r.reg.RemoveInactive(now, r.threshold)
	closed := 0
	for key, conns := range stale {
		for _, c := range conns {
			if err := c.Close(CloseGoingAway, "inactive"); err != nil {
				r.log.Warn("close of stale connection failed", "key", key.String(), "conn_id", c.ID(), "error", err)
			}
			closed++
		}
		r.log.Info("reaped inactive connections", "key", key.String(), "count", len(conns))
	}
	r.metrics.AddReaped(closed)
	return closed
}
