package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/portfolio-chat/internal/metrics"
	"go.uber.org/zap"
)

// GarbageCollector periodically removes counter records whose window has already ended.
// Such records would be reset on their next use anyway, so deleting them changes no decision.
type GarbageCollector struct {
	pruner   Pruner
	interval time.Duration
	window   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewGarbageCollector creates a collector that prunes every interval.
func NewGarbageCollector(pruner Pruner, interval, window time.Duration, log *zap.Logger) *GarbageCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &GarbageCollector{
		pruner:   pruner,
		interval: interval,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

// Start runs the GC loop until ctx is cancelled.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if gc.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := gc.Collect(ctx); err != nil {
				gc.log.Warn("ratelimit_gc_failed", zap.Error(err))
			}
		}
	}
}

// Collect prunes once and returns the number of records removed.
func (gc *GarbageCollector) Collect(ctx context.Context) (int64, error) {
	if gc.pruner == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cutoff := gc.now().Add(-gc.window)
	n, err := gc.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune counter records: %w", err)
	}
	metrics.AddPruned(n)
	if n > 0 {
		gc.log.Info("ratelimit_gc_pruned",
			zap.Int64("records", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}
