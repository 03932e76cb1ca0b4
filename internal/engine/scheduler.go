package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/groupguard/internal/trigger"
)

// Run is the periodic scheduler. Every CheckInterval it re-evaluates the
// trigger for each buffered group and then sweeps expired messages. It
// returns nil once ctx is cancelled, never in the middle of a sweep.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.CheckInterval)
	defer ticker.Stop()

	e.log.Info("scheduler started",
		zap.String("mode", string(e.opts.Mode)),
		zap.Duration("interval", e.opts.CheckInterval))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one scheduler iteration. Triggered groups are processed in
// parallel; the expiry sweep runs after all of them finish.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()

	var g errgroup.Group
	for _, groupID := range e.buf.Groups() {
		total := e.buf.TotalCount(groupID)
		elapsed := e.clocks.Elapsed(groupID, now)
		if !trigger.ShouldTriggerOnTick(e.opts.Mode, total, e.opts.BatchSize, elapsed, e.opts.CheckInterval) {
			continue
		}
		triggersTotal.WithLabelValues(SourceScheduler).Inc()
		e.log.Debug("scheduler trigger fired",
			zap.String("group", groupID),
			zap.Int("count", total),
			zap.Duration("elapsed", elapsed))

		g.Go(func() error {
			e.process(context.WithoutCancel(ctx), groupID, SourceScheduler)
			return nil
		})
	}
	_ = g.Wait()

	if n := e.buf.ExpireOlderThan(now.Add(-MessageTTL)); n > 0 {
		messagesExpired.Add(float64(n))
		e.log.Info("expired stale messages", zap.Int("count", n))
	}
}
