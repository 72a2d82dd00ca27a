package client

import (
	"context"
	"time"

	"github.com/fornellas/slogxt/log"
)

// PeriodicTask calls Fn every Interval until the context is done. It does not depend on any UI
// or scheduler: Run fits a worker_manager worker, a goroutine or a test.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Fn       func(context.Context) error
}

// Run calls Fn once right away and then at every tick. Errors returned by Fn are logged and do not
// stop the task. Ticks are skipped while Fn is still running.
func (p *PeriodicTask) Run(ctx context.Context) error {
	ctx, logger := log.MustWithGroupAttrs(ctx, "PeriodicTask", "name", p.Name, "interval", p.Interval)
	logger.Debug("Starting")

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		if err := p.Fn(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Failed", "err", err)
		}
		select {
		case <-ctx.Done():
			logger.Debug("Done")
			return nil
		case <-ticker.C:
		}
	}
}
