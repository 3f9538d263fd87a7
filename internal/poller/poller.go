package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/jvreeland/questlog/internal/logger"
	"github.com/jvreeland/questlog/internal/session"
)

type implPoller struct {
	pipeline session.Pipeline
	logger   logger.Logger
	interval time.Duration
	wakeup   <-chan struct{}
}

// New creates a poller running the pipeline every interval. wakeup may be
// nil; when provided, a signal on it triggers the next cycle immediately.
func New(pipeline session.Pipeline, log logger.Logger, interval time.Duration, wakeup <-chan struct{}) Poller {
	return &implPoller{
		pipeline: pipeline,
		logger:   log,
		interval: interval,
		wakeup:   wakeup,
	}
}

func (p *implPoller) Run(ctx context.Context) error {
	p.logger.Info(ctx, "Poller started (interval: %s)", p.interval)

	timer := time.NewTimer(0) // first cycle runs immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "Poller stopped")
			return ctx.Err()
		case <-timer.C:
		case <-p.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			p.logger.Debug(ctx, "Woken up early by upload watcher")
		}

		// The in-flight cycle always completes: cancellation is honored
		// at the select above, never mid-stage.
		if err := p.pipeline.RunCycle(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("poll cycle: %w", err)
		}

		timer.Reset(p.interval)
	}
}
