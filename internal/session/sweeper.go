package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically tears down sessions whose host socket died without a
// clean close.
type Sweeper struct {
	controller *Controller
	interval   time.Duration
	logger     *zap.Logger
}

// NewSweeper creates a sweeper with the given interval.
func NewSweeper(controller *Controller, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{controller: controller, interval: interval, logger: logger}
}

// Run loops until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("session sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.controller.SweepDeadHosts()
		}
	}
}
