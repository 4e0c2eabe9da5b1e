package scheduler

import (
	"context"
	"log/slog"
	"time"

	"BirbFetcher/internal/ports"
)

// Loop runs a job back to back, sleeping for whatever delay the job asks for.
// It holds no state, so one Loop can drive several jobs concurrently.
type Loop struct {
	name   string
	logger *slog.Logger
}

var _ ports.Scheduler = (*Loop)(nil)

// NewLoop builds a driver; name only labels log lines.
func NewLoop(name string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{name: name, logger: logger}
}

// Run fires the job immediately and then after each returned delay until ctx
// is cancelled. Cancellation is a clean stop and returns nil.
func (l *Loop) Run(ctx context.Context, job ports.Job) error {
	if job == nil {
		return nil
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped", "loop", l.name)
			return nil
		case trigger := <-timer.C:
			delay := job(ctx, trigger)
			if delay < 0 {
				delay = 0
			}
			l.logger.Debug("loop tick done", "loop", l.name, "next_in", delay)
			timer.Reset(delay)
		}
	}
}
