package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"BirbFetcher/internal/ports"
)

// DefaultIngestInterval is the gap between two ingestion cycle starts.
const DefaultIngestInterval = 10 * time.Minute

// Scheduler runs the ingestion and moderation loops side by side on a driver.
type Scheduler struct {
	driver         ports.Scheduler
	pipeline       *Pipeline
	moderator      *Moderator
	ingestInterval time.Duration
}

// NewScheduler wires the driver with both periodic use cases. Either use case
// may be nil to leave its loop out.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, moderator *Moderator, ingestInterval time.Duration) *Scheduler {
	if ingestInterval <= 0 {
		ingestInterval = DefaultIngestInterval
	}
	return &Scheduler{
		driver:         driver,
		pipeline:       pipeline,
		moderator:      moderator,
		ingestInterval: ingestInterval,
	}
}

// Run blocks until ctx is cancelled or a loop driver fails.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if s.pipeline != nil {
		g.Go(func() error {
			return s.driver.Run(ctx, s.IngestJob())
		})
	}
	if s.moderator != nil {
		g.Go(func() error {
			return s.driver.Run(ctx, s.ModerationJob())
		})
	}
	return g.Wait()
}

// IngestJob runs one cycle and schedules the next one interval after this
// one started, or right away if the cycle overran.
func (s *Scheduler) IngestJob() ports.Job {
	return func(ctx context.Context, trigger time.Time) time.Duration {
		s.pipeline.RunCycle(ctx)
		return s.ingestInterval - time.Since(trigger)
	}
}

// ModerationJob lets the moderator pick its own pace.
func (s *Scheduler) ModerationJob() ports.Job {
	return func(ctx context.Context, _ time.Time) time.Duration {
		return s.moderator.Tick(ctx)
	}
}
