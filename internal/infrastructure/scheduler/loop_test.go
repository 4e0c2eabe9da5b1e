package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"BirbFetcher/internal/logging"
)

func TestLoopRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- NewLoop("test", logging.Discard()).Run(ctx, func(context.Context, time.Time) time.Duration {
			if calls.Add(1) == 3 {
				cancel()
				return time.Hour
			}
			return time.Millisecond
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop")
	}

	if calls.Load() != 3 {
		t.Fatalf("expected 3 runs, got %d", calls.Load())
	}
}

func TestLoopHonoursReturnedDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	err := NewLoop("slow", logging.Discard()).Run(ctx, func(context.Context, time.Time) time.Duration {
		calls.Add(1)
		return time.Hour
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single run before the long delay, got %d", calls.Load())
	}
}

func TestLoopNilJob(t *testing.T) {
	t.Parallel()

	if err := NewLoop("nil", nil).Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
