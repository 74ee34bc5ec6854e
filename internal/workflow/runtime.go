package workflow

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/metrics"
)

// Runtime bundles the dependencies a run requires. Sleep, Jitter, and Now
// default to real time and math/rand when nil; tests replace them.
type Runtime struct {
	Client  inference.Client
	Logger  *slog.Logger
	Metrics *metrics.Collector

	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(limit time.Duration) time.Duration
	Now    func() time.Time
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (rt *Runtime) sleep(ctx context.Context, d time.Duration) error {
	if rt.Sleep != nil {
		return rt.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// jitter returns a uniform duration in [0, limit).
func (rt *Runtime) jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	if rt.Jitter != nil {
		return rt.Jitter(limit)
	}
	return rand.N(limit)
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}
