package workflow

import (
	"fmt"
	"time"

	"github.com/JaimeStill/patrol/internal/items"
)

// Result is the classification recorded for one item. A run holds at most
// one Result per item id.
type Result struct {
	ID            int       `json:"id"`
	Text          string    `json:"text"`
	Origin        string    `json:"origin"`
	Risk          Level     `json:"risk"`
	Reason        string    `json:"reason"`
	RefinedReason string    `json:"refined_reason,omitempty"`
	Refined       bool      `json:"refined"`
	ScreenedAt    time.Time `json:"screened_at"`
}

// Item returns the item this result was produced for.
func (r Result) Item() items.Item {
	return items.Item{ID: r.ID, Text: r.Text, Origin: r.Origin}
}

// Detail returns the refined analysis when present, otherwise the first-pass reason.
func (r Result) Detail() string {
	if r.Refined && r.RefinedReason != "" {
		return r.RefinedReason
	}
	return r.Reason
}

// RetryConfig bounds the retry and rotation policy for one logical call.
type RetryConfig struct {
	BackoffBase         time.Duration
	BackoffFactor       float64
	BackoffJitter       time.Duration
	BackoffCeiling      time.Duration
	MaxRateLimitRetries int
	MaxTransientRetries int
	TransientDelay      time.Duration
	TransientJitter     time.Duration
}

// Backoff returns the wait before rate-limit retry n (1-based), excluding jitter:
// BackoffBase * BackoffFactor^n.
func (c RetryConfig) Backoff(n int) time.Duration {
	d := float64(c.BackoffBase)
	for range n {
		d *= c.BackoffFactor
	}
	return time.Duration(d)
}

// RunConfig carries everything one run needs beyond its items and credentials.
type RunConfig struct {
	Model         string
	FallbackModel string

	BulkSize      int
	Concurrency   int
	StartupJitter time.Duration
	WavePacing    time.Duration
	WaveJitter    time.Duration

	RefineConcurrency int
	RefinePacing      time.Duration
	RefineJitter      time.Duration

	Retry RetryConfig
}

// Validate reports settings that would stall or break a run.
func (c RunConfig) Validate() error {
	switch {
	case c.Model == "":
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	case c.BulkSize <= 0:
		return fmt.Errorf("%w: bulk size must be positive", ErrInvalidConfig)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	case c.RefineConcurrency <= 0:
		return fmt.Errorf("%w: refine concurrency must be positive", ErrInvalidConfig)
	case c.Retry.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor must be at least 1", ErrInvalidConfig)
	case c.Retry.MaxRateLimitRetries < 0 || c.Retry.MaxTransientRetries < 0:
		return fmt.Errorf("%w: retry counts must not be negative", ErrInvalidConfig)
	}
	return nil
}
