package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/pkg/credentials"
)

// Policy wraps inference calls with credential rotation, model fallback,
// and bounded retries. One Policy serves one run and is safe for
// concurrent use.
type Policy struct {
	rt       *Runtime
	pool     *credentials.Pool
	retry    RetryConfig
	model    string
	fallback string
	logger   *slog.Logger
}

// NewPolicy creates a Policy drawing from pool with the models and retry
// bounds of cfg.
func NewPolicy(rt *Runtime, pool *credentials.Pool, cfg RunConfig) *Policy {
	return &Policy{
		rt:       rt,
		pool:     pool,
		retry:    cfg.Retry,
		model:    cfg.Model,
		fallback: cfg.FallbackModel,
		logger:   rt.Logger.With("workflow", "policy"),
	}
}

// Bulk screens one group. The error is ErrPoolExhausted, ErrCongested,
// ErrRetriesExhausted, or a context error.
func (p *Policy) Bulk(ctx context.Context, group []items.Item) (map[int]inference.Label, error) {
	return attempt(ctx, p, "screen", func(ctx context.Context, cred credentials.Credential, model string) (map[int]inference.Label, error) {
		return p.rt.Client.ClassifyBulk(ctx, group, cred, model)
	})
}

// One re-examines a single item with its prior label as context.
func (p *Policy) One(ctx context.Context, item items.Item, prior inference.Prior) (inference.Verdict, error) {
	return attempt(ctx, p, "refine", func(ctx context.Context, cred credentials.Credential, model string) (inference.Verdict, error) {
		return p.rt.Client.ClassifyOne(ctx, item, prior, cred, model)
	})
}

type callFunc[T any] func(ctx context.Context, cred credentials.Credential, model string) (T, error)

// attempt runs call until it succeeds or a bound is reached. Each pass
// through the loop either returns, sleeps against a counted retry, or
// quarantines a credential, so the loop ends within
// pool size + rate-limit retries + transient retries + 1 iterations.
func attempt[T any](ctx context.Context, p *Policy, stage string, call callFunc[T]) (T, error) {
	var zero T

	model := p.model
	fellBack := false
	rateLimited := 0
	transient := 0

	var pinned credentials.Credential

	for {
		cred := pinned
		pinned = ""
		if cred == "" {
			c, err := p.pool.Pick()
			if err != nil {
				return zero, err
			}
			cred = c
		}

		start := p.rt.now()
		out, err := call(ctx, cred, model)
		elapsed := p.rt.now().Sub(start)

		if err == nil {
			p.rt.Metrics.InferenceCall(stage, "ok", elapsed)
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		d, ok := inference.DispositionOf(err)
		if !ok {
			d = inference.Transient
		}
		p.rt.Metrics.InferenceCall(stage, string(d), elapsed)

		switch d {
		case inference.ModelNotFound:
			if !fellBack && p.fallback != "" && p.fallback != model {
				p.logger.WarnContext(ctx, "model not found, falling back",
					"model", model,
					"fallback", p.fallback,
				)
				fellBack = true
				model = p.fallback
				pinned = cred
				continue
			}
			p.quarantine(ctx, cred, d)

		case inference.Unauthorized, inference.BadRequest:
			p.quarantine(ctx, cred, d)

		case inference.RateLimited:
			if rateLimited >= p.retry.MaxRateLimitRetries {
				return zero, fmt.Errorf("%w: %w", ErrCongested, err)
			}
			rateLimited++
			wait := p.retry.Backoff(rateLimited) + p.rt.jitter(p.retry.BackoffJitter)
			if p.retry.BackoffCeiling > 0 {
				wait = min(wait, p.retry.BackoffCeiling)
			}
			p.rt.Metrics.Backoff(wait)
			p.logger.DebugContext(ctx, "rate limited, backing off",
				"credential", cred,
				"attempt", rateLimited,
				"wait", wait,
			)
			if err := p.rt.sleep(ctx, wait); err != nil {
				return zero, err
			}

		default:
			if transient >= p.retry.MaxTransientRetries {
				return zero, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			}
			transient++
			wait := p.retry.TransientDelay + p.rt.jitter(p.retry.TransientJitter)
			p.logger.DebugContext(ctx, "transient failure, retrying",
				"disposition", d,
				"attempt", transient,
				"error", err,
			)
			if err := p.rt.sleep(ctx, wait); err != nil {
				return zero, err
			}
		}
	}
}

func (p *Policy) quarantine(ctx context.Context, cred credentials.Credential, d inference.Disposition) {
	if !p.pool.Quarantine(cred) {
		return
	}
	p.rt.Metrics.Quarantined()
	p.logger.WarnContext(ctx, "credential quarantined",
		"credential", cred,
		"disposition", d,
		"live", p.pool.Live(),
	)
}

// congested reports whether err is a per-call give-up that degrades to
// Error results rather than ending the run.
func congested(err error) bool {
	return errors.Is(err, ErrCongested) || errors.Is(err, ErrRetriesExhausted)
}
