package workflow

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/patrol/internal/inference"
)

// Refine runs the second pass over flagged results that are not yet
// refined, RefineConcurrency items at a time. A failed item keeps its
// first-pass result. It returns the results updated by this pass, which
// are valid even when the pass ends Stopped, Exhausted, or Failed.
//
// A refinement that runs to the end leaves the run in the state its first
// pass ended in, so only a fully screened run reads Completed. A stop
// requested earlier and not cleared with ResumeStop ends the pass before
// its first batch.
func (r *Run) Refine(ctx context.Context) ([]Result, error) {
	if err := r.state.begin(StateRefining, StateCompleted, StateStopped, StateExhausted); err != nil {
		return nil, err
	}
	r.pass = PassRefine
	r.rt.Metrics.PassStarted(r.pass)

	if r.pool.Exhausted() {
		return nil, r.end(ctx, StateExhausted, MessageExhausted)
	}

	targets := r.results.Pending()
	r.state.refineTotal.Store(int64(len(targets)))
	r.state.refineDone.Store(0)

	r.logger.InfoContext(ctx, "refinement started",
		"flagged", len(targets),
		"concurrency", r.cfg.RefineConcurrency,
	)

	if err := r.rt.sleep(ctx, r.rt.jitter(r.cfg.StartupJitter)); err != nil {
		return nil, r.fail(ctx, err)
	}

	var refined []Result
	for i := 0; i < len(targets); i += r.cfg.RefineConcurrency {
		if i > 0 {
			pause := r.cfg.RefinePacing + r.rt.jitter(r.cfg.RefineJitter)
			if err := r.rt.sleep(ctx, pause); err != nil {
				return refined, r.fail(ctx, err)
			}
		}
		if r.state.StopRequested() {
			return refined, r.end(ctx, StateStopped, MessageStopped)
		}

		batch := targets[i:min(i+r.cfg.RefineConcurrency, len(targets))]
		updated, err := r.refineBatch(ctx, batch)
		refined = append(refined, updated...)
		r.state.refineDone.Add(int64(len(batch)))

		if err != nil {
			if errors.Is(err, ErrPoolExhausted) {
				return refined, r.end(ctx, StateExhausted, MessageExhausted)
			}
			return refined, r.fail(ctx, err)
		}
	}

	return refined, r.end(ctx, r.screened, r.screenedMessage)
}

func (r *Run) refineBatch(ctx context.Context, batch []Result) ([]Result, error) {
	verdicts := make([]*inference.Verdict, len(batch))

	var g errgroup.Group
	g.SetLimit(r.cfg.RefineConcurrency)

	for i, res := range batch {
		g.Go(func() error {
			prior := inference.Prior{Risk: res.Risk.String(), Reason: res.Reason}
			v, err := r.policy.One(ctx, res.Item(), prior)
			if err != nil {
				if errors.Is(err, ErrPoolExhausted) || ctx.Err() != nil {
					return err
				}
				r.logger.WarnContext(ctx, "refinement failed, keeping first-pass result",
					"id", res.ID,
					"error", err,
				)
				return nil
			}
			verdicts[i] = &v
			return nil
		})
	}

	waitErr := g.Wait()

	var updated []Result
	for i, v := range verdicts {
		if v == nil {
			continue
		}
		res, err := r.results.Refine(batch[i].ID, *v)
		if err != nil {
			return updated, err
		}
		updated = append(updated, res)
	}

	return updated, waitErr
}
