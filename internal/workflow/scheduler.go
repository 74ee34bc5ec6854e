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

// Run is one screening job over a fixed item list. It owns its credential
// pool, state, and results for its whole lifetime.
type Run struct {
	cfg     RunConfig
	items   []items.Item
	pool    *credentials.Pool
	rt      *Runtime
	policy  *Policy
	state   *RunState
	results *Reducer
	logger  *slog.Logger

	// pass names the pass in progress for metrics and logs.
	pass string
	// screened and screenedMessage hold how the first pass ended. A
	// refinement that runs to the end restores them.
	screened        State
	screenedMessage string
}

// NewRun validates cfg and prepares an idle run.
func NewRun(rt *Runtime, cfg RunConfig, list []items.Item, pool *credentials.Pool) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, items.ErrNoItems
	}
	if pool.Exhausted() {
		return nil, fmt.Errorf("%w: no credentials supplied", ErrPoolExhausted)
	}

	return &Run{
		cfg:     cfg,
		items:   list,
		pool:    pool,
		rt:      rt,
		policy:  NewPolicy(rt, pool, cfg),
		state:   NewRunState(len(list)),
		results: NewReducer(),
		logger:  rt.Logger.With("workflow", "run"),
	}, nil
}

// State returns the run's state tracker.
func (r *Run) State() *RunState {
	return r.state
}

// Stop requests a stop at the next wave or batch boundary.
func (r *Run) Stop() {
	r.state.RequestStop()
}

// Results returns every recorded result ordered by id.
func (r *Run) Results() []Result {
	return r.results.Results()
}

// Counts tallies recorded results per level.
func (r *Run) Counts() map[Level]int {
	return r.results.Counts()
}

// Progress returns the state snapshot together with credential pool health.
func (r *Run) Progress() Progress {
	p := r.state.Snapshot()
	p.LiveKeys = r.pool.Live()
	p.Quarantined = len(r.pool.Quarantined())
	return p
}

// Screen runs the first pass: a startup delay, then waves of up to
// Concurrency bulk groups until every item has a result, a stop is
// requested, or the pool is exhausted. Completed, Stopped, and Exhausted
// return nil; the state carries the outcome. A cancelled ctx ends the run
// as Failed and returns the context error.
func (r *Run) Screen(ctx context.Context) error {
	if err := r.state.begin(StateInitializing, StateIdle); err != nil {
		return err
	}
	r.pass = PassScreen
	r.rt.Metrics.PassStarted(r.pass)

	r.logger.InfoContext(ctx, "screening started",
		"items", len(r.items),
		"bulk_size", r.cfg.BulkSize,
		"concurrency", r.cfg.Concurrency,
		"credentials", r.pool.Live(),
	)

	if err := r.rt.sleep(ctx, r.rt.jitter(r.cfg.StartupJitter)); err != nil {
		return r.fail(ctx, err)
	}
	r.state.set(StateRunning)

	offset := 0
	for offset < len(r.items) {
		if r.state.StopRequested() {
			return r.endScreen(ctx, StateStopped, MessageStopped)
		}

		batch, err := r.wave(ctx, r.groups(offset))
		if err != nil {
			if errors.Is(err, ErrPoolExhausted) {
				return r.endScreen(ctx, StateExhausted, MessageExhausted)
			}
			return r.fail(ctx, err)
		}

		if err := r.results.Merge(batch); err != nil {
			return r.fail(ctx, err)
		}
		for _, res := range batch {
			r.rt.Metrics.Screened(res.Risk.String())
		}

		offset += len(batch)
		r.state.completed.Store(int64(offset))
		wave := r.state.waves.Add(1)

		r.logger.DebugContext(ctx, "wave merged",
			"wave", wave,
			"covered", len(batch),
			"completed", offset,
			"total", len(r.items),
		)

		if offset < len(r.items) {
			pause := r.cfg.WavePacing + r.rt.jitter(r.cfg.WaveJitter)
			if err := r.rt.sleep(ctx, pause); err != nil {
				return r.fail(ctx, err)
			}
		}
	}

	return r.endScreen(ctx, StateCompleted, "")
}

func (r *Run) endScreen(ctx context.Context, state State, message string) error {
	r.screened = state
	r.screenedMessage = message
	return r.end(ctx, state, message)
}

// groups slices up to Concurrency contiguous groups starting at offset.
func (r *Run) groups(offset int) [][]items.Item {
	var out [][]items.Item
	for c := range r.cfg.Concurrency {
		start := offset + c*r.cfg.BulkSize
		if start >= len(r.items) {
			break
		}
		end := min(start+r.cfg.BulkSize, len(r.items))
		out = append(out, r.items[start:end])
	}
	return out
}

type outcome struct {
	group  []items.Item
	labels map[int]inference.Label
	err    error
}

// wave launches every group concurrently and returns their combined
// results only once all have reported. ErrPoolExhausted from any group
// returns immediately; the remaining goroutines finish into the buffered
// channel and their results are dropped.
func (r *Run) wave(ctx context.Context, groups [][]items.Item) ([]Result, error) {
	ch := make(chan outcome, len(groups))
	for _, g := range groups {
		go func() {
			labels, err := r.policy.Bulk(ctx, g)
			ch <- outcome{group: g, labels: labels, err: err}
		}()
	}

	var batch []Result
	for range groups {
		var o outcome
		select {
		case o = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		at := r.rt.now()
		switch {
		case o.err == nil:
			batch = append(batch, Labelled(o.group, o.labels, at)...)
		case errors.Is(o.err, ErrPoolExhausted):
			return nil, o.err
		case congested(o.err):
			r.logger.WarnContext(ctx, "group degraded to error results",
				"first_id", o.group[0].ID,
				"size", len(o.group),
				"error", o.err,
			)
			batch = append(batch, Failed(o.group, o.err, at)...)
		default:
			return nil, o.err
		}
	}

	return batch, nil
}

func (r *Run) end(ctx context.Context, state State, message string) error {
	r.state.finish(state, message)
	r.rt.Metrics.PassFinished(r.pass, string(state))

	p := r.Progress()
	r.logger.InfoContext(ctx, "pass finished",
		"pass", r.pass,
		"state", state,
		"completed", p.Completed,
		"total", p.Total,
		"refined", p.RefineDone,
		"live_keys", p.LiveKeys,
	)
	return nil
}

func (r *Run) fail(ctx context.Context, err error) error {
	r.state.finish(StateFailed, err.Error())
	r.rt.Metrics.PassFinished(r.pass, string(StateFailed))
	r.logger.ErrorContext(ctx, "pass failed", "pass", r.pass, "error", err)
	return err
}
