package workflow

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/items"
)

// Reducer accumulates results keyed by item id. The scheduler is its only
// writer; readers may snapshot concurrently.
type Reducer struct {
	mu      sync.RWMutex
	results map[int]Result
}

// NewReducer creates an empty Reducer.
func NewReducer() *Reducer {
	return &Reducer{results: make(map[int]Result)}
}

// Labelled converts a bulk response into one result per group item. Items
// the response did not cover become Error results.
func Labelled(group []items.Item, labels map[int]inference.Label, at time.Time) []Result {
	out := make([]Result, 0, len(group))
	for _, it := range group {
		r := Result{ID: it.ID, Text: it.Text, Origin: it.Origin, ScreenedAt: at}
		if l, ok := labels[it.ID]; ok {
			r.Risk = Normalize(l.Risk)
			r.Reason = l.Reason
		} else {
			r.Risk = LevelError
			r.Reason = ReasonMissing
		}
		out = append(out, r)
	}
	return out
}

// Failed converts a group whose call gave up into Error results.
func Failed(group []items.Item, cause error, at time.Time) []Result {
	reason := fmt.Sprintf("%s: %v", ReasonFailed, cause)
	if errors.Is(cause, ErrCongested) {
		reason = ReasonCongested
	}

	out := make([]Result, 0, len(group))
	for _, it := range group {
		out = append(out, Result{
			ID:         it.ID,
			Text:       it.Text,
			Origin:     it.Origin,
			Risk:       LevelError,
			Reason:     reason,
			ScreenedAt: at,
		})
	}
	return out
}

// Merge appends a batch of first-pass results. The batch is applied in
// full or not at all: any id already recorded, or repeated within the
// batch, rejects the whole batch with ErrDuplicateResult.
func (r *Reducer) Merge(batch []Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]struct{}, len(batch))
	for _, res := range batch {
		if _, ok := r.results[res.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateResult, res.ID)
		}
		if _, ok := seen[res.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateResult, res.ID)
		}
		seen[res.ID] = struct{}{}
	}

	for _, res := range batch {
		r.results[res.ID] = res
	}
	return nil
}

// Refine replaces the risk of an existing result with the refinement
// verdict and marks it refined. The first-pass reason is kept.
func (r *Reducer) Refine(id int, v inference.Verdict) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.results[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownResult, id)
	}

	res.Risk = Normalize(v.Risk)
	res.RefinedReason = v.Analysis
	res.Refined = true
	r.results[id] = res
	return res, nil
}

// Len returns the number of recorded results.
func (r *Reducer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.results)
}

// Results returns a copy of every result ordered by id.
func (r *Reducer) Results() []Result {
	return r.filter(func(Result) bool { return true })
}

// Pending returns flagged results that have not been refined yet, ordered by id.
func (r *Reducer) Pending() []Result {
	return r.filter(func(res Result) bool { return res.Risk.Flagged() && !res.Refined })
}

// Counts tallies results per level.
func (r *Reducer) Counts() map[Level]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Level]int, len(names))
	for _, res := range r.results {
		counts[res.Risk]++
	}
	return counts
}

func (r *Reducer) filter(keep func(Result) bool) []Result {
	r.mu.RLock()
	out := make([]Result, 0, len(r.results))
	for _, res := range r.results {
		if keep(res) {
			out = append(out, res)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Result) int { return a.ID - b.ID })
	return out
}
