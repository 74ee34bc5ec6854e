package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/credentials"
)

type bulkFunc func(group []items.Item, cred credentials.Credential, model string) (map[int]inference.Label, error)
type oneFunc func(item items.Item, prior inference.Prior, cred credentials.Credential, model string) (inference.Verdict, error)

type fakeClient struct {
	bulk bulkFunc
	one  oneFunc

	mu        sync.Mutex
	bulkCalls []bulkCall
	oneCalls  int
}

type bulkCall struct {
	firstID int
	size    int
	cred    credentials.Credential
	model   string
}

func (f *fakeClient) ClassifyBulk(ctx context.Context, group []items.Item, cred credentials.Credential, model string) (map[int]inference.Label, error) {
	f.mu.Lock()
	f.bulkCalls = append(f.bulkCalls, bulkCall{firstID: group[0].ID, size: len(group), cred: cred, model: model})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.bulk(group, cred, model)
}

func (f *fakeClient) ClassifyOne(ctx context.Context, item items.Item, prior inference.Prior, cred credentials.Credential, model string) (inference.Verdict, error) {
	f.mu.Lock()
	f.oneCalls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return inference.Verdict{}, err
	}
	return f.one(item, prior, cred, model)
}

func (f *fakeClient) calls() []bulkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bulkCall(nil), f.bulkCalls...)
}

type sleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleeper) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.slept {
		if v == d {
			n++
		}
	}
	return n
}

func newRuntime(client inference.Client) (*workflow.Runtime, *sleeper) {
	s := &sleeper{}
	return &workflow.Runtime{
		Client: client,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep:  s.Sleep,
		Jitter: func(time.Duration) time.Duration { return 0 },
	}, s
}

func testConfig() workflow.RunConfig {
	return workflow.RunConfig{
		Model:             "primary",
		FallbackModel:     "fallback",
		BulkSize:          30,
		Concurrency:       3,
		RefineConcurrency: 5,
		RefinePacing:      500 * time.Millisecond,
		WavePacing:        300 * time.Millisecond,
		Retry: workflow.RetryConfig{
			BackoffBase:         time.Second,
			BackoffFactor:       1.5,
			BackoffCeiling:      30 * time.Second,
			MaxRateLimitRetries: 10,
			MaxTransientRetries: 3,
			TransientDelay:      time.Second,
		},
	}
}

func makeItems(n int) []items.Item {
	list := make([]items.Item, n)
	for i := range list {
		list[i] = items.Item{ID: i, Text: fmt.Sprintf("商品 %d", i), Origin: "listings.csv"}
	}
	return list
}

func labelAll(group []items.Item, risk string) map[int]inference.Label {
	out := make(map[int]inference.Label, len(group))
	for _, it := range group {
		out[it.ID] = inference.Label{ID: inference.ItemID(it.ID), Risk: risk, Reason: "理由 " + it.Text}
	}
	return out
}

func fail(d inference.Disposition, status int) error {
	return inference.Fail(d, status, errors.New(string(d)))
}

func pool(keys ...string) *credentials.Pool {
	return credentials.New(keys...)
}
