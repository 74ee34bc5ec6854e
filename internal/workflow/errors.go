// Package workflow drives a screening run: a wave scheduler over bulk
// inference calls, a retry and credential rotation policy, the result
// reducer, and the per-item refinement pass.
package workflow

import (
	"errors"

	"github.com/JaimeStill/patrol/pkg/credentials"
)

// Sentinel errors for workflow operations.
var (
	ErrPoolExhausted    = credentials.ErrPoolExhausted
	ErrCongested        = errors.New("gave up after repeated rate limiting")
	ErrRetriesExhausted = errors.New("gave up after repeated transient failures")
	ErrDuplicateResult  = errors.New("result already recorded for item")
	ErrUnknownResult    = errors.New("no result recorded for item")
	ErrInvalidLevel     = errors.New("invalid risk level")
	ErrInvalidState     = errors.New("run cannot move to the requested state")
	ErrInvalidConfig    = errors.New("invalid run config")
)

// Operator messages attached to terminal states.
const (
	MessageExhausted = "no valid credentials remain: supply or re-verify API keys"
	MessageStopped   = "processing stopped by operator"
)

// Reasons recorded on Error results.
const (
	ReasonMissing   = "判定失敗"
	ReasonFailed    = "判定エラー"
	ReasonCongested = "API混雑により判定できませんでした"
)
