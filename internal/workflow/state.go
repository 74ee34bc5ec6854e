package workflow

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle position of a run.
type State string

// Run states. Completed, Stopped, Exhausted, and Failed are terminal.
const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateRefining     State = "refining"
	StateCompleted    State = "completed"
	StateStopped      State = "stopped"
	StateExhausted    State = "exhausted"
	StateFailed       State = "failed"
)

// Pass names.
const (
	PassScreen = "screen"
	PassRefine = "refine"
)

var terminal = []State{StateCompleted, StateStopped, StateExhausted, StateFailed}

// Terminal reports whether s ends a pass.
func (s State) Terminal() bool {
	return slices.Contains(terminal, s)
}

// Progress is a point-in-time snapshot of a run.
type Progress struct {
	State         State      `json:"state"`
	Message       string     `json:"message,omitempty"`
	Total         int        `json:"total"`
	Completed     int        `json:"completed"`
	Waves         int        `json:"waves"`
	RefineTotal   int        `json:"refine_total"`
	RefineDone    int        `json:"refine_done"`
	Quarantined   int        `json:"quarantined"`
	LiveKeys      int        `json:"live_keys"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	PercentScreen int        `json:"percent_screen"`
}

// RunState tracks one run's state machine and counters. Counters are
// atomic so readers never block the scheduler. The stop flag may be set
// from any goroutine and is observed only between waves or batches.
type RunState struct {
	mu         sync.RWMutex
	state      State
	message    string
	startedAt  time.Time
	finishedAt time.Time

	total       atomic.Int64
	completed   atomic.Int64
	waves       atomic.Int64
	refineTotal atomic.Int64
	refineDone  atomic.Int64

	stop atomic.Bool
}

// NewRunState creates an idle state for a run over total items.
func NewRunState(total int) *RunState {
	s := &RunState{state: StateIdle}
	s.total.Store(int64(total))
	return s
}

// State returns the current state.
func (s *RunState) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Message returns the operator message for the current state.
func (s *RunState) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// RequestStop asks the run to stop at the next wave or batch boundary.
func (s *RunState) RequestStop() {
	s.stop.Store(true)
}

// ResumeStop clears a stop request so a later pass can run. Passes never
// clear it on their own.
func (s *RunState) ResumeStop() {
	s.stop.Store(false)
}

// StopRequested reports whether a stop has been requested.
func (s *RunState) StopRequested() bool {
	return s.stop.Load()
}

// Active reports whether a pass is in progress.
func (s *RunState) Active() bool {
	switch s.State() {
	case StateInitializing, StateRunning, StateRefining:
		return true
	}
	return false
}

// Snapshot returns the current progress.
func (s *RunState) Snapshot() Progress {
	s.mu.RLock()
	p := Progress{State: s.state, Message: s.message}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		p.StartedAt = &started
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		p.FinishedAt = &finished
	}
	s.mu.RUnlock()

	p.Total = int(s.total.Load())
	p.Completed = int(s.completed.Load())
	p.Waves = int(s.waves.Load())
	p.RefineTotal = int(s.refineTotal.Load())
	p.RefineDone = int(s.refineDone.Load())
	if p.Total > 0 {
		p.PercentScreen = p.Completed * 100 / p.Total
	}
	return p
}

// begin moves the run into to when the current state is one of from.
func (s *RunState) begin(to State, from ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(from, s.state) {
		return ErrInvalidState
	}
	s.state = to
	s.message = ""
	s.finishedAt = time.Time{}
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	return nil
}

func (s *RunState) set(to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
}

func (s *RunState) finish(to State, message string) {
	s.mu.Lock()
	s.state = to
	s.message = message
	s.finishedAt = time.Now()
	s.mu.Unlock()
}
