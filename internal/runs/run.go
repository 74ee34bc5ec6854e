// Package runs manages screening runs for the HTTP API: an in-memory
// registry of runs, each owning its items, credential pool, and results,
// executed in the background against the service lifetime.
package runs

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/workflow"
)

// StartCommand describes a new run. Items and Sources are alternatives:
// Sources are uploaded files parsed with Encoding and Column, Items are
// listing texts taken as-is. Keys override the configured credentials.
type StartCommand struct {
	Items    []string       `json:"items"`
	Origin   string         `json:"origin"`
	Keys     []string       `json:"keys"`
	Model    string         `json:"model"`
	Slow     bool           `json:"slow"`
	Refine   bool           `json:"refine"`
	Encoding string         `json:"encoding"`
	Column   string         `json:"column"`
	Sources  []items.Source `json:"-"`
}

// Summary is the externally visible view of a run.
type Summary struct {
	ID        uuid.UUID         `json:"id"`
	Files     []string          `json:"files"`
	Model     string            `json:"model"`
	Slow      bool              `json:"slow"`
	Refine    bool              `json:"refine"`
	Busy      bool              `json:"busy"`
	CreatedAt time.Time         `json:"created_at"`
	Progress  workflow.Progress `json:"progress"`
	Counts    map[string]int    `json:"counts"`
	Recorded  int               `json:"recorded"`
}

type entry struct {
	id         uuid.UUID
	files      []string
	model      string
	slow       bool
	autoRefine bool
	createdAt  time.Time
	run        *workflow.Run

	busy     atomic.Bool
	recorded atomic.Int64
}

func (e *entry) summary() *Summary {
	counts := make(map[string]int)
	for level, n := range e.run.Counts() {
		counts[level.String()] = n
	}

	return &Summary{
		ID:        e.id,
		Files:     e.files,
		Model:     e.model,
		Slow:      e.slow,
		Refine:    e.autoRefine,
		Busy:      e.busy.Load(),
		CreatedAt: e.createdAt,
		Progress:  e.run.Progress(),
		Counts:    counts,
		Recorded:  int(e.recorded.Load()),
	}
}

func origins(list []items.Item) []string {
	var files []string
	seen := make(map[string]struct{})
	for _, it := range list {
		if _, ok := seen[it.Origin]; ok {
			continue
		}
		seen[it.Origin] = struct{}{}
		files = append(files, it.Origin)
	}
	return files
}
