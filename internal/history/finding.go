// Package history implements the screening history domain. It stores
// flagged findings once refinement has examined them and serves paginated
// queries over everything recorded so far.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/internal/workflow"
)

// Finding is one stored flagged result. Reason is the refined analysis
// when present, otherwise the first-pass reason.
type Finding struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	ItemID    int       `json:"item_id"`
	Product   string    `json:"product"`
	Risk      string    `json:"risk"`
	Reason    string    `json:"reason"`
	Origin    string    `json:"origin"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Recordable reports whether a result belongs in history: flagged and
// already examined by refinement.
func Recordable(r workflow.Result) bool {
	return r.Risk.Flagged() && r.Refined
}

// SaveCommand carries the results of one run to record.
type SaveCommand struct {
	RunID   uuid.UUID
	Model   string
	Results []workflow.Result
}
