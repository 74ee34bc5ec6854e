package history

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/query"
	"github.com/JaimeStill/patrol/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "findings", "f").
	Project("id", "ID").
	Project("run_id", "RunID").
	Project("item_id", "ItemID").
	Project("product", "Product").
	Project("risk", "Risk").
	Project("reason", "Reason").
	Project("origin", "Origin").
	Project("model", "Model").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for finding queries.
// Nil fields are ignored. Risk and RunID use exact matching; Origin uses
// case-insensitive contains matching.
type Filters struct {
	Risk   *string    `json:"risk,omitempty"`
	RunID  *uuid.UUID `json:"run_id,omitempty"`
	Origin *string    `json:"origin,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Risk", f.Risk).
		WhereEquals("RunID", f.RunID).
		WhereContains("Origin", f.Origin)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Risk accepts any spelling ParseLevel understands.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if r := values.Get("risk"); r != "" {
		if level, err := workflow.ParseLevel(r); err == nil {
			risk := level.String()
			f.Risk = &risk
		}
	}

	if id := values.Get("run_id"); id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			f.RunID = &parsed
		}
	}

	if o := values.Get("origin"); o != "" {
		f.Origin = &o
	}

	return f
}

func scanFinding(s repository.Scanner) (Finding, error) {
	var f Finding
	err := s.Scan(
		&f.ID,
		&f.RunID,
		&f.ItemID,
		&f.Product,
		&f.Risk,
		&f.Reason,
		&f.Origin,
		&f.Model,
		&f.CreatedAt,
	)
	return f, err
}
