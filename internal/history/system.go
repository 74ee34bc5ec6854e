package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/pkg/pagination"
)

// System defines the public contract for history domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Finding], error)

	Find(ctx context.Context, id uuid.UUID) (*Finding, error)

	// Save records the recordable results of a run and returns how many were
	// written. Re-saving a run updates the rows it already recorded.
	Save(ctx context.Context, cmd SaveCommand) (int, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
