package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/pkg/pagination"
)

// System defines the public contract for prompt domain operations.
// Its Reader methods return the active override for a stage when one
// exists, falling back to the hardcoded default.
type System interface {
	Reader

	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Prompt], error)

	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)
}
