package prompts

import (
	"context"
	"fmt"
)

// Reader resolves the instructions and output spec for a stage.
type Reader interface {
	Instructions(ctx context.Context, stage Stage) (string, error)
	Spec(ctx context.Context, stage Stage) (string, error)
}

type defaults struct{}

// Defaults is a Reader over the hardcoded instructions and specs.
var Defaults Reader = defaults{}

func (defaults) Instructions(_ context.Context, stage Stage) (string, error) {
	return Instructions(stage)
}

func (defaults) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

// Compose builds a system instruction from the stage's instructions
// followed by its output spec.
func Compose(ctx context.Context, r Reader, stage Stage) (string, error) {
	instructions, err := r.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := r.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	return instructions + "\n\n" + spec, nil
}
