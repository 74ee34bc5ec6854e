package api

import (
	"github.com/JaimeStill/patrol/internal/export"
	"github.com/JaimeStill/patrol/internal/history"
	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/prompts"
	"github.com/JaimeStill/patrol/internal/runs"
	"github.com/JaimeStill/patrol/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Prompts prompts.System
	History history.System
	Runs    runs.System
}

// NewDomain creates all domain systems from the API runtime. Runs execute
// on the lifecycle context so shutdown fails any pass still in progress.
func NewDomain(runtime *Runtime) *Domain {
	promptsSystem := prompts.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	historySystem := history.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	client := inference.NewGemini(runtime.Inference, promptsSystem, runtime.Logger)

	runsSystem := runs.New(
		runtime.Lifecycle.Context(),
		&workflow.Runtime{
			Client:  client,
			Logger:  runtime.Logger,
			Metrics: runtime.Metrics,
		},
		runs.Config{
			Inference: runtime.Inference,
			Screening: runtime.Screening,
			Location:  runtime.Location,
			ListSize:  runtime.Archive.MaxListSize,
		},
		historySystem,
		export.NewArchiver(runtime.Storage, runtime.Archive.Prefix, runtime.Logger),
		runtime.Logger,
	)

	return &Domain{
		Prompts: promptsSystem,
		History: historySystem,
		Runs:    runsSystem,
	}
}
