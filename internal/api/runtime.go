package api

import (
	"time"

	"github.com/JaimeStill/patrol/internal/config"
	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/infrastructure"
	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/pagination"
	"github.com/JaimeStill/patrol/pkg/storage"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Inference  *inference.Config
	Screening  *workflow.Config
	Archive    storage.Config
	Location   *time.Location
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Metrics:   infra.Metrics,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Inference:  &cfg.Inference,
		Screening:  &cfg.Screening,
		Archive:    cfg.Storage,
		Location:   cfg.Location(),
	}
}
