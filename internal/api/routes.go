package api

import (
	"net/http"

	"github.com/JaimeStill/patrol/internal/config"
	"github.com/JaimeStill/patrol/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	groups := []routes.Group{
		domain.Runs.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.History.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	}

	if runtime.Storage != nil {
		archives := newArchiveHandler(
			runtime.Storage,
			runtime.Logger,
			runtime.Archive.Prefix,
			runtime.Archive.MaxListSize,
		)
		groups = append(groups, archives.routes())
	}

	routes.Register(mux, groups...)
}
