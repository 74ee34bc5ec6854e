package runs

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/patrol/internal/export"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/storage"
)

// Domain errors for run operations.
var (
	ErrNotFound       = errors.New("run not found")
	ErrBusy           = errors.New("run has a pass in progress")
	ErrNotActive      = errors.New("run has no pass in progress")
	ErrNoCredentials  = errors.New("no API keys supplied or configured")
	ErrInvalidRequest = errors.New("invalid run request")
	ErrFileTooLarge   = errors.New("upload exceeds the maximum size")
)

// MapHTTPStatus maps run errors, and the errors of the packages a run
// drives, to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy),
		errors.Is(err, ErrNotActive),
		errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrNoCredentials),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, workflow.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	}

	for _, mapper := range []func(error) int{
		items.MapHTTPStatus,
		export.MapHTTPStatus,
		storage.MapHTTPStatus,
	} {
		if status := mapper(err); status != http.StatusInternalServerError {
			return status
		}
	}
	return http.StatusInternalServerError
}
