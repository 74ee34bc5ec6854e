package export

import (
	"errors"
	"net/http"
)

var (
	ErrNoRows        = errors.New("no results match the export filter")
	ErrInvalidFormat = errors.New("invalid export format")
	ErrArchiveOff    = errors.New("export archive storage is not configured")
)

// MapHTTPStatus maps export errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrArchiveOff):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
