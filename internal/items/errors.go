package items

import (
	"errors"
	"net/http"
)

// Domain errors for item import.
var (
	ErrNoItems             = errors.New("no items to screen")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrUnsupportedEncoding = errors.New("encoding must be utf-8 or shift_jis")
	ErrColumnNotFound      = errors.New("column not found")
	ErrEmptyFile           = errors.New("file is empty")
)

// MapHTTPStatus maps item import errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoItems),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrUnsupportedEncoding),
		errors.Is(err, ErrColumnNotFound),
		errors.Is(err, ErrEmptyFile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
