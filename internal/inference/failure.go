package inference

import (
	"errors"
	"fmt"
	"net/http"
)

// Disposition classifies why an inference call failed.
type Disposition string

// Failure dispositions.
const (
	RateLimited      Disposition = "rate_limited"
	ModelNotFound    Disposition = "model_not_found"
	Unauthorized     Disposition = "unauthorized"
	BadRequest       Disposition = "bad_request"
	Transient        Disposition = "transient"
	MalformedPayload Disposition = "malformed_payload"
)

// Failure is the error every Client method returns for a failed call.
type Failure struct {
	Disposition Disposition
	Status      int
	Err         error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", f.Disposition, f.Status, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Disposition, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fail wraps err in a Failure with the given disposition.
func Fail(d Disposition, status int, err error) *Failure {
	return &Failure{Disposition: d, Status: status, Err: err}
}

// DispositionOf extracts the disposition from err. The second return is
// false when err does not carry a Failure.
func DispositionOf(err error) (Disposition, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Disposition, true
	}
	return "", false
}

// StatusDisposition maps a non-2xx HTTP status to a disposition.
func StatusDisposition(status int) Disposition {
	switch status {
	case http.StatusTooManyRequests:
		return RateLimited
	case http.StatusNotFound:
		return ModelNotFound
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unauthorized
	}
	return Transient
}
