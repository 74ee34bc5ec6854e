package credentials

import "errors"

// ErrPoolExhausted indicates every credential in the pool has been quarantined.
var ErrPoolExhausted = errors.New("credential pool exhausted")
