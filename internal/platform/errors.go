package platform

import (
	"errors"
	"fmt"
)

// ErrAuthExpired means the user's connection cannot authenticate against the
// platform right now. Callers skip the platform for this pass; re-auth happens
// outside this service.
var ErrAuthExpired = errors.New("platform authorization expired")

// TransientError marks a failure worth retrying on a later pass: rate limits,
// 5xx responses, network trouble. Detectors treat it like ErrAuthExpired
// within a tick (skip, no retry); only the classification differs in logs.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
