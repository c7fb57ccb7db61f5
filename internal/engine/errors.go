package engine

import (
	"fmt"

	"pulseworks.app/conductor/internal/model"
)

// ConstraintViolationError reports an attempt to move a version through an
// illegal lifecycle transition, e.g. approving a version that already failed.
// The API layer maps it to 409.
type ConstraintViolationError struct {
	VersionID int64
	From      model.VersionStatus
	To        model.VersionStatus
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("version %d: illegal transition %s -> %s", e.VersionID, e.From, e.To)
}
