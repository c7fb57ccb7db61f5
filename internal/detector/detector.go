package detector

import (
	"context"
	"time"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

// Detector turns one platform snapshot into zero or more signals. Detection is
// a pure function of the snapshot and the clock; all I/O happens in the Runner.
type Detector interface {
	Type() model.SignalType
	// Descriptor names the snapshot this detector needs.
	Descriptor() platform.ResourceDescriptor
	Detect(snap *platform.Snapshot, userID int64, now time.Time) []model.Signal
}

// SnapshotFetcher is the facade seam the Runner depends on.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, userID int64, desc platform.ResourceDescriptor) (*platform.Snapshot, error)
}

// Outcome is one detector's result for one user in one tick.
type Outcome struct {
	Detector model.SignalType
	Signals  []model.Signal
	// SkippedAuth means the platform could not authenticate and the detector
	// was skipped for this pass. Distinct from an empty result: an empty
	// result refreshes nothing but proves the platform was reachable.
	SkippedAuth bool
	// Err holds a transient or unexpected fetch failure. Signals are empty
	// when set; the next tick retries naturally.
	Err error
}
