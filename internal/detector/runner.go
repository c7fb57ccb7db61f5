package detector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/platform"
)

// Runner fetches each detector's snapshot concurrently and collects per-
// detector outcomes. One detector's failure never hides another's signals,
// and an auth-expired platform is reported as skipped rather than empty.
type Runner struct {
	fetcher   SnapshotFetcher
	detectors []Detector
	clock     clockwork.Clock
}

func NewRunner(fetcher SnapshotFetcher, detectors []Detector, clock clockwork.Clock) *Runner {
	return &Runner{
		fetcher:   fetcher,
		detectors: detectors,
		clock:     clock,
	}
}

// Run executes all detectors for one user. It never returns an error: fetch
// failures are embedded in the outcome so the caller can log and move on.
func (r *Runner) Run(ctx context.Context, userID int64) []Outcome {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "conductor.detector",
	})

	now := r.clock.Now()
	outcomes := make([]Outcome, len(r.detectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range r.detectors {
		g.Go(func() error {
			outcomes[i] = r.runOne(gctx, d, userID, now)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (r *Runner) runOne(ctx context.Context, d Detector, userID int64, now time.Time) Outcome {
	outcome := Outcome{Detector: d.Type()}

	snap, err := r.fetcher.Fetch(ctx, userID, d.Descriptor())
	if err != nil {
		if errors.Is(err, platform.ErrAuthExpired) {
			outcome.SkippedAuth = true
			slog.InfoContext(ctx, "detector skipped, platform auth expired",
				"detector", d.Type())
			return outcome
		}
		outcome.Err = err
		if platform.IsTransient(err) {
			slog.WarnContext(ctx, "detector skipped, platform unavailable",
				"error", err,
				"detector", d.Type())
		} else {
			slog.ErrorContext(ctx, "detector fetch failed",
				"error", err,
				"detector", d.Type())
		}
		return outcome
	}

	outcome.Signals = d.Detect(snap, userID, now)
	if len(outcome.Signals) > 0 {
		slog.InfoContext(ctx, "detector found signals",
			"detector", d.Type(),
			"count", len(outcome.Signals))
	}
	return outcome
}
