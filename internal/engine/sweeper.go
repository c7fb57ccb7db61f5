package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/store"
)

type SweeperConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Sweeper reclaims versions stuck in generating. A crash between
// CreateGenerating and MarkStaged/MarkFailed leaves an orphan row; the
// sweeper marks it failed once it is older than MaxAge so the state machine's
// "generating always resolves" promise holds across process deaths.
type Sweeper struct {
	versions store.VersionStore
	clock    clockwork.Clock
	cfg      SweeperConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(versions store.VersionStore, clock clockwork.Clock, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		versions:  versions,
		clock:     clock,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the sweep loop. Blocks until Stop() is called or ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "conductor.engine.sweeper",
	})

	defer close(s.stoppedCh)

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "sweeper started",
		"interval", s.cfg.Interval,
		"max_age", s.cfg.MaxAge)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.Chan():
			if err := s.SweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "sweep cycle error", "error", err)
			}
		}
	}
}

// Stop signals the sweeper to stop gracefully.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

// SweepOnce performs one reclaim cycle.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.MaxAge)

	ids, err := s.versions.ReclaimStuck(ctx, cutoff, fmt.Sprintf("generation abandoned after %s", s.cfg.MaxAge))
	if err != nil {
		return fmt.Errorf("reclaiming stuck versions: %w", err)
	}

	if len(ids) > 0 {
		slog.WarnContext(ctx, "reclaimed stuck versions",
			"count", len(ids),
			"version_ids", ids,
			"cutoff", cutoff)
	}
	return nil
}
