package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/core/config"
	"pulseworks.app/conductor/internal/store"
)

// PatternAnalyzer runs the low-frequency conversation-pattern pass.
type PatternAnalyzer interface {
	Analyze(ctx context.Context, userID int64) (int, error)
}

// Classes marks which sub-pipelines are due on a tick.
type Classes struct {
	// Hourly covers time-sensitive detection (upcoming meetings).
	Hourly bool
	// Daily covers slow-moving detection (inbox silence, channel drift).
	Daily bool
	// Analyzer is the conversation-pattern pass.
	Analyzer bool
}

func (c Classes) Any() bool {
	return c.Hourly || c.Daily || c.Analyzer
}

// Scheduler owns the tick loop. Each tick it decides which classes are due
// from the wall clock, enumerates users with at least one active connection,
// and fans their pipelines out with bounded parallelism. A user's failure is
// contained at the user boundary; the tick always completes.
type Scheduler struct {
	users    store.UserStore
	pipeline *Pipeline
	analyzer PatternAnalyzer
	clock    clockwork.Clock
	cfg      config.OrchestrationConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(users store.UserStore, pipeline *Pipeline, analyzer PatternAnalyzer, clock clockwork.Clock, cfg config.OrchestrationConfig) *Scheduler {
	return &Scheduler{
		users:     users,
		pipeline:  pipeline,
		analyzer:  analyzer,
		clock:     clock,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the tick loop. Blocks until Stop() is called or ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "conductor.scheduler",
	})

	defer close(s.stoppedCh)

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"user_parallelism", s.cfg.UserParallelism)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "scheduler stopping")
			return
		case <-ticker.Chan():
			s.RunTick(ctx)
		}
	}
}

// Stop signals the scheduler to stop gracefully.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

// RunTick executes one tick. Exported so tests and operational tooling can
// drive ticks directly without the ticker.
func (s *Scheduler) RunTick(ctx context.Context) {
	now := s.clock.Now()
	classes := s.classesFor(now)
	if !classes.Any() {
		slog.DebugContext(ctx, "no pipeline class due", "minute", now.Minute(), "hour", now.Hour())
		return
	}

	tickID := strconv.FormatInt(id.New(), 10)
	ctx = logger.WithLogFields(ctx, logger.LogFields{TickID: logger.Ptr(tickID)})

	sc := logger.StartSpan(ctx, "scheduler.tick")
	defer sc.End()
	ctx = sc.Context()

	users, err := s.users.ListWithActiveConnections(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "tick aborted, could not enumerate users", "error", err)
		return
	}

	slog.InfoContext(ctx, "tick started",
		"users", len(users),
		"hourly", classes.Hourly,
		"daily", classes.Daily,
		"analyzer", classes.Analyzer)

	start := s.clock.Now()

	var mu sync.Mutex
	var total UserStats
	suggestions := 0
	failedUsers := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UserParallelism)
	for _, user := range users {
		g.Go(func() error {
			stats, nSuggestions, err := s.runUserSafe(gctx, user.ID, classes)

			mu.Lock()
			defer mu.Unlock()
			total.add(stats)
			suggestions += nSuggestions
			if err != nil {
				failedUsers++
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "tick complete",
		"duration_ms", s.clock.Since(start).Milliseconds(),
		"users", len(users),
		"failed_users", failedUsers,
		"signals_found", total.SignalsFound,
		"suppressed", total.Suppressed,
		"ledger_errors", total.LedgerErrors,
		"skipped_auth", total.SkippedAuth,
		"proposals", total.Proposals,
		"versions_created", total.VersionsCreated,
		"versions_failed", total.VersionsFailed,
		"suggestions_created", suggestions)
}

// runUserSafe is the per-user isolation boundary: every failure, panics
// included, becomes a logged result.
func (s *Scheduler) runUserSafe(ctx context.Context, userID int64, classes Classes) (stats UserStats, suggestions int, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in user pipeline",
				"panic", r,
				"user_id", userID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if classes.Hourly || classes.Daily {
		stats, err = s.pipeline.RunUser(ctx, userID, classes)
		if err != nil {
			slog.ErrorContext(ctx, "user pipeline failed",
				"error", err,
				"user_id", userID)
			return stats, 0, err
		}
	}

	if classes.Analyzer {
		suggestions, err = s.analyzer.Analyze(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "analyzer pass failed",
				"error", err,
				"user_id", userID)
			return stats, suggestions, err
		}
	}

	return stats, suggestions, nil
}

// classesFor derives due classes from the wall clock. The windows are wider
// than one tick on purpose: re-running after a mid-window restart is safe
// because the ledger absorbs repeats.
func (s *Scheduler) classesFor(now time.Time) Classes {
	return Classes{
		Hourly:   now.Minute() < s.cfg.HourlyGateMinute,
		Daily:    now.Hour() == s.cfg.DailyHour,
		Analyzer: now.Hour() == s.cfg.DailyHour && now.Minute() < s.cfg.AnalyzerMinute,
	}
}
