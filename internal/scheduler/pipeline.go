package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/core/config"
	"pulseworks.app/conductor/internal/detector"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/service"
	"pulseworks.app/conductor/internal/store"
)

// DetectorRunner is one class of detectors run together for a user.
type DetectorRunner interface {
	Run(ctx context.Context, userID int64) []detector.Outcome
}

// Gate evaluates allowed signals into proposed actions.
type Gate interface {
	Evaluate(ctx context.Context, userID int64, signals []model.Signal) []model.ProposedAction
}

// Executor produces one version for a deliverable.
type Executor interface {
	Execute(ctx context.Context, d *model.Deliverable, signals []model.Signal) (*model.DeliverableVersion, error)
}

// UserStats is one user's tally for one tick.
type UserStats struct {
	SignalsFound    int
	Suppressed      int
	LedgerErrors    int
	SkippedAuth     int
	Proposals       int
	VersionsCreated int
	VersionsFailed  int
}

func (s *UserStats) add(other UserStats) {
	s.SignalsFound += other.SignalsFound
	s.Suppressed += other.Suppressed
	s.LedgerErrors += other.LedgerErrors
	s.SkippedAuth += other.SkippedAuth
	s.Proposals += other.Proposals
	s.VersionsCreated += other.VersionsCreated
	s.VersionsFailed += other.VersionsFailed
}

// Pipeline is the per-user reactive sequence: detect, filter through the
// ledger, gate, execute. Detectors within a class run concurrently; the
// ledger -> gate -> execute tail is sequential so the dedup stamp and the
// created work can never race each other for one user.
type Pipeline struct {
	hourly    DetectorRunner
	daily     DetectorRunner
	ledger    store.LedgerStore
	gate      Gate
	engine    Executor
	tx        service.TxRunner
	cooldowns config.CooldownConfig
	clock     clockwork.Clock
}

func NewPipeline(hourly, daily DetectorRunner, ledger store.LedgerStore, gate Gate, engine Executor, tx service.TxRunner, cooldowns config.CooldownConfig, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		hourly:    hourly,
		daily:     daily,
		ledger:    ledger,
		gate:      gate,
		engine:    engine,
		tx:        tx,
		cooldowns: cooldowns,
		clock:     clock,
	}
}

// RunUser executes the due detector classes for one user and drives any
// resulting proposals through to versions.
func (p *Pipeline) RunUser(ctx context.Context, userID int64, classes Classes) (UserStats, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "conductor.pipeline",
	})

	var stats UserStats

	var outcomes []detector.Outcome
	if classes.Hourly {
		outcomes = append(outcomes, p.hourly.Run(ctx, userID)...)
	}
	if classes.Daily {
		outcomes = append(outcomes, p.daily.Run(ctx, userID)...)
	}

	var signals []model.Signal
	for _, o := range outcomes {
		if o.SkippedAuth {
			stats.SkippedAuth++
			continue
		}
		signals = append(signals, o.Signals...)
	}
	stats.SignalsFound = len(signals)

	allowed := p.filterThroughLedger(ctx, signals, &stats)
	if len(allowed) == 0 {
		return stats, nil
	}

	proposals := p.gate.Evaluate(ctx, userID, allowed)
	stats.Proposals = len(proposals)

	for _, proposal := range proposals {
		p.execute(ctx, userID, proposal, &stats)
	}
	return stats, nil
}

// filterThroughLedger stamps each signal's ledger key and keeps only signals
// whose cooldown window has passed. A ledger error drops the signal: when the
// suppression state is unknown, suppressing is the safe direction. Errors are
// tallied apart from cooldown hits so a failing ledger does not read as a
// quiet one.
func (p *Pipeline) filterThroughLedger(ctx context.Context, signals []model.Signal, stats *UserStats) []model.Signal {
	now := p.clock.Now()

	var allowed []model.Signal
	for _, s := range signals {
		decision, err := p.ledger.TryAcquire(ctx, s.UserID, s.Type, s.Reference, now, p.cooldowns.For(s.Type))
		if err != nil {
			slog.ErrorContext(ctx, "ledger acquire failed, dropping signal",
				"error", err,
				"signal", s.Ref())
			stats.LedgerErrors++
			continue
		}
		if !decision.Allowed {
			slog.DebugContext(ctx, "signal suppressed by cooldown",
				"signal", s.Ref(),
				"last_triggered_at", decision.LastTriggeredAt)
			stats.Suppressed++
			continue
		}
		allowed = append(allowed, s)
	}
	return allowed
}

// execute turns one accepted proposal into a deliverable and its first
// version. The deliverable row and the ledger links to it commit in one
// transaction: a crash can never leave a stamped signal pointing at nothing,
// or a deliverable the ledger does not know about.
func (p *Pipeline) execute(ctx context.Context, userID int64, proposal model.ProposedAction, stats *UserStats) {
	sourceRef := proposal.Signals[0].Reference

	d := &model.Deliverable{
		ID:              id.New(),
		UserID:          userID,
		Title:           proposal.SuggestedTitle,
		Type:            proposal.DeliverableType,
		Status:          model.DeliverableStatusActive,
		Origin:          model.OriginSignalEmergent,
		SourceReference: &sourceRef,
		Rationale:       &proposal.Rationale,
	}

	err := p.tx.WithTx(ctx, func(stores service.StoreProvider) error {
		if err := stores.Deliverables().Create(ctx, d); err != nil {
			return fmt.Errorf("creating deliverable: %w", err)
		}
		for _, s := range proposal.Signals {
			if err := stores.Ledger().RecordOutcome(ctx, userID, s.Type, s.Reference, d.ID); err != nil {
				return fmt.Errorf("linking ledger entry %s: %w", s.Ref(), err)
			}
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record deliverable for proposal",
			"error", err,
			"deliverable_type", proposal.DeliverableType)
		stats.VersionsFailed++
		return
	}

	version, err := p.engine.Execute(ctx, d, proposal.Signals)
	if err != nil {
		slog.ErrorContext(ctx, "execution failed before a version could be recorded",
			"error", err,
			"deliverable_id", d.ID)
		stats.VersionsFailed++
		return
	}

	if version.Status == model.VersionStatusFailed {
		stats.VersionsFailed++
	} else {
		stats.VersionsCreated++
	}
}
