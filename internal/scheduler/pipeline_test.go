package scheduler_test

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseworks.app/conductor/core/config"
	"pulseworks.app/conductor/internal/detector"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/scheduler"
)

var _ = Describe("Pipeline", func() {
	const userID = int64(42)

	var (
		ctx          context.Context
		hourly       *mockRunner
		daily        *mockRunner
		ledger       *mockLedgerStore
		g            *mockGate
		executor     *mockExecutor
		deliverables *mockDeliverableStore
		tx           *mockTxRunner
		clock        *clockwork.FakeClock
		pipeline     *scheduler.Pipeline
	)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	cooldowns := config.CooldownConfig{
		MeetingUpcoming:     4 * time.Hour,
		InboxSilence:        72 * time.Hour,
		ChannelDrift:        7 * 24 * time.Hour,
		ConversationPattern: 14 * 24 * time.Hour,
	}

	meetingSignal := model.Signal{
		Type:       model.SignalTypeMeetingUpcoming,
		UserID:     userID,
		Reference:  "evt-1",
		ObservedAt: now,
	}

	BeforeEach(func() {
		ctx = context.Background()
		hourly = &mockRunner{}
		daily = &mockRunner{}
		ledger = &mockLedgerStore{}
		g = &mockGate{}
		executor = &mockExecutor{}
		deliverables = &mockDeliverableStore{}
		tx = &mockTxRunner{provider: &mockStoreProvider{deliverables: deliverables, ledger: ledger}}
		clock = clockwork.NewFakeClockAt(now)
		pipeline = scheduler.NewPipeline(hourly, daily, ledger, g, executor, tx, cooldowns, clock)
	})

	It("runs only the due detector classes", func() {
		_, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(hourly.callCount()).To(Equal(1))
		Expect(daily.callCount()).To(BeZero())
	})

	It("drives an allowed signal through gate and execution", func() {
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: []model.Signal{meetingSignal}}}
		}
		g.evaluateFn = func(ctx context.Context, uid int64, signals []model.Signal) []model.ProposedAction {
			return []model.ProposedAction{{
				Signals:         signals,
				DeliverableType: model.DeliverableTypeMeetingPrep,
				Confidence:      0.9,
				Rationale:       "external meeting soon",
				SuggestedTitle:  "Prep for vendor sync",
			}}
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.SignalsFound).To(Equal(1))
		Expect(stats.Proposals).To(Equal(1))
		Expect(stats.VersionsCreated).To(Equal(1))
		Expect(stats.VersionsFailed).To(BeZero())

		Expect(deliverables.created).To(HaveLen(1))
		d := deliverables.created[0]
		Expect(d.UserID).To(Equal(userID))
		Expect(d.Type).To(Equal(model.DeliverableTypeMeetingPrep))
		Expect(d.Origin).To(Equal(model.OriginSignalEmergent))
		Expect(d.Status).To(Equal(model.DeliverableStatusActive))
		Expect(*d.SourceReference).To(Equal("evt-1"))

		Expect(ledger.recordOutcome).To(Equal([]int64{d.ID}))
	})

	It("suppresses signals still inside their cooldown window", func() {
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: []model.Signal{meetingSignal}}}
		}
		ledger.tryAcquireFn = func(ctx context.Context, uid int64, st model.SignalType, ref string, at time.Time, cooldown time.Duration) (model.LedgerDecision, error) {
			Expect(cooldown).To(Equal(cooldowns.MeetingUpcoming))
			return model.LedgerDecision{Allowed: false, LastTriggeredAt: now.Add(-time.Hour)}, nil
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Suppressed).To(Equal(1))
		Expect(g.calls).To(BeEmpty(), "gate should not run with no allowed signals")
		Expect(executor.executed).To(BeEmpty())
	})

	It("drops a signal when the ledger errors, in the suppressing direction", func() {
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: []model.Signal{meetingSignal}}}
		}
		ledger.tryAcquireFn = func(ctx context.Context, uid int64, st model.SignalType, ref string, at time.Time, cooldown time.Duration) (model.LedgerDecision, error) {
			return model.LedgerDecision{}, errors.New("db down")
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.LedgerErrors).To(Equal(1))
		Expect(stats.Suppressed).To(BeZero(), "an error is not a cooldown hit")
		Expect(executor.executed).To(BeEmpty())
	})

	It("counts auth-skipped detectors without involving the gate", func() {
		daily.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{
				{Detector: model.SignalTypeInboxSilence, SkippedAuth: true},
				{Detector: model.SignalTypeChannelDrift},
			}
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Daily: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.SkippedAuth).To(Equal(1))
		Expect(stats.SignalsFound).To(BeZero())
		Expect(g.calls).To(BeEmpty())
	})

	It("counts a failed generation against VersionsFailed", func() {
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: []model.Signal{meetingSignal}}}
		}
		g.evaluateFn = func(ctx context.Context, uid int64, signals []model.Signal) []model.ProposedAction {
			return []model.ProposedAction{{
				Signals:         signals,
				DeliverableType: model.DeliverableTypeMeetingPrep,
				SuggestedTitle:  "t",
			}}
		}
		executor.executeFn = func(ctx context.Context, d *model.Deliverable, signals []model.Signal) (*model.DeliverableVersion, error) {
			return &model.DeliverableVersion{ID: 1, DeliverableID: d.ID, Status: model.VersionStatusFailed}, nil
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.VersionsFailed).To(Equal(1))
		Expect(stats.VersionsCreated).To(BeZero())
	})

	It("keeps processing proposals when creating one deliverable fails", func() {
		signals := []model.Signal{
			meetingSignal,
			{Type: model.SignalTypeInboxSilence, UserID: userID, Reference: "thr-2", ObservedAt: now},
		}
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: signals}}
		}
		g.evaluateFn = func(ctx context.Context, uid int64, sigs []model.Signal) []model.ProposedAction {
			return []model.ProposedAction{
				{Signals: sigs[:1], DeliverableType: model.DeliverableTypeMeetingPrep, SuggestedTitle: "a"},
				{Signals: sigs[1:], DeliverableType: model.DeliverableTypeFollowupDraft, SuggestedTitle: "b"},
			}
		}
		deliverables.createFn = func(ctx context.Context, d *model.Deliverable) error {
			if d.Type == model.DeliverableTypeMeetingPrep {
				return errors.New("insert failed")
			}
			return nil
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.VersionsFailed).To(Equal(1))
		Expect(stats.VersionsCreated).To(Equal(1))
		Expect(executor.executed).To(HaveLen(1))
	})

	It("commits the deliverable and its ledger links together", func() {
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: []model.Signal{meetingSignal}}}
		}
		g.evaluateFn = func(ctx context.Context, uid int64, signals []model.Signal) []model.ProposedAction {
			return []model.ProposedAction{{
				Signals:         signals,
				DeliverableType: model.DeliverableTypeMeetingPrep,
				SuggestedTitle:  "t",
			}}
		}

		_, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(tx.calls).To(Equal(1))
		Expect(deliverables.created).To(HaveLen(1))
		Expect(ledger.recordOutcome).To(Equal([]int64{deliverables.created[0].ID}))
	})

	It("rolls back the deliverable when its ledger link cannot be written", func() {
		hourly.runFn = func(ctx context.Context, uid int64) []detector.Outcome {
			return []detector.Outcome{{Detector: model.SignalTypeMeetingUpcoming, Signals: []model.Signal{meetingSignal}}}
		}
		g.evaluateFn = func(ctx context.Context, uid int64, signals []model.Signal) []model.ProposedAction {
			return []model.ProposedAction{{
				Signals:         signals,
				DeliverableType: model.DeliverableTypeMeetingPrep,
				SuggestedTitle:  "t",
			}}
		}
		ledger.recordOutcomeFn = func(ctx context.Context, uid int64, st model.SignalType, ref string, deliverableID int64) error {
			return errors.New("insert failed")
		}

		stats, err := pipeline.RunUser(ctx, userID, scheduler.Classes{Hourly: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.VersionsFailed).To(Equal(1))
		Expect(deliverables.created).To(BeEmpty(), "no deliverable may outlive a failed ledger link")
		Expect(executor.executed).To(BeEmpty())
	})
})
