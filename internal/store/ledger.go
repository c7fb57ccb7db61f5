package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type ledgerStore struct {
	q db.Querier
}

// TryAcquire is a single check-and-stamp statement. The upsert only succeeds
// when no row exists for the key or the cooldown window has fully elapsed, so
// under concurrent callers exactly one sees a returned row. The stamp happens
// on acquire, before any deliverable is produced: suppression holds even if
// the follow-up RecordOutcome never runs.
func (s *ledgerStore) TryAcquire(ctx context.Context, userID int64, signalType model.SignalType, reference string, now time.Time, cooldown time.Duration) (model.LedgerDecision, error) {
	const acquire = `
		INSERT INTO dedup_ledger (user_id, signal_type, signal_reference, last_triggered_at, produced_deliverable_id)
		VALUES ($1, $2, $3, $4, NULL)
		ON CONFLICT (user_id, signal_type, signal_reference)
		DO UPDATE SET last_triggered_at = EXCLUDED.last_triggered_at,
		              produced_deliverable_id = NULL
		WHERE dedup_ledger.last_triggered_at <= $4 - make_interval(secs => $5)
		RETURNING last_triggered_at`

	var stamped time.Time
	err := s.q.QueryRow(ctx, acquire, userID, string(signalType), reference, now, cooldown.Seconds()).Scan(&stamped)
	if err == nil {
		return model.LedgerDecision{Allowed: true, LastTriggeredAt: stamped}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.LedgerDecision{}, fmt.Errorf("ledger acquire: %w", err)
	}

	// Suppressed: fetch the existing stamp for the caller's logs.
	rec, err := s.Get(ctx, userID, signalType, reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Row vanished between statements; treat as suppressed with a
			// zero stamp rather than failing the pipeline.
			return model.LedgerDecision{Allowed: false}, nil
		}
		return model.LedgerDecision{}, err
	}

	return model.LedgerDecision{Allowed: false, LastTriggeredAt: rec.LastTriggeredAt}, nil
}

func (s *ledgerStore) RecordOutcome(ctx context.Context, userID int64, signalType model.SignalType, reference string, deliverableID int64) error {
	const record = `
		UPDATE dedup_ledger
		SET produced_deliverable_id = $4
		WHERE user_id = $1 AND signal_type = $2 AND signal_reference = $3`

	tag, err := s.q.Exec(ctx, record, userID, string(signalType), reference, deliverableID)
	if err != nil {
		return fmt.Errorf("ledger record outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ledgerStore) Get(ctx context.Context, userID int64, signalType model.SignalType, reference string) (*model.DedupRecord, error) {
	const get = `
		SELECT user_id, signal_type, signal_reference, last_triggered_at, produced_deliverable_id
		FROM dedup_ledger
		WHERE user_id = $1 AND signal_type = $2 AND signal_reference = $3`

	var rec model.DedupRecord
	var rawType string
	err := s.q.QueryRow(ctx, get, userID, string(signalType), reference).Scan(
		&rec.UserID, &rawType, &rec.SignalReference, &rec.LastTriggeredAt, &rec.ProducedDeliverableID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	rec.SignalType = model.SignalType(rawType)
	return &rec, nil
}
