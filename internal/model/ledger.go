package model

import "time"

// DedupRecord is the durable suppression history for one signal key.
// Keyed by (user_id, signal_type, signal_reference).
type DedupRecord struct {
	UserID                int64      `json:"user_id"`
	SignalType            SignalType `json:"signal_type"`
	SignalReference       string     `json:"signal_reference"`
	LastTriggeredAt       time.Time  `json:"last_triggered_at"`
	ProducedDeliverableID *int64     `json:"produced_deliverable_id,omitempty"`
}

// LedgerDecision is the outcome of a TryAcquire call.
type LedgerDecision struct {
	Allowed bool
	// LastTriggeredAt carries the prior trigger time on suppression, so
	// callers can log how far into the cooldown window the repeat landed.
	LastTriggeredAt time.Time
}
