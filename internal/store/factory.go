package store

import (
	"pulseworks.app/conductor/core/db"
)

type Stores struct {
	q db.Querier
}

// NewStores builds the store set over a querier, which may be a pool or an
// open transaction.
func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Users() UserStore {
	return &userStore{q: s.q}
}

func (s *Stores) Connections() ConnectionStore {
	return &connectionStore{q: s.q}
}

func (s *Stores) Deliverables() DeliverableStore {
	return &deliverableStore{q: s.q}
}

func (s *Stores) Versions() VersionStore {
	return &versionStore{q: s.q}
}

func (s *Stores) Ledger() LedgerStore {
	return &ledgerStore{q: s.q}
}

func (s *Stores) ExecutionLogs() ExecutionLogStore {
	return &executionLogStore{q: s.q}
}

func (s *Stores) Sessions() SessionStore {
	return &sessionStore{q: s.q}
}
