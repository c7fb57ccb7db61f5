package service

import (
	"pulseworks.app/conductor/internal/store"
)

type Services struct {
	stores *store.Stores
	engine Executor
}

func NewServices(stores *store.Stores, engine Executor) *Services {
	return &Services{
		stores: stores,
		engine: engine,
	}
}

func (s *Services) Deliverables() DeliverableService {
	return NewDeliverableService(s.stores.Deliverables(), s.stores.Versions(), s.engine)
}
