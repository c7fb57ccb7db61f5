package gate_test

import (
	"context"
	"encoding/json"

	"pulseworks.app/conductor/common/llm"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/store"
)

// mockLLM returns canned structured output. chatFn returns the raw JSON the
// model would have produced; the mock unmarshals it into the caller's result.
type mockLLM struct {
	chatFn      func(ctx context.Context, req llm.Request) (string, *llm.Response, error)
	capturedReq llm.Request
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.capturedReq = req
	if m.chatFn == nil {
		return &llm.Response{}, nil
	}
	raw, resp, err := m.chatFn(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &llm.Response{}
	}
	return resp, nil
}

func (m *mockLLM) Model() string { return "test-model" }

type mockDeliverableStore struct {
	getByIDFn            func(ctx context.Context, id int64) (*model.Deliverable, error)
	createFn             func(ctx context.Context, d *model.Deliverable) error
	listByUserFn         func(ctx context.Context, userID int64) ([]model.Deliverable, error)
	listActiveByUserFn   func(ctx context.Context, userID int64) ([]model.Deliverable, error)
	findActiveBySourceFn func(ctx context.Context, userID int64, typ model.DeliverableType, sourceRef string) (*model.Deliverable, error)
	updateStatusFn       func(ctx context.Context, id int64, from, to model.DeliverableStatus) error
}

func (m *mockDeliverableStore) GetByID(ctx context.Context, id int64) (*model.Deliverable, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockDeliverableStore) Create(ctx context.Context, d *model.Deliverable) error {
	if m.createFn != nil {
		return m.createFn(ctx, d)
	}
	return nil
}

func (m *mockDeliverableStore) ListByUser(ctx context.Context, userID int64) ([]model.Deliverable, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDeliverableStore) ListActiveByUser(ctx context.Context, userID int64) ([]model.Deliverable, error) {
	if m.listActiveByUserFn != nil {
		return m.listActiveByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDeliverableStore) FindActiveBySource(ctx context.Context, userID int64, typ model.DeliverableType, sourceRef string) (*model.Deliverable, error) {
	if m.findActiveBySourceFn != nil {
		return m.findActiveBySourceFn(ctx, userID, typ, sourceRef)
	}
	return nil, store.ErrNotFound
}

func (m *mockDeliverableStore) UpdateStatus(ctx context.Context, id int64, from, to model.DeliverableStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return nil
}
