package service_test

import (
	"context"
	"time"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/store"
)

type mockDeliverableStore struct {
	getByIDFn      func(ctx context.Context, id int64) (*model.Deliverable, error)
	createFn       func(ctx context.Context, d *model.Deliverable) error
	listByUserFn   func(ctx context.Context, userID int64) ([]model.Deliverable, error)
	updateStatusFn func(ctx context.Context, id int64, from, to model.DeliverableStatus) error

	created       []*model.Deliverable
	statusUpdates []statusUpdate
}

type statusUpdate struct {
	id       int64
	from, to model.DeliverableStatus
}

func (m *mockDeliverableStore) GetByID(ctx context.Context, id int64) (*model.Deliverable, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockDeliverableStore) Create(ctx context.Context, d *model.Deliverable) error {
	m.created = append(m.created, d)
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
	return nil, nil
}

func (m *mockDeliverableStore) FindActiveBySource(ctx context.Context, userID int64, typ model.DeliverableType, sourceRef string) (*model.Deliverable, error) {
	return nil, store.ErrNotFound
}

func (m *mockDeliverableStore) UpdateStatus(ctx context.Context, id int64, from, to model.DeliverableStatus) error {
	m.statusUpdates = append(m.statusUpdates, statusUpdate{id: id, from: from, to: to})
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return nil
}

type mockVersionStore struct {
	getByIDFn          func(ctx context.Context, id int64) (*model.DeliverableVersion, error)
	listByDeliverables func(ctx context.Context, deliverableID int64, limit int32) ([]model.DeliverableVersion, error)

	listLimits []int32
}

func (m *mockVersionStore) GetByID(ctx context.Context, id int64) (*model.DeliverableVersion, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockVersionStore) CreateGenerating(ctx context.Context, id, deliverableID int64) (*model.DeliverableVersion, error) {
	return nil, store.ErrNotFound
}

func (m *mockVersionStore) ListByDeliverable(ctx context.Context, deliverableID int64, limit int32) ([]model.DeliverableVersion, error) {
	m.listLimits = append(m.listLimits, limit)
	if m.listByDeliverables != nil {
		return m.listByDeliverables(ctx, deliverableID, limit)
	}
	return nil, nil
}

func (m *mockVersionStore) MarkStaged(ctx context.Context, id int64, draft string, provenance []byte, deliveredAt time.Time) (*model.DeliverableVersion, error) {
	return nil, store.ErrNotFound
}

func (m *mockVersionStore) MarkFailed(ctx context.Context, id int64, deliveryError string) (*model.DeliverableVersion, error) {
	return nil, store.ErrNotFound
}

func (m *mockVersionStore) Approve(ctx context.Context, id int64, finalContent *string) (*model.DeliverableVersion, error) {
	return nil, store.ErrNotFound
}

func (m *mockVersionStore) Reject(ctx context.Context, id int64, reason string) (*model.DeliverableVersion, error) {
	return nil, store.ErrNotFound
}

func (m *mockVersionStore) ReclaimStuck(ctx context.Context, cutoff time.Time, reason string) ([]int64, error) {
	return nil, nil
}

type mockExecutor struct {
	executeFn func(ctx context.Context, d *model.Deliverable, signals []model.Signal) (*model.DeliverableVersion, error)
	approveFn func(ctx context.Context, versionID int64, finalContent *string) (*model.DeliverableVersion, error)
	rejectFn  func(ctx context.Context, versionID int64, reason string) (*model.DeliverableVersion, error)
}

func (m *mockExecutor) Execute(ctx context.Context, d *model.Deliverable, signals []model.Signal) (*model.DeliverableVersion, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, d, signals)
	}
	return &model.DeliverableVersion{ID: 1, DeliverableID: d.ID, VersionNumber: 1, Status: model.VersionStatusStaged}, nil
}

func (m *mockExecutor) Approve(ctx context.Context, versionID int64, finalContent *string) (*model.DeliverableVersion, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, versionID, finalContent)
	}
	return &model.DeliverableVersion{ID: versionID, Status: model.VersionStatusApproved}, nil
}

func (m *mockExecutor) Reject(ctx context.Context, versionID int64, reason string) (*model.DeliverableVersion, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, versionID, reason)
	}
	return &model.DeliverableVersion{ID: versionID, Status: model.VersionStatusRejected, RejectionReason: &reason}, nil
}
