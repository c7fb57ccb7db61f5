package handler_test

import (
	"context"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/service"
)

type mockDeliverableService struct {
	createFn            func(ctx context.Context, userID int64, input service.CreateDeliverableInput) (*model.Deliverable, error)
	getFn               func(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error)
	listFn              func(ctx context.Context, userID int64) ([]model.Deliverable, error)
	listVersionsFn      func(ctx context.Context, userID, deliverableID int64, limit int32) ([]model.DeliverableVersion, error)
	runNowFn            func(ctx context.Context, userID, deliverableID int64) (*model.DeliverableVersion, error)
	approveFn           func(ctx context.Context, userID, versionID int64, finalContent *string) (*model.DeliverableVersion, error)
	rejectFn            func(ctx context.Context, userID, versionID int64, reason string) (*model.DeliverableVersion, error)
	pauseFn             func(ctx context.Context, userID, deliverableID int64) error
	resumeFn            func(ctx context.Context, userID, deliverableID int64) error
	archiveFn           func(ctx context.Context, userID, deliverableID int64) error
	acceptSuggestionFn  func(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error)
	dismissSuggestionFn func(ctx context.Context, userID, deliverableID int64) error
}

func (m *mockDeliverableService) Create(ctx context.Context, userID int64, input service.CreateDeliverableInput) (*model.Deliverable, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, input)
	}
	return &model.Deliverable{}, nil
}

func (m *mockDeliverableService) Get(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, deliverableID)
	}
	return &model.Deliverable{}, nil
}

func (m *mockDeliverableService) List(ctx context.Context, userID int64) ([]model.Deliverable, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDeliverableService) ListVersions(ctx context.Context, userID, deliverableID int64, limit int32) ([]model.DeliverableVersion, error) {
	if m.listVersionsFn != nil {
		return m.listVersionsFn(ctx, userID, deliverableID, limit)
	}
	return nil, nil
}

func (m *mockDeliverableService) RunNow(ctx context.Context, userID, deliverableID int64) (*model.DeliverableVersion, error) {
	if m.runNowFn != nil {
		return m.runNowFn(ctx, userID, deliverableID)
	}
	return &model.DeliverableVersion{}, nil
}

func (m *mockDeliverableService) Approve(ctx context.Context, userID, versionID int64, finalContent *string) (*model.DeliverableVersion, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, userID, versionID, finalContent)
	}
	return &model.DeliverableVersion{}, nil
}

func (m *mockDeliverableService) Reject(ctx context.Context, userID, versionID int64, reason string) (*model.DeliverableVersion, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, userID, versionID, reason)
	}
	return &model.DeliverableVersion{}, nil
}

func (m *mockDeliverableService) Pause(ctx context.Context, userID, deliverableID int64) error {
	if m.pauseFn != nil {
		return m.pauseFn(ctx, userID, deliverableID)
	}
	return nil
}

func (m *mockDeliverableService) Resume(ctx context.Context, userID, deliverableID int64) error {
	if m.resumeFn != nil {
		return m.resumeFn(ctx, userID, deliverableID)
	}
	return nil
}

func (m *mockDeliverableService) Archive(ctx context.Context, userID, deliverableID int64) error {
	if m.archiveFn != nil {
		return m.archiveFn(ctx, userID, deliverableID)
	}
	return nil
}

func (m *mockDeliverableService) AcceptSuggestion(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error) {
	if m.acceptSuggestionFn != nil {
		return m.acceptSuggestionFn(ctx, userID, deliverableID)
	}
	return &model.Deliverable{}, nil
}

func (m *mockDeliverableService) DismissSuggestion(ctx context.Context, userID, deliverableID int64) error {
	if m.dismissSuggestionFn != nil {
		return m.dismissSuggestionFn(ctx, userID, deliverableID)
	}
	return nil
}
