package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/store"
)

var (
	ErrDeliverableNotFound = errors.New("deliverable not found")
	ErrVersionNotFound     = errors.New("version not found")
	ErrNotSuggestion       = errors.New("deliverable is not a suggestion")
	ErrInvalidInput        = errors.New("invalid input")
)

// Executor is the engine seam: one call produces one version, or applies one
// review transition.
type Executor interface {
	Execute(ctx context.Context, d *model.Deliverable, signals []model.Signal) (*model.DeliverableVersion, error)
	Approve(ctx context.Context, versionID int64, finalContent *string) (*model.DeliverableVersion, error)
	Reject(ctx context.Context, versionID int64, reason string) (*model.DeliverableVersion, error)
}

type CreateDeliverableInput struct {
	Title    string
	Type     string
	Schedule *string
}

type DeliverableService interface {
	Create(ctx context.Context, userID int64, input CreateDeliverableInput) (*model.Deliverable, error)
	Get(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error)
	List(ctx context.Context, userID int64) ([]model.Deliverable, error)
	ListVersions(ctx context.Context, userID, deliverableID int64, limit int32) ([]model.DeliverableVersion, error)

	// RunNow synchronously produces a new version for the deliverable and
	// returns it, staged or failed.
	RunNow(ctx context.Context, userID, deliverableID int64) (*model.DeliverableVersion, error)

	Approve(ctx context.Context, userID, versionID int64, finalContent *string) (*model.DeliverableVersion, error)
	Reject(ctx context.Context, userID, versionID int64, reason string) (*model.DeliverableVersion, error)

	Pause(ctx context.Context, userID, deliverableID int64) error
	Resume(ctx context.Context, userID, deliverableID int64) error
	Archive(ctx context.Context, userID, deliverableID int64) error

	AcceptSuggestion(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error)
	DismissSuggestion(ctx context.Context, userID, deliverableID int64) error
}

type deliverableService struct {
	deliverables store.DeliverableStore
	versions     store.VersionStore
	engine       Executor
}

func NewDeliverableService(deliverables store.DeliverableStore, versions store.VersionStore, engine Executor) DeliverableService {
	return &deliverableService{
		deliverables: deliverables,
		versions:     versions,
		engine:       engine,
	}
}

func (s *deliverableService) Create(ctx context.Context, userID int64, input CreateDeliverableInput) (*model.Deliverable, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	typ, err := model.ParseDeliverableType(input.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	origin := model.OriginManual
	if input.Schedule != nil && *input.Schedule != "" {
		origin = model.OriginScheduled
	}

	d := &model.Deliverable{
		ID:       id.New(),
		UserID:   userID,
		Title:    title,
		Type:     typ,
		Status:   model.DeliverableStatusActive,
		Origin:   origin,
		Schedule: input.Schedule,
	}
	if err := s.deliverables.Create(ctx, d); err != nil {
		slog.ErrorContext(ctx, "failed to create deliverable", "error", err)
		return nil, fmt.Errorf("creating deliverable: %w", err)
	}

	slog.InfoContext(ctx, "deliverable created",
		"deliverable_id", d.ID,
		"deliverable_type", d.Type,
		"origin", d.Origin)
	return d, nil
}

func (s *deliverableService) Get(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error) {
	return s.owned(ctx, userID, deliverableID)
}

func (s *deliverableService) List(ctx context.Context, userID int64) ([]model.Deliverable, error) {
	return s.deliverables.ListByUser(ctx, userID)
}

func (s *deliverableService) ListVersions(ctx context.Context, userID, deliverableID int64, limit int32) ([]model.DeliverableVersion, error) {
	if _, err := s.owned(ctx, userID, deliverableID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.versions.ListByDeliverable(ctx, deliverableID, limit)
}

func (s *deliverableService) RunNow(ctx context.Context, userID, deliverableID int64) (*model.DeliverableVersion, error) {
	d, err := s.owned(ctx, userID, deliverableID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DeliverableStatusActive {
		return nil, fmt.Errorf("%w: deliverable is %s, not active", ErrInvalidInput, d.Status)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:        logger.Ptr(userID),
		DeliverableID: logger.Ptr(deliverableID),
	})
	slog.InfoContext(ctx, "run-now requested")

	return s.engine.Execute(ctx, d, nil)
}

func (s *deliverableService) Approve(ctx context.Context, userID, versionID int64, finalContent *string) (*model.DeliverableVersion, error) {
	if _, err := s.ownedVersion(ctx, userID, versionID); err != nil {
		return nil, err
	}
	return s.engine.Approve(ctx, versionID, finalContent)
}

func (s *deliverableService) Reject(ctx context.Context, userID, versionID int64, reason string) (*model.DeliverableVersion, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}
	if _, err := s.ownedVersion(ctx, userID, versionID); err != nil {
		return nil, err
	}
	return s.engine.Reject(ctx, versionID, reason)
}

func (s *deliverableService) Pause(ctx context.Context, userID, deliverableID int64) error {
	return s.setStatus(ctx, userID, deliverableID, model.DeliverableStatusActive, model.DeliverableStatusPaused)
}

func (s *deliverableService) Resume(ctx context.Context, userID, deliverableID int64) error {
	return s.setStatus(ctx, userID, deliverableID, model.DeliverableStatusPaused, model.DeliverableStatusActive)
}

func (s *deliverableService) Archive(ctx context.Context, userID, deliverableID int64) error {
	d, err := s.owned(ctx, userID, deliverableID)
	if err != nil {
		return err
	}
	if d.Status == model.DeliverableStatusArchived {
		return nil
	}
	if err := s.deliverables.UpdateStatus(ctx, deliverableID, d.Status, model.DeliverableStatusArchived); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDeliverableNotFound
		}
		return fmt.Errorf("archiving deliverable: %w", err)
	}
	slog.InfoContext(ctx, "deliverable archived", "deliverable_id", deliverableID)
	return nil
}

// AcceptSuggestion activates an analyzer-suggested deliverable. From then on
// it behaves exactly like a user-created one.
func (s *deliverableService) AcceptSuggestion(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error) {
	d, err := s.owned(ctx, userID, deliverableID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DeliverableStatusSuggested {
		return nil, ErrNotSuggestion
	}

	if err := s.deliverables.UpdateStatus(ctx, deliverableID, model.DeliverableStatusSuggested, model.DeliverableStatusActive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotSuggestion
		}
		return nil, fmt.Errorf("accepting suggestion: %w", err)
	}
	d.Status = model.DeliverableStatusActive

	slog.InfoContext(ctx, "suggestion accepted", "deliverable_id", deliverableID)
	return d, nil
}

func (s *deliverableService) DismissSuggestion(ctx context.Context, userID, deliverableID int64) error {
	d, err := s.owned(ctx, userID, deliverableID)
	if err != nil {
		return err
	}
	if d.Status != model.DeliverableStatusSuggested {
		return ErrNotSuggestion
	}

	if err := s.deliverables.UpdateStatus(ctx, deliverableID, model.DeliverableStatusSuggested, model.DeliverableStatusArchived); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotSuggestion
		}
		return fmt.Errorf("dismissing suggestion: %w", err)
	}

	slog.InfoContext(ctx, "suggestion dismissed", "deliverable_id", deliverableID)
	return nil
}

func (s *deliverableService) setStatus(ctx context.Context, userID, deliverableID int64, from, to model.DeliverableStatus) error {
	if _, err := s.owned(ctx, userID, deliverableID); err != nil {
		return err
	}
	if err := s.deliverables.UpdateStatus(ctx, deliverableID, from, to); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: deliverable is not %s", ErrInvalidInput, from)
		}
		return fmt.Errorf("updating deliverable status: %w", err)
	}
	slog.InfoContext(ctx, "deliverable status changed",
		"deliverable_id", deliverableID,
		"from", from,
		"to", to)
	return nil
}

// owned loads a deliverable and enforces ownership. A foreign deliverable is
// indistinguishable from a missing one.
func (s *deliverableService) owned(ctx context.Context, userID, deliverableID int64) (*model.Deliverable, error) {
	d, err := s.deliverables.GetByID(ctx, deliverableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDeliverableNotFound
		}
		return nil, fmt.Errorf("loading deliverable: %w", err)
	}
	if d.UserID != userID {
		return nil, ErrDeliverableNotFound
	}
	return d, nil
}

func (s *deliverableService) ownedVersion(ctx context.Context, userID, versionID int64) (*model.DeliverableVersion, error) {
	v, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("loading version: %w", err)
	}
	if _, err := s.owned(ctx, userID, v.DeliverableID); err != nil {
		return nil, ErrVersionNotFound
	}
	return v, nil
}
