package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type deliverableStore struct {
	q db.Querier
}

const deliverableColumns = `id, user_id, title, type, status, origin, schedule,
	source_reference, rationale, created_at, updated_at`

func (s *deliverableStore) GetByID(ctx context.Context, id int64) (*model.Deliverable, error) {
	row := s.q.QueryRow(ctx, `SELECT `+deliverableColumns+` FROM deliverables WHERE id = $1`, id)
	return scanDeliverable(row)
}

func (s *deliverableStore) Create(ctx context.Context, d *model.Deliverable) error {
	const insert = `
		INSERT INTO deliverables (id, user_id, title, type, status, origin, schedule, source_reference, rationale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at`

	err := s.q.QueryRow(ctx, insert,
		d.ID, d.UserID, d.Title, string(d.Type), string(d.Status), string(d.Origin),
		d.Schedule, d.SourceReference, d.Rationale,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating deliverable: %w", err)
	}
	return nil
}

func (s *deliverableStore) ListByUser(ctx context.Context, userID int64) ([]model.Deliverable, error) {
	return s.list(ctx, `
		SELECT `+deliverableColumns+`
		FROM deliverables
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

func (s *deliverableStore) ListActiveByUser(ctx context.Context, userID int64) ([]model.Deliverable, error) {
	return s.list(ctx, `
		SELECT `+deliverableColumns+`
		FROM deliverables
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at DESC`, userID)
}

func (s *deliverableStore) FindActiveBySource(ctx context.Context, userID int64, typ model.DeliverableType, sourceRef string) (*model.Deliverable, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+deliverableColumns+`
		FROM deliverables
		WHERE user_id = $1 AND type = $2 AND source_reference = $3 AND status = 'active'
		LIMIT 1`, userID, string(typ), sourceRef)
	return scanDeliverable(row)
}

func (s *deliverableStore) UpdateStatus(ctx context.Context, id int64, from, to model.DeliverableStatus) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE deliverables
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating deliverable status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *deliverableStore) list(ctx context.Context, sql string, args ...any) ([]model.Deliverable, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deliverables: %w", err)
	}
	defer rows.Close()

	var out []model.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDeliverable(row pgx.Row) (*model.Deliverable, error) {
	var d model.Deliverable
	var typ, status, origin string
	err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &typ, &status, &origin,
		&d.Schedule, &d.SourceReference, &d.Rationale, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Type = model.DeliverableType(typ)
	d.Status = model.DeliverableStatus(status)
	d.Origin = model.DeliverableOrigin(origin)
	return &d, nil
}
