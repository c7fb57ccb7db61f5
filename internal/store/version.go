package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type versionStore struct {
	q db.Querier
}

const versionColumns = `id, deliverable_id, version_number, status, draft_content, final_content,
	provenance, delivery_error, rejection_reason, created_at, delivered_at`

func (s *versionStore) GetByID(ctx context.Context, id int64) (*model.DeliverableVersion, error) {
	row := s.q.QueryRow(ctx, `SELECT `+versionColumns+` FROM deliverable_versions WHERE id = $1`, id)
	return scanVersion(row)
}

// CreateGenerating allocates the next version number for the deliverable.
// The number is computed in the insert itself; the unique constraint on
// (deliverable_id, version_number) rejects a concurrent racer, which we
// absorb by recomputing. Two rapid run-now calls therefore always get two
// distinct, consecutive numbers.
func (s *versionStore) CreateGenerating(ctx context.Context, id, deliverableID int64) (*model.DeliverableVersion, error) {
	const insert = `
		INSERT INTO deliverable_versions (id, deliverable_id, version_number, status, created_at)
		SELECT $1, $2, COALESCE(MAX(version_number), 0) + 1, 'generating', now()
		FROM deliverable_versions
		WHERE deliverable_id = $2
		RETURNING ` + versionColumns

	const maxAllocAttempts = 3
	for attempt := 1; ; attempt++ {
		row := s.q.QueryRow(ctx, insert, id, deliverableID)
		v, err := scanVersion(row)
		if err == nil {
			return v, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && attempt < maxAllocAttempts {
			continue // lost the number race, recompute
		}
		return nil, fmt.Errorf("creating version: %w", err)
	}
}

func (s *versionStore) ListByDeliverable(ctx context.Context, deliverableID int64, limit int32) ([]model.DeliverableVersion, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+versionColumns+`
		FROM deliverable_versions
		WHERE deliverable_id = $1
		ORDER BY version_number DESC
		LIMIT $2`, deliverableID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var versions []model.DeliverableVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// Each transition is a conditional update keyed on the expected prior status.
// A missing row means the version either does not exist or is not in the
// expected status; callers resolve which by re-reading.

func (s *versionStore) MarkStaged(ctx context.Context, id int64, draft string, provenance []byte, deliveredAt time.Time) (*model.DeliverableVersion, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE deliverable_versions
		SET status = 'staged', draft_content = $2, provenance = $3, delivered_at = $4
		WHERE id = $1 AND status = 'generating'
		RETURNING `+versionColumns, id, draft, provenance, deliveredAt)
	return scanVersion(row)
}

func (s *versionStore) MarkFailed(ctx context.Context, id int64, deliveryError string) (*model.DeliverableVersion, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE deliverable_versions
		SET status = 'failed', delivery_error = $2
		WHERE id = $1 AND status = 'generating'
		RETURNING `+versionColumns, id, deliveryError)
	return scanVersion(row)
}

func (s *versionStore) Approve(ctx context.Context, id int64, finalContent *string) (*model.DeliverableVersion, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE deliverable_versions
		SET status = 'approved', final_content = COALESCE($2, draft_content)
		WHERE id = $1 AND status = 'staged'
		RETURNING `+versionColumns, id, finalContent)
	return scanVersion(row)
}

func (s *versionStore) Reject(ctx context.Context, id int64, reason string) (*model.DeliverableVersion, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE deliverable_versions
		SET status = 'rejected', rejection_reason = $2
		WHERE id = $1 AND status = 'staged'
		RETURNING `+versionColumns, id, reason)
	return scanVersion(row)
}

func (s *versionStore) ReclaimStuck(ctx context.Context, cutoff time.Time, reason string) ([]int64, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE deliverable_versions
		SET status = 'failed', delivery_error = $2
		WHERE status = 'generating' AND created_at < $1
		RETURNING id`, cutoff, reason)
	if err != nil {
		return nil, fmt.Errorf("reclaiming stuck versions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanVersion(row pgx.Row) (*model.DeliverableVersion, error) {
	var v model.DeliverableVersion
	var status string
	err := row.Scan(
		&v.ID, &v.DeliverableID, &v.VersionNumber, &status, &v.DraftContent, &v.FinalContent,
		&v.Provenance, &v.DeliveryError, &v.RejectionReason, &v.CreatedAt, &v.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v.Status = model.VersionStatus(status)
	return &v, nil
}
