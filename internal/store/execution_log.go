package store

import (
	"context"
	"fmt"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type executionLogStore struct {
	q db.Querier
}

func (s *executionLogStore) Create(ctx context.Context, entry *model.ExecutionLog) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO execution_logs (id, user_id, deliverable_id, version_id, signal_refs, sources, model, prompt_tokens, completion_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`,
		entry.ID, entry.UserID, entry.DeliverableID, entry.VersionID,
		entry.SignalRefs, entry.Sources, entry.Model, entry.PromptTokens, entry.CompletionTokens,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating execution log: %w", err)
	}
	return nil
}

func (s *executionLogStore) ListByDeliverable(ctx context.Context, deliverableID int64, limit int32) ([]model.ExecutionLog, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, deliverable_id, version_id, signal_refs, sources, model, prompt_tokens, completion_tokens, created_at
		FROM execution_logs
		WHERE deliverable_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, deliverableID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing execution logs: %w", err)
	}
	defer rows.Close()

	var entries []model.ExecutionLog
	for rows.Next() {
		var e model.ExecutionLog
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.DeliverableID, &e.VersionID,
			&e.SignalRefs, &e.Sources, &e.Model, &e.PromptTokens, &e.CompletionTokens, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
