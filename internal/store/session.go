package store

import (
	"context"
	"fmt"
	"time"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type sessionStore struct {
	q db.Querier
}

func (s *sessionStore) Create(ctx context.Context, sess *model.InteractionSession) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO interaction_sessions (id, user_id, topic, summary, message_count, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.UserID, sess.Topic, sess.Summary, sess.MessageCount, sess.StartedAt, sess.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("creating interaction session: %w", err)
	}
	return nil
}

func (s *sessionStore) ListRecentByUser(ctx context.Context, userID int64, since time.Time, limit int32) ([]model.InteractionSession, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, topic, summary, message_count, started_at, ended_at
		FROM interaction_sessions
		WHERE user_id = $1 AND ended_at >= $2
		ORDER BY ended_at DESC
		LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("listing interaction sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.InteractionSession
	for rows.Next() {
		var sess model.InteractionSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Topic, &sess.Summary, &sess.MessageCount, &sess.StartedAt, &sess.EndedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
