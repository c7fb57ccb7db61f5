package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type userStore struct {
	q db.Querier
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, email, name, timezone, created_at, updated_at
		FROM users WHERE id = $1`, id)

	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO users (id, email, name, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Name, user.Timezone,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *userStore) ListWithActiveConnections(ctx context.Context) ([]model.User, error) {
	rows, err := s.q.Query(ctx, `
		SELECT DISTINCT u.id, u.email, u.name, u.timezone, u.created_at, u.updated_at
		FROM users u
		JOIN connections c ON c.user_id = u.id AND c.status = 'active'
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("listing users with connections: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Timezone, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
