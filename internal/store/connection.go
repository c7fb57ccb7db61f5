package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/model"
)

type connectionStore struct {
	q db.Querier
}

const connectionColumns = `id, user_id, platform, status, access_token, refresh_token, expires_at, created_at, updated_at`

func (s *connectionStore) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	row := s.q.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	return scanConnection(row)
}

func (s *connectionStore) GetByUserAndPlatform(ctx context.Context, userID int64, platform model.PlatformKind) (*model.Connection, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+connectionColumns+`
		FROM connections
		WHERE user_id = $1 AND platform = $2 AND status = 'active'`, userID, string(platform))
	return scanConnection(row)
}

func (s *connectionStore) Create(ctx context.Context, conn *model.Connection) error {
	const insert = `
		INSERT INTO connections (id, user_id, platform, status, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at`

	err := s.q.QueryRow(ctx, insert,
		conn.ID, conn.UserID, string(conn.Platform), string(conn.Status),
		conn.AccessToken, conn.RefreshToken, conn.ExpiresAt,
	).Scan(&conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

func (s *connectionStore) ListActiveByUser(ctx context.Context, userID int64) ([]model.Connection, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+connectionColumns+`
		FROM connections
		WHERE user_id = $1 AND status = 'active'
		ORDER BY platform`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *connectionStore) UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE connections
		SET access_token = $2,
		    refresh_token = COALESCE($3, refresh_token),
		    expires_at = $4,
		    updated_at = now()
		WHERE id = $1`, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("updating connection tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *connectionStore) MarkRevoked(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE connections SET status = 'revoked', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoking connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*model.Connection, error) {
	var c model.Connection
	var platform, status string
	err := row.Scan(
		&c.ID, &c.UserID, &platform, &status,
		&c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Platform = model.PlatformKind(platform)
	c.Status = model.ConnectionStatus(status)
	return &c, nil
}
