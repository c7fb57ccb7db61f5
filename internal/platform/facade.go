package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/store"
)

// TokenRefresher exchanges a refresh token for a new access token. The OAuth
// handshake lives in the identity service; this interface is the only seam
// conductor needs.
type TokenRefresher interface {
	Refresh(ctx context.Context, conn *model.Connection) (accessToken string, refreshToken *string, expiresAt *time.Time, err error)
}

// Facade is the single entry point for reading platform data on behalf of a
// user. It resolves the user's connection, refreshes an expired token at most
// once, and delegates to the platform's provider. Only the requesting user's
// credentials are ever presented.
type Facade struct {
	connections store.ConnectionStore
	providers   map[model.PlatformKind]Provider
	refresher   TokenRefresher
	clock       clockwork.Clock
}

func NewFacade(connections store.ConnectionStore, providers map[model.PlatformKind]Provider, refresher TokenRefresher, clock clockwork.Clock) *Facade {
	return &Facade{
		connections: connections,
		providers:   providers,
		refresher:   refresher,
		clock:       clock,
	}
}

// Fetch reads one resource for the user. Auth failures map to ErrAuthExpired,
// retryable platform trouble to *TransientError; callers decide what to skip.
func (f *Facade) Fetch(ctx context.Context, userID int64, desc ResourceDescriptor) (*Snapshot, error) {
	provider, ok := f.providers[desc.Platform]
	if !ok {
		return nil, fmt.Errorf("no provider configured for platform %q", desc.Platform)
	}

	conn, err := f.connections.GetByUserAndPlatform(ctx, userID, desc.Platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: no active connection: %w", desc.Platform, ErrAuthExpired)
		}
		return nil, fmt.Errorf("loading connection: %w", err)
	}

	refreshed := false
	if conn.TokenExpired(f.clock.Now()) {
		if err := f.refreshOnce(ctx, conn); err != nil {
			return nil, err
		}
		refreshed = true
	}

	snap, err := provider.Fetch(ctx, conn.AccessToken, desc)
	if err == nil {
		return snap, nil
	}

	// The platform rejected a token we believed valid. One refresh, one retry;
	// anything beyond that waits for the next pass.
	if errors.Is(err, ErrAuthExpired) && !refreshed {
		if refreshErr := f.refreshOnce(ctx, conn); refreshErr != nil {
			return nil, refreshErr
		}
		return provider.Fetch(ctx, conn.AccessToken, desc)
	}

	return nil, err
}

func (f *Facade) refreshOnce(ctx context.Context, conn *model.Connection) error {
	if f.refresher == nil || conn.RefreshToken == nil {
		return fmt.Errorf("%s: token expired and not refreshable: %w", conn.Platform, ErrAuthExpired)
	}

	accessToken, refreshToken, expiresAt, err := f.refresher.Refresh(ctx, conn)
	if err != nil {
		slog.WarnContext(ctx, "token refresh failed",
			"error", err,
			"platform", conn.Platform,
			"connection_id", conn.ID)
		return fmt.Errorf("%s: refreshing token: %w", conn.Platform, ErrAuthExpired)
	}

	if err := f.connections.UpdateTokens(ctx, conn.ID, accessToken, refreshToken, expiresAt); err != nil {
		return fmt.Errorf("persisting refreshed token: %w", err)
	}

	conn.AccessToken = accessToken
	if refreshToken != nil {
		conn.RefreshToken = refreshToken
	}
	conn.ExpiresAt = expiresAt

	slog.InfoContext(logger.WithLogFields(ctx, logger.LogFields{Component: "conductor.platform"}),
		"access token refreshed",
		"platform", conn.Platform,
		"connection_id", conn.ID)

	return nil
}
