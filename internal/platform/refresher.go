package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pulseworks.app/conductor/internal/model"
)

// RESTRefresher exchanges refresh tokens against the identity service. One
// blocking call per refresh, never retried here; the next tick is the retry.
type RESTRefresher struct {
	refreshURL string
	client     *http.Client
}

func NewRESTRefresher(refreshURL string, timeout time.Duration) *RESTRefresher {
	return &RESTRefresher{
		refreshURL: refreshURL,
		client:     &http.Client{Timeout: timeout},
	}
}

type refreshRequest struct {
	ConnectionID int64  `json:"connection_id"`
	Platform     string `json:"platform"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken *string    `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (r *RESTRefresher) Refresh(ctx context.Context, conn *model.Connection) (string, *string, *time.Time, error) {
	if conn.RefreshToken == nil {
		return "", nil, nil, fmt.Errorf("connection %d has no refresh token", conn.ID)
	}

	body, err := json.Marshal(refreshRequest{
		ConnectionID: conn.ID,
		Platform:     string(conn.Platform),
		RefreshToken: *conn.RefreshToken,
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", nil, nil, fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", nil, nil, fmt.Errorf("calling identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, nil, fmt.Errorf("identity service returned %s", resp.Status)
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, nil, fmt.Errorf("decoding refresh response: %w", err)
	}
	if out.AccessToken == "" {
		return "", nil, nil, fmt.Errorf("identity service returned empty access token")
	}

	return out.AccessToken, out.RefreshToken, out.ExpiresAt, nil
}
