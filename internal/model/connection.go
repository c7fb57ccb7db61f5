package model

import (
	"fmt"
	"time"
)

type PlatformKind string

const (
	PlatformCalendar  PlatformKind = "calendar"
	PlatformMail      PlatformKind = "mail"
	PlatformChat      PlatformKind = "chat"
	PlatformDocuments PlatformKind = "documents"
)

func ParsePlatformKind(raw string) (PlatformKind, error) {
	switch k := PlatformKind(raw); k {
	case PlatformCalendar, PlatformMail, PlatformChat, PlatformDocuments:
		return k, nil
	default:
		return "", fmt.Errorf("unknown platform kind %q", raw)
	}
}

type ConnectionStatus string

const (
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
)

// Connection is a user's authorized link to one platform. Token acquisition
// and the OAuth handshake live outside this service; the connection row is
// consumed as a capability: present a valid access token or fail.
type Connection struct {
	ID       int64            `json:"id"`
	UserID   int64            `json:"user_id"`
	Platform PlatformKind     `json:"platform"`
	Status   ConnectionStatus `json:"status"`

	AccessToken  string     `json:"-"`
	RefreshToken *string    `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenExpired reports whether the access token is past its expiry, with a
// small skew so tokens are refreshed before they lapse mid-request.
func (c Connection) TokenExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(30 * time.Second).Before(*c.ExpiresAt)
}
