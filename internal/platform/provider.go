package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pulseworks.app/conductor/core/config"
	"pulseworks.app/conductor/internal/model"
)

// ProvidersFromConfig builds the provider set for every configured platform.
func ProvidersFromConfig(cfg config.PlatformConfig) map[model.PlatformKind]Provider {
	return map[model.PlatformKind]Provider{
		model.PlatformCalendar:  NewRESTProvider(model.PlatformCalendar, cfg.CalendarBaseURL, cfg.FetchTimeout),
		model.PlatformMail:      NewRESTProvider(model.PlatformMail, cfg.MailBaseURL, cfg.FetchTimeout),
		model.PlatformChat:      NewRESTProvider(model.PlatformChat, cfg.ChatBaseURL, cfg.FetchTimeout),
		model.PlatformDocuments: NewRESTProvider(model.PlatformDocuments, cfg.DocumentsBaseURL, cfg.FetchTimeout),
	}
}

// Provider fetches one resource from a single platform given a bearer token.
type Provider interface {
	Fetch(ctx context.Context, accessToken string, desc ResourceDescriptor) (*Snapshot, error)
}

// RESTProvider talks to a platform's read API over HTTPS with bearer auth.
// Response bodies are the snapshot payloads verbatim; the provider only maps
// transport and auth failures onto the facade's error taxonomy.
type RESTProvider struct {
	platform model.PlatformKind
	baseURL  string
	client   *http.Client
}

func NewRESTProvider(platform model.PlatformKind, baseURL string, timeout time.Duration) *RESTProvider {
	return &RESTProvider{
		platform: platform,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *RESTProvider) Fetch(ctx context.Context, accessToken string, desc ResourceDescriptor) (*Snapshot, error) {
	op := fmt.Sprintf("%s.%s", p.platform, desc.Kind)

	endpoint, err := p.endpoint(desc)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", op, ErrAuthExpired)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("platform returned %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	snap := &Snapshot{
		Platform:  p.platform,
		Kind:      desc.Kind,
		Reference: desc.Reference,
		FetchedAt: time.Now().UTC(),
	}

	var decodeErr error
	switch desc.Kind {
	case ResourceCalendarEvents:
		snap.Calendar = &CalendarSnapshot{}
		decodeErr = json.NewDecoder(resp.Body).Decode(snap.Calendar)
	case ResourceInboxThreads:
		snap.Inbox = &InboxSnapshot{}
		decodeErr = json.NewDecoder(resp.Body).Decode(snap.Inbox)
	case ResourceChannelActivity:
		snap.Channel = &ChannelSnapshot{}
		decodeErr = json.NewDecoder(resp.Body).Decode(snap.Channel)
	case ResourceDocument:
		snap.Document = &DocumentSnapshot{}
		decodeErr = json.NewDecoder(resp.Body).Decode(snap.Document)
	default:
		return nil, fmt.Errorf("%s: unsupported resource kind %q", op, desc.Kind)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, decodeErr)
	}

	return snap, nil
}

func (p *RESTProvider) endpoint(desc ResourceDescriptor) (string, error) {
	var path string
	switch desc.Kind {
	case ResourceCalendarEvents:
		path = "/v1/calendar/events"
	case ResourceInboxThreads:
		path = "/v1/mail/threads"
	case ResourceChannelActivity:
		path = "/v1/chat/channels"
	case ResourceDocument:
		path = "/v1/documents/" + url.PathEscape(desc.Reference)
	default:
		return "", fmt.Errorf("unsupported resource kind %q", desc.Kind)
	}

	q := url.Values{}
	if desc.Reference != "" && desc.Kind != ResourceDocument {
		q.Set("ref", desc.Reference)
	}
	if desc.Window > 0 {
		q.Set("window_seconds", strconv.Itoa(int(desc.Window.Seconds())))
	}

	endpoint := p.baseURL + path
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	return endpoint, nil
}
