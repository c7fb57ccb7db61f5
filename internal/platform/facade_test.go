package platform_test

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
	"pulseworks.app/conductor/internal/store"
)

var _ = Describe("Facade", func() {
	const userID = int64(42)

	var (
		ctx         context.Context
		connections *mockConnectionStore
		provider    *mockProvider
		refresher   *mockRefresher
		clock       *clockwork.FakeClock
		facade      *platform.Facade
		conn        *model.Connection
	)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	desc := platform.ResourceDescriptor{
		Platform: model.PlatformCalendar,
		Kind:     platform.ResourceCalendarEvents,
		Window:   4 * time.Hour,
	}

	BeforeEach(func() {
		ctx = context.Background()
		connections = &mockConnectionStore{}
		provider = &mockProvider{}
		refresher = &mockRefresher{}
		clock = clockwork.NewFakeClockAt(now)

		facade = platform.NewFacade(connections, map[model.PlatformKind]platform.Provider{
			model.PlatformCalendar: provider,
		}, refresher, clock)

		refreshToken := "refresh-1"
		validUntil := now.Add(time.Hour)
		conn = &model.Connection{
			ID:           10,
			UserID:       userID,
			Platform:     model.PlatformCalendar,
			Status:       model.ConnectionStatusActive,
			AccessToken:  "access-1",
			RefreshToken: &refreshToken,
			ExpiresAt:    &validUntil,
		}
		connections.getByUserAndPlatformFn = func(ctx context.Context, uid int64, p model.PlatformKind) (*model.Connection, error) {
			return conn, nil
		}
	})

	It("fetches with the stored token when it is still valid", func() {
		snap, err := facade.Fetch(ctx, userID, desc)

		Expect(err).NotTo(HaveOccurred())
		Expect(snap).NotTo(BeNil())
		Expect(provider.tokens).To(Equal([]string{"access-1"}))
		Expect(refresher.calls).To(BeZero())
	})

	It("maps a missing connection to auth-expired", func() {
		connections.getByUserAndPlatformFn = func(ctx context.Context, uid int64, p model.PlatformKind) (*model.Connection, error) {
			return nil, store.ErrNotFound
		}

		_, err := facade.Fetch(ctx, userID, desc)
		Expect(errors.Is(err, platform.ErrAuthExpired)).To(BeTrue())
	})

	It("errors on a platform with no provider", func() {
		_, err := facade.Fetch(ctx, userID, platform.ResourceDescriptor{Platform: model.PlatformMail})
		Expect(err).To(MatchError(ContainSubstring("no provider configured")))
	})

	It("refreshes a pre-expired token before fetching and persists it", func() {
		expired := now.Add(-time.Minute)
		conn.ExpiresAt = &expired

		snap, err := facade.Fetch(ctx, userID, desc)

		Expect(err).NotTo(HaveOccurred())
		Expect(snap).NotTo(BeNil())
		Expect(refresher.calls).To(Equal(1))
		Expect(provider.tokens).To(Equal([]string{"fresh-token"}))
		Expect(connections.updatedTokens).To(Equal([]string{"fresh-token"}))
	})

	It("refreshes once and retries when the platform rejects a believed-valid token", func() {
		provider.fetchFn = func(ctx context.Context, accessToken string, d platform.ResourceDescriptor) (*platform.Snapshot, error) {
			if accessToken == "access-1" {
				return nil, platform.ErrAuthExpired
			}
			return &platform.Snapshot{Platform: d.Platform, Kind: d.Kind}, nil
		}

		snap, err := facade.Fetch(ctx, userID, desc)

		Expect(err).NotTo(HaveOccurred())
		Expect(snap).NotTo(BeNil())
		Expect(refresher.calls).To(Equal(1))
		Expect(provider.tokens).To(Equal([]string{"access-1", "fresh-token"}))
	})

	It("gives up after a single refresh when the platform still rejects", func() {
		expired := now.Add(-time.Minute)
		conn.ExpiresAt = &expired
		provider.fetchFn = func(ctx context.Context, accessToken string, d platform.ResourceDescriptor) (*platform.Snapshot, error) {
			return nil, platform.ErrAuthExpired
		}

		_, err := facade.Fetch(ctx, userID, desc)

		Expect(errors.Is(err, platform.ErrAuthExpired)).To(BeTrue())
		Expect(refresher.calls).To(Equal(1), "exactly one refresh attempt per fetch")
	})

	It("maps a failed refresh to auth-expired", func() {
		expired := now.Add(-time.Minute)
		conn.ExpiresAt = &expired
		refresher.refreshFn = func(ctx context.Context, c *model.Connection) (string, *string, *time.Time, error) {
			return "", nil, nil, errors.New("identity service says no")
		}

		_, err := facade.Fetch(ctx, userID, desc)
		Expect(errors.Is(err, platform.ErrAuthExpired)).To(BeTrue())
		Expect(provider.tokens).To(BeEmpty())
	})

	It("maps a non-refreshable expired token to auth-expired", func() {
		expired := now.Add(-time.Minute)
		conn.ExpiresAt = &expired
		conn.RefreshToken = nil

		_, err := facade.Fetch(ctx, userID, desc)
		Expect(errors.Is(err, platform.ErrAuthExpired)).To(BeTrue())
		Expect(refresher.calls).To(BeZero())
	})

	It("passes transient provider failures through unmapped", func() {
		boom := &platform.TransientError{Op: "calendar fetch", StatusCode: 503, Err: errors.New("unavailable")}
		provider.fetchFn = func(ctx context.Context, accessToken string, d platform.ResourceDescriptor) (*platform.Snapshot, error) {
			return nil, boom
		}

		_, err := facade.Fetch(ctx, userID, desc)

		Expect(platform.IsTransient(err)).To(BeTrue())
		Expect(refresher.calls).To(BeZero())
	})
})
