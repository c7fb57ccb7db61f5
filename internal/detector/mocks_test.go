package detector_test

import (
	"context"

	"pulseworks.app/conductor/internal/platform"
)

type mockFetcher struct {
	fetchFn func(ctx context.Context, userID int64, desc platform.ResourceDescriptor) (*platform.Snapshot, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, userID int64, desc platform.ResourceDescriptor) (*platform.Snapshot, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, userID, desc)
	}
	return &platform.Snapshot{}, nil
}
