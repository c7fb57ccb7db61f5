package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

// SnapshotFetcher is the platform facade seam.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, userID int64, desc platform.ResourceDescriptor) (*platform.Snapshot, error)
}

// SourceRef is the provenance record of one fetched resource.
type SourceRef struct {
	Platform  model.PlatformKind    `json:"platform"`
	Kind      platform.ResourceKind `json:"kind"`
	Reference string                `json:"reference,omitempty"`
	FetchedAt time.Time             `json:"fetched_at"`
}

// descriptorsFor maps a deliverable type to the resources its generation
// reads. The source reference scopes the primary resource; status reports
// read broadly.
func descriptorsFor(d *model.Deliverable, lookback time.Duration) []platform.ResourceDescriptor {
	ref := ""
	if d.SourceReference != nil {
		ref = *d.SourceReference
	}

	switch d.Type {
	case model.DeliverableTypeMeetingPrep:
		return []platform.ResourceDescriptor{
			{Platform: model.PlatformCalendar, Kind: platform.ResourceCalendarEvents, Reference: ref, Window: lookback},
		}
	case model.DeliverableTypeFollowupDraft:
		return []platform.ResourceDescriptor{
			{Platform: model.PlatformMail, Kind: platform.ResourceInboxThreads, Reference: ref, Window: lookback},
		}
	case model.DeliverableTypeChannelDigest:
		return []platform.ResourceDescriptor{
			{Platform: model.PlatformChat, Kind: platform.ResourceChannelActivity, Reference: ref, Window: lookback},
		}
	case model.DeliverableTypeStatusReport:
		return []platform.ResourceDescriptor{
			{Platform: model.PlatformCalendar, Kind: platform.ResourceCalendarEvents, Window: lookback},
			{Platform: model.PlatformMail, Kind: platform.ResourceInboxThreads, Window: lookback},
			{Platform: model.PlatformChat, Kind: platform.ResourceChannelActivity, Window: lookback},
		}
	default:
		return nil
	}
}

// gather fetches the deliverable's source resources concurrently. Individual
// fetch failures are tolerated; an error is returned only when nothing at all
// could be read, since generating from an empty context helps nobody.
func (e *Engine) gather(ctx context.Context, d *model.Deliverable) ([]*platform.Snapshot, []SourceRef, error) {
	descs := descriptorsFor(d, e.lookback)
	if len(descs) == 0 {
		return nil, nil, errors.New("no source resources for deliverable type")
	}

	snaps := make([]*platform.Snapshot, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range descs {
		g.Go(func() error {
			snap, err := e.fetcher.Fetch(gctx, d.UserID, desc)
			if err != nil {
				if errors.Is(err, platform.ErrAuthExpired) || platform.IsTransient(err) {
					slog.WarnContext(gctx, "source fetch skipped during generation",
						"error", err,
						"platform", desc.Platform,
						"kind", desc.Kind)
					return nil
				}
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []*platform.Snapshot
	var refs []SourceRef
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		out = append(out, snap)
		refs = append(refs, SourceRef{
			Platform:  snap.Platform,
			Kind:      snap.Kind,
			Reference: snap.Reference,
			FetchedAt: snap.FetchedAt,
		})
	}
	if len(out) == 0 {
		return nil, nil, errors.New("no source platform reachable")
	}

	docs, docRefs := e.gatherLinkedDocuments(ctx, d.UserID, out)
	out = append(out, docs...)
	refs = append(refs, docRefs...)
	return out, refs, nil
}

// maxLinkedDocuments bounds how many attached documents one generation reads.
const maxLinkedDocuments = 3

// gatherLinkedDocuments follows document attachments found on calendar
// events: the agenda or notes doc linked to a meeting. A document that cannot
// be read just narrows the context, same as any other source.
func (e *Engine) gatherLinkedDocuments(ctx context.Context, userID int64, snaps []*platform.Snapshot) ([]*platform.Snapshot, []SourceRef) {
	seen := make(map[string]bool)
	var ids []string
	for _, snap := range snaps {
		if snap.Calendar == nil {
			continue
		}
		for _, event := range snap.Calendar.Events {
			for _, docID := range event.DocumentIDs {
				if docID == "" || seen[docID] {
					continue
				}
				seen[docID] = true
				ids = append(ids, docID)
			}
		}
	}
	if len(ids) > maxLinkedDocuments {
		ids = ids[:maxLinkedDocuments]
	}

	var out []*platform.Snapshot
	var refs []SourceRef
	for _, docID := range ids {
		snap, err := e.fetcher.Fetch(ctx, userID, platform.ResourceDescriptor{
			Platform:  model.PlatformDocuments,
			Kind:      platform.ResourceDocument,
			Reference: docID,
		})
		if err != nil {
			slog.WarnContext(ctx, "linked document fetch skipped",
				"error", err,
				"document_id", docID)
			continue
		}
		out = append(out, snap)
		refs = append(refs, SourceRef{
			Platform:  snap.Platform,
			Kind:      snap.Kind,
			Reference: snap.Reference,
			FetchedAt: snap.FetchedAt,
		})
	}
	return out, refs
}
