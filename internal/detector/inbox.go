package detector

import (
	"strconv"
	"time"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

// InboxSilence flags threads that have been waiting on the user's reply past
// the silence threshold. The mail platform decides what "awaiting reply"
// means; this detector only applies the time bound.
type InboxSilence struct {
	SilenceAfter time.Duration
}

func NewInboxSilence(silenceAfter time.Duration) *InboxSilence {
	return &InboxSilence{SilenceAfter: silenceAfter}
}

func (d *InboxSilence) Type() model.SignalType {
	return model.SignalTypeInboxSilence
}

func (d *InboxSilence) Descriptor() platform.ResourceDescriptor {
	return platform.ResourceDescriptor{
		Platform: model.PlatformMail,
		Kind:     platform.ResourceInboxThreads,
		Window:   d.SilenceAfter * 2,
	}
}

func (d *InboxSilence) Detect(snap *platform.Snapshot, userID int64, now time.Time) []model.Signal {
	if snap == nil || snap.Inbox == nil {
		return nil
	}

	cutoff := now.Add(-d.SilenceAfter)

	var signals []model.Signal
	for _, thread := range snap.Inbox.Threads {
		if !thread.AwaitingReply {
			continue
		}
		if thread.LastInboundAt.IsZero() || thread.LastInboundAt.After(cutoff) {
			continue
		}

		silentFor := now.Sub(thread.LastInboundAt)
		signals = append(signals, model.Signal{
			Type:       model.SignalTypeInboxSilence,
			UserID:     userID,
			Reference:  thread.ID,
			ObservedAt: now,
			Attributes: map[string]string{
				"subject":      thread.Subject,
				"silent_hours": strconv.Itoa(int(silentFor.Hours())),
			},
		})
	}
	return signals
}
