package detector

import (
	"strconv"
	"time"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

// ChannelDrift flags chat channels that have gone quiet past the threshold.
// A quiet channel the user belongs to often means a workstream that stalled
// and could use a digest or a status nudge.
type ChannelDrift struct {
	QuietAfter time.Duration
}

func NewChannelDrift(quietAfter time.Duration) *ChannelDrift {
	return &ChannelDrift{QuietAfter: quietAfter}
}

func (d *ChannelDrift) Type() model.SignalType {
	return model.SignalTypeChannelDrift
}

func (d *ChannelDrift) Descriptor() platform.ResourceDescriptor {
	return platform.ResourceDescriptor{
		Platform: model.PlatformChat,
		Kind:     platform.ResourceChannelActivity,
		Window:   d.QuietAfter * 2,
	}
}

func (d *ChannelDrift) Detect(snap *platform.Snapshot, userID int64, now time.Time) []model.Signal {
	if snap == nil || snap.Channel == nil {
		return nil
	}

	cutoff := now.Add(-d.QuietAfter)

	var signals []model.Signal
	for _, ch := range snap.Channel.Channels {
		if ch.LastMessageAt.IsZero() {
			continue // never-active channels are noise, not drift
		}
		if ch.LastMessageAt.After(cutoff) {
			continue
		}

		quietFor := now.Sub(ch.LastMessageAt)
		signals = append(signals, model.Signal{
			Type:       model.SignalTypeChannelDrift,
			UserID:     userID,
			Reference:  ch.ID,
			ObservedAt: now,
			Attributes: map[string]string{
				"channel":    ch.Name,
				"quiet_days": strconv.Itoa(int(quietFor.Hours() / 24)),
			},
		})
	}
	return signals
}
