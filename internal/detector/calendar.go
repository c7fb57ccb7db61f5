package detector

import (
	"strconv"
	"time"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

// CalendarProximity flags upcoming meetings that look worth preparing for:
// starting within the lead window, with enough external attendees that the
// user is likely presenting or negotiating rather than just attending.
type CalendarProximity struct {
	LeadWindow           time.Duration
	MinExternalAttendees int
}

func NewCalendarProximity(leadWindow time.Duration, minExternalAttendees int) *CalendarProximity {
	return &CalendarProximity{
		LeadWindow:           leadWindow,
		MinExternalAttendees: minExternalAttendees,
	}
}

func (d *CalendarProximity) Type() model.SignalType {
	return model.SignalTypeMeetingUpcoming
}

func (d *CalendarProximity) Descriptor() platform.ResourceDescriptor {
	return platform.ResourceDescriptor{
		Platform: model.PlatformCalendar,
		Kind:     platform.ResourceCalendarEvents,
		Window:   d.LeadWindow,
	}
}

func (d *CalendarProximity) Detect(snap *platform.Snapshot, userID int64, now time.Time) []model.Signal {
	if snap == nil || snap.Calendar == nil {
		return nil
	}

	var signals []model.Signal
	for _, event := range snap.Calendar.Events {
		if !event.StartsAt.After(now) {
			continue // already started or past
		}
		if event.StartsAt.After(now.Add(d.LeadWindow)) {
			continue
		}
		external := event.ExternalAttendees()
		if external < d.MinExternalAttendees {
			continue
		}

		signals = append(signals, model.Signal{
			Type:       model.SignalTypeMeetingUpcoming,
			UserID:     userID,
			Reference:  event.ID,
			ObservedAt: now,
			Attributes: map[string]string{
				"title":              event.Title,
				"starts_at":          event.StartsAt.Format(time.RFC3339),
				"external_attendees": strconv.Itoa(external),
			},
		})
	}
	return signals
}
