package detector_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseworks.app/conductor/internal/detector"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const userID = int64(7001)

var _ = Describe("CalendarProximity", func() {
	var d *detector.CalendarProximity

	BeforeEach(func() {
		d = detector.NewCalendarProximity(4*time.Hour, 1)
	})

	event := func(id string, startsIn time.Duration, external int) platform.CalendarEvent {
		attendees := []platform.Attendee{{Email: "me@pulseworks.app"}}
		for i := 0; i < external; i++ {
			attendees = append(attendees, platform.Attendee{Email: "guest@example.com", External: true})
		}
		return platform.CalendarEvent{
			ID:        id,
			Title:     "Sync " + id,
			StartsAt:  now.Add(startsIn),
			Attendees: attendees,
		}
	}

	It("flags a meeting inside the lead window with external attendees", func() {
		snap := &platform.Snapshot{Calendar: &platform.CalendarSnapshot{
			Events: []platform.CalendarEvent{event("evt-1", 2*time.Hour, 2)},
		}}

		signals := d.Detect(snap, userID, now)

		Expect(signals).To(HaveLen(1))
		Expect(signals[0].Type).To(Equal(model.SignalTypeMeetingUpcoming))
		Expect(signals[0].Reference).To(Equal("evt-1"))
		Expect(signals[0].UserID).To(Equal(userID))
		Expect(signals[0].Attributes["external_attendees"]).To(Equal("2"))
	})

	It("ignores meetings beyond the lead window", func() {
		snap := &platform.Snapshot{Calendar: &platform.CalendarSnapshot{
			Events: []platform.CalendarEvent{event("evt-far", 6*time.Hour, 2)},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})

	It("ignores meetings that already started", func() {
		snap := &platform.Snapshot{Calendar: &platform.CalendarSnapshot{
			Events: []platform.CalendarEvent{event("evt-past", -30*time.Minute, 2)},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})

	It("ignores internal-only meetings", func() {
		snap := &platform.Snapshot{Calendar: &platform.CalendarSnapshot{
			Events: []platform.CalendarEvent{event("evt-int", time.Hour, 0)},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})

	It("includes a meeting starting exactly at the window edge", func() {
		snap := &platform.Snapshot{Calendar: &platform.CalendarSnapshot{
			Events: []platform.CalendarEvent{event("evt-edge", 4*time.Hour, 1)},
		}}
		Expect(d.Detect(snap, userID, now)).To(HaveLen(1))
	})

	It("handles a nil snapshot payload", func() {
		Expect(d.Detect(nil, userID, now)).To(BeEmpty())
		Expect(d.Detect(&platform.Snapshot{}, userID, now)).To(BeEmpty())
	})
})

var _ = Describe("InboxSilence", func() {
	var d *detector.InboxSilence

	BeforeEach(func() {
		d = detector.NewInboxSilence(48 * time.Hour)
	})

	It("flags a thread awaiting reply past the silence threshold", func() {
		snap := &platform.Snapshot{Inbox: &platform.InboxSnapshot{
			Threads: []platform.MailThread{{
				ID:            "thr-1",
				Subject:       "Contract review",
				LastInboundAt: now.Add(-72 * time.Hour),
				AwaitingReply: true,
			}},
		}}

		signals := d.Detect(snap, userID, now)

		Expect(signals).To(HaveLen(1))
		Expect(signals[0].Type).To(Equal(model.SignalTypeInboxSilence))
		Expect(signals[0].Reference).To(Equal("thr-1"))
		Expect(signals[0].Attributes["silent_hours"]).To(Equal("72"))
	})

	It("ignores threads not awaiting a reply", func() {
		snap := &platform.Snapshot{Inbox: &platform.InboxSnapshot{
			Threads: []platform.MailThread{{
				ID:            "thr-2",
				LastInboundAt: now.Add(-72 * time.Hour),
				AwaitingReply: false,
			}},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})

	It("ignores threads still inside the threshold", func() {
		snap := &platform.Snapshot{Inbox: &platform.InboxSnapshot{
			Threads: []platform.MailThread{{
				ID:            "thr-3",
				LastInboundAt: now.Add(-12 * time.Hour),
				AwaitingReply: true,
			}},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})

	It("ignores threads with no inbound timestamp", func() {
		snap := &platform.Snapshot{Inbox: &platform.InboxSnapshot{
			Threads: []platform.MailThread{{ID: "thr-4", AwaitingReply: true}},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})
})

var _ = Describe("ChannelDrift", func() {
	var d *detector.ChannelDrift

	BeforeEach(func() {
		d = detector.NewChannelDrift(5 * 24 * time.Hour)
	})

	It("flags channels quiet past the threshold", func() {
		snap := &platform.Snapshot{Channel: &platform.ChannelSnapshot{
			Channels: []platform.ChannelActivity{{
				ID:            "ch-1",
				Name:          "proj-atlas",
				LastMessageAt: now.Add(-8 * 24 * time.Hour),
			}},
		}}

		signals := d.Detect(snap, userID, now)

		Expect(signals).To(HaveLen(1))
		Expect(signals[0].Type).To(Equal(model.SignalTypeChannelDrift))
		Expect(signals[0].Reference).To(Equal("ch-1"))
		Expect(signals[0].Attributes["quiet_days"]).To(Equal("8"))
	})

	It("ignores recently active channels", func() {
		snap := &platform.Snapshot{Channel: &platform.ChannelSnapshot{
			Channels: []platform.ChannelActivity{{
				ID:            "ch-2",
				LastMessageAt: now.Add(-24 * time.Hour),
			}},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})

	It("ignores channels with no activity history", func() {
		snap := &platform.Snapshot{Channel: &platform.ChannelSnapshot{
			Channels: []platform.ChannelActivity{{ID: "ch-3", Name: "empty"}},
		}}
		Expect(d.Detect(snap, userID, now)).To(BeEmpty())
	})
})
