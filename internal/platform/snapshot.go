package platform

import (
	"time"

	"pulseworks.app/conductor/internal/model"
)

// ResourceKind identifies what to read from a platform.
type ResourceKind string

const (
	ResourceCalendarEvents  ResourceKind = "calendar_events"
	ResourceInboxThreads    ResourceKind = "inbox_threads"
	ResourceChannelActivity ResourceKind = "channel_activity"
	ResourceDocument        ResourceKind = "document"
)

// ResourceDescriptor names one platform resource to fetch. Reference is
// resource-specific (a channel id, a document id); Window bounds lookback for
// activity-style resources and is ignored otherwise.
type ResourceDescriptor struct {
	Platform  model.PlatformKind
	Kind      ResourceKind
	Reference string
	Window    time.Duration
}

// Snapshot is a point-in-time read of one platform resource. Exactly one of
// the typed payloads is set, matching Kind.
type Snapshot struct {
	Platform  model.PlatformKind `json:"platform"`
	Kind      ResourceKind       `json:"kind"`
	Reference string             `json:"reference,omitempty"`
	FetchedAt time.Time          `json:"fetched_at"`

	Calendar *CalendarSnapshot `json:"calendar,omitempty"`
	Inbox    *InboxSnapshot    `json:"inbox,omitempty"`
	Channel  *ChannelSnapshot  `json:"channel,omitempty"`
	Document *DocumentSnapshot `json:"document,omitempty"`
}

type CalendarSnapshot struct {
	Events []CalendarEvent `json:"events"`
}

type CalendarEvent struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    time.Time  `json:"ends_at"`
	Attendees []Attendee `json:"attendees"`
	// DocumentIDs are agendas and notes the calendar platform attaches to
	// the event; generation follows them for extra context.
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// ExternalAttendees counts attendees outside the user's organization.
func (e CalendarEvent) ExternalAttendees() int {
	n := 0
	for _, a := range e.Attendees {
		if a.External {
			n++
		}
	}
	return n
}

type Attendee struct {
	Email    string `json:"email"`
	External bool   `json:"external"`
}

type InboxSnapshot struct {
	Threads []MailThread `json:"threads"`
}

type MailThread struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	LastInboundAt time.Time `json:"last_inbound_at"`
	// AwaitingReply is set by the mail platform when the latest message in the
	// thread is inbound and unanswered.
	AwaitingReply bool     `json:"awaiting_reply"`
	Participants  []string `json:"participants"`
}

type ChannelSnapshot struct {
	Channels []ChannelActivity `json:"channels"`
}

type ChannelActivity struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	LastMessageAt  time.Time        `json:"last_message_at"`
	MemberCount    int              `json:"member_count"`
	RecentMessages []ChannelMessage `json:"recent_messages,omitempty"`
}

type ChannelMessage struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

type DocumentSnapshot struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
