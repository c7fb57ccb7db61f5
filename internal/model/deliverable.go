package model

import (
	"fmt"
	"time"
)

type DeliverableType string

const (
	DeliverableTypeMeetingPrep   DeliverableType = "meeting_prep"
	DeliverableTypeFollowupDraft DeliverableType = "followup_draft"
	DeliverableTypeChannelDigest DeliverableType = "channel_digest"
	DeliverableTypeStatusReport  DeliverableType = "status_report"
)

// ParseDeliverableType validates a raw type string at construction time.
// The reasoning gate returns free-form model output, so everything crossing
// that boundary goes through here before it can reach the execution engine.
func ParseDeliverableType(raw string) (DeliverableType, error) {
	switch t := DeliverableType(raw); t {
	case DeliverableTypeMeetingPrep, DeliverableTypeFollowupDraft, DeliverableTypeChannelDigest, DeliverableTypeStatusReport:
		return t, nil
	default:
		return "", fmt.Errorf("unknown deliverable type %q", raw)
	}
}

type DeliverableStatus string

const (
	DeliverableStatusActive    DeliverableStatus = "active"
	DeliverableStatusPaused    DeliverableStatus = "paused"
	DeliverableStatusArchived  DeliverableStatus = "archived"
	DeliverableStatusSuggested DeliverableStatus = "suggested"
)

type DeliverableOrigin string

const (
	OriginManual           DeliverableOrigin = "manual"
	OriginScheduled        DeliverableOrigin = "scheduled"
	OriginSignalEmergent   DeliverableOrigin = "signal_emergent"
	OriginAnalystSuggested DeliverableOrigin = "analyst_suggested"
)

type Deliverable struct {
	ID     int64             `json:"id"`
	UserID int64             `json:"user_id"`
	Title  string            `json:"title"`
	Type   DeliverableType   `json:"type"`
	Status DeliverableStatus `json:"status"`
	Origin DeliverableOrigin `json:"origin"`

	// Schedule holds a cron expression for recurring deliverables, nil for one-offs.
	Schedule *string `json:"schedule,omitempty"`

	// SourceReference links a signal-emergent deliverable back to the platform
	// resource that produced it (event id, thread id). Used by the gate's
	// duplicate-suppression rule.
	SourceReference *string `json:"source_reference,omitempty"`

	// Rationale is the gate's (or analyzer's) explanation for why this
	// deliverable exists. Surfaced to the user on suggestions.
	Rationale *string `json:"rationale,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProposedAction is a candidate deliverable-creation decision produced by the
// reasoning gate. It is never persisted: it either clears the confidence
// threshold and becomes a deliverable plus a version, or it is discarded.
type ProposedAction struct {
	Signals          []Signal          `json:"signals"`
	DeliverableType  DeliverableType   `json:"deliverable_type"`
	Confidence       float64           `json:"confidence"`
	Rationale        string            `json:"rationale"`
	SuggestedTitle   string            `json:"suggested_title"`
	SuggestedContext map[string]string `json:"suggested_context,omitempty"`
}
