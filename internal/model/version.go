package model

import (
	"encoding/json"
	"time"
)

type VersionStatus string

const (
	VersionStatusGenerating VersionStatus = "generating"
	VersionStatusStaged     VersionStatus = "staged"
	VersionStatusFailed     VersionStatus = "failed"
	VersionStatusApproved   VersionStatus = "approved"
	VersionStatusRejected   VersionStatus = "rejected"
)

// legalTransitions is the full transition set for the version lifecycle.
// approved, rejected and failed are terminal: a new generation attempt always
// starts a new version at generating.
var legalTransitions = map[VersionStatus][]VersionStatus{
	VersionStatusGenerating: {VersionStatusStaged, VersionStatusFailed},
	VersionStatusStaged:     {VersionStatusApproved, VersionStatusRejected},
}

// CanTransition reports whether from -> to is a legal version transition.
func CanTransition(from, to VersionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a version in this status can never change again.
func (s VersionStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// DeliverableVersion is one concrete generation attempt for a deliverable.
// Versions are append-only: they are the audit trail for what informed each
// output and are never deleted.
type DeliverableVersion struct {
	ID            int64         `json:"id"`
	DeliverableID int64         `json:"deliverable_id"`
	VersionNumber int           `json:"version_number"` // monotonic per deliverable
	Status        VersionStatus `json:"status"`

	DraftContent *string `json:"draft_content,omitempty"`
	FinalContent *string `json:"final_content,omitempty"` // set on approve, possibly user-edited

	// Provenance records which source resources fed the generation.
	Provenance json.RawMessage `json:"provenance,omitempty"`

	DeliveryError *string `json:"delivery_error,omitempty"`

	// RejectionReason is required on the staged -> rejected transition so the
	// preference-learning loop has signal to avoid repeating the same miss.
	RejectionReason *string `json:"rejection_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
