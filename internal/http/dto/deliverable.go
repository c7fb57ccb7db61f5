package dto

import (
	"encoding/json"
	"time"

	"pulseworks.app/conductor/internal/model"
)

type CreateDeliverableRequest struct {
	Title    string  `json:"title" binding:"required,min=1,max=255"`
	Type     string  `json:"type" binding:"required"`
	Schedule *string `json:"schedule,omitempty" binding:"omitempty,max=255"`
}

type ApproveVersionRequest struct {
	// FinalContent carries the user's edits; omitted means approve as drafted.
	FinalContent *string `json:"final_content,omitempty"`
}

type RejectVersionRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=2000"`
}

type DeliverableResponse struct {
	ID              int64   `json:"id,string"`
	Title           string  `json:"title"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	Origin          string  `json:"origin"`
	Schedule        *string `json:"schedule,omitempty"`
	SourceReference *string `json:"source_reference,omitempty"`
	Rationale       *string `json:"rationale,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToDeliverableResponse(d *model.Deliverable) *DeliverableResponse {
	return &DeliverableResponse{
		ID:              d.ID,
		Title:           d.Title,
		Type:            string(d.Type),
		Status:          string(d.Status),
		Origin:          string(d.Origin),
		Schedule:        d.Schedule,
		SourceReference: d.SourceReference,
		Rationale:       d.Rationale,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func ToDeliverableResponses(ds []model.Deliverable) []*DeliverableResponse {
	out := make([]*DeliverableResponse, len(ds))
	for i := range ds {
		out[i] = ToDeliverableResponse(&ds[i])
	}
	return out
}

type VersionResponse struct {
	ID            int64  `json:"id,string"`
	DeliverableID int64  `json:"deliverable_id,string"`
	VersionNumber int    `json:"version_number"`
	Status        string `json:"status"`

	DraftContent    *string         `json:"draft_content,omitempty"`
	FinalContent    *string         `json:"final_content,omitempty"`
	Provenance      json.RawMessage `json:"provenance,omitempty"`
	DeliveryError   *string         `json:"delivery_error,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

func ToVersionResponse(v *model.DeliverableVersion) *VersionResponse {
	return &VersionResponse{
		ID:              v.ID,
		DeliverableID:   v.DeliverableID,
		VersionNumber:   v.VersionNumber,
		Status:          string(v.Status),
		DraftContent:    v.DraftContent,
		FinalContent:    v.FinalContent,
		Provenance:      v.Provenance,
		DeliveryError:   v.DeliveryError,
		RejectionReason: v.RejectionReason,
		CreatedAt:       v.CreatedAt,
		DeliveredAt:     v.DeliveredAt,
	}
}

func ToVersionResponses(vs []model.DeliverableVersion) []*VersionResponse {
	out := make([]*VersionResponse, len(vs))
	for i := range vs {
		out[i] = ToVersionResponse(&vs[i])
	}
	return out
}
