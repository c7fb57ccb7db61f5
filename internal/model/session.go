package model

import "time"

// InteractionSession summarizes one interactive conversation between a user
// and the assistant. The conversation-pattern analyzer reads recent sessions
// to propose recurring deliverables.
type InteractionSession struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Topic        string    `json:"topic"`
	Summary      string    `json:"summary"`
	MessageCount int       `json:"message_count"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
}
