package model

import (
	"encoding/json"
	"time"
)

// ExecutionLog is the append-only record of one generation attempt's inputs
// and cost accounting. Write-once: used for debugging and downstream
// preference learning, never mutated.
type ExecutionLog struct {
	ID            int64 `json:"id"`
	UserID        int64 `json:"user_id"`
	DeliverableID int64 `json:"deliverable_id"`
	VersionID     int64 `json:"version_id"`

	// SignalRefs are the compact signal identifiers that triggered this run,
	// empty for manual and scheduled runs.
	SignalRefs json.RawMessage `json:"signal_refs,omitempty"`

	// Sources snapshots which platform resources were fetched for generation.
	Sources json.RawMessage `json:"sources,omitempty"`

	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`

	CreatedAt time.Time `json:"created_at"`
}
