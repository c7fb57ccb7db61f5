package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type SignalType string

const (
	SignalTypeMeetingUpcoming     SignalType = "meeting_upcoming"
	SignalTypeInboxSilence        SignalType = "inbox_silence"
	SignalTypeChannelDrift        SignalType = "channel_drift"
	SignalTypeConversationPattern SignalType = "conversation_pattern"
)

// ParseSignalType validates a raw signal type string.
// Unknown types fail here rather than deep inside the pipeline.
func ParseSignalType(raw string) (SignalType, error) {
	switch t := SignalType(raw); t {
	case SignalTypeMeetingUpcoming, SignalTypeInboxSilence, SignalTypeChannelDrift, SignalTypeConversationPattern:
		return t, nil
	default:
		return "", fmt.Errorf("unknown signal type %q", raw)
	}
}

// Signal is a transient observation derived from a platform snapshot.
// Signals live for one scheduler tick: they drive the ledger check and the
// reasoning gate and are never persisted as their own entity.
type Signal struct {
	Type       SignalType        `json:"type"`
	UserID     int64             `json:"user_id"`
	Reference  string            `json:"reference"` // opaque id scoped to the source platform (event id, thread id, channel id)
	ObservedAt time.Time         `json:"observed_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Ref returns a compact identifier used in logs and provenance records.
func (s Signal) Ref() string {
	return fmt.Sprintf("%s:%s", s.Type, s.Reference)
}

// MarshalRefs serializes signals into the compact provenance form stored on
// execution logs.
func MarshalRefs(signals []Signal) json.RawMessage {
	refs := make([]string, len(signals))
	for i, s := range signals {
		refs[i] = s.Ref()
	}
	data, _ := json.Marshal(refs)
	return data
}
