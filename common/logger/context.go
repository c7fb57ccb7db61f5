package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment, so business context
// (user_id, deliverable_id, ...) shows up in every log statement downstream
// of the point that set it.
type LogFields struct {
	UserID        *int64  // user whose pipeline is running
	DeliverableID *int64  // deliverable being generated or reviewed
	VersionID     *int64  // deliverable version in flight
	SignalType    *string // signal type driving the current decision
	TickID        *string // scheduler tick identifier
	Component     string  // component name, e.g. "conductor.scheduler"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.DeliverableID != nil {
		result.DeliverableID = next.DeliverableID
	}
	if next.VersionID != nil {
		result.VersionID = next.VersionID
	}
	if next.SignalType != nil {
		result.SignalType = next.SignalType
	}
	if next.TickID != nil {
		result.TickID = next.TickID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like prompts or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
