package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel/trace"
)

// EventType names a version lifecycle transition worth telling the outside
// world about. The dashboard consumes staged events to surface review items;
// the preference-learning pipeline consumes approved/rejected.
type EventType string

const (
	EventVersionStaged   EventType = "version.staged"
	EventVersionApproved EventType = "version.approved"
	EventVersionRejected EventType = "version.rejected"
)

type Event struct {
	Type          EventType
	UserID        int64
	DeliverableID int64
	VersionID     int64
	VersionNumber int
	OccurredAt    time.Time
}

// Producer publishes lifecycle events. Publishing is best effort at call
// sites: a dropped notification never rolls back the state transition it
// announces.
type Producer interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Publish(ctx context.Context, event Event) error {
	fields := map[string]any{
		"type":           string(event.Type),
		"user_id":        event.UserID,
		"deliverable_id": event.DeliverableID,
		"version_id":     event.VersionID,
		"version_number": event.VersionNumber,
		"occurred_at":    event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", event.Type, err)
	}

	p.logger.InfoContext(ctx, "published lifecycle event",
		"type", event.Type,
		"deliverable_id", event.DeliverableID,
		"version_id", event.VersionID)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
