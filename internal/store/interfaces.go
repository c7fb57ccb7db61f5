package store

import (
	"context"
	"errors"
	"time"

	"pulseworks.app/conductor/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	// ListWithActiveConnections returns users with at least one active
	// platform connection: the scheduler's per-tick population.
	ListWithActiveConnections(ctx context.Context) ([]model.User, error)
}

// ConnectionStore defines the contract for platform connection data access
type ConnectionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Connection, error)
	GetByUserAndPlatform(ctx context.Context, userID int64, platform model.PlatformKind) (*model.Connection, error)
	Create(ctx context.Context, conn *model.Connection) error
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Connection, error)
	UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt *time.Time) error
	MarkRevoked(ctx context.Context, id int64) error
}

// DeliverableStore defines the contract for deliverable data access
type DeliverableStore interface {
	GetByID(ctx context.Context, id int64) (*model.Deliverable, error)
	Create(ctx context.Context, d *model.Deliverable) error
	ListByUser(ctx context.Context, userID int64) ([]model.Deliverable, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Deliverable, error)
	// FindActiveBySource locates an active deliverable of the given type for
	// the exact platform resource; backs the gate's duplicate-suppression rule.
	FindActiveBySource(ctx context.Context, userID int64, typ model.DeliverableType, sourceRef string) (*model.Deliverable, error)
	// UpdateStatus moves a deliverable between statuses; it returns
	// ErrNotFound when the deliverable is not currently in `from`.
	UpdateStatus(ctx context.Context, id int64, from, to model.DeliverableStatus) error
}

// VersionStore defines the contract for deliverable version data access.
// Versions are append-only; mutation is limited to lifecycle transitions,
// each of which is a conditional update so legality is enforced at the row.
type VersionStore interface {
	GetByID(ctx context.Context, id int64) (*model.DeliverableVersion, error)
	// CreateGenerating inserts a new version in generating status with the
	// next monotonic version number for the deliverable.
	CreateGenerating(ctx context.Context, id, deliverableID int64) (*model.DeliverableVersion, error)
	// ListByDeliverable returns versions ordered by version number descending.
	ListByDeliverable(ctx context.Context, deliverableID int64, limit int32) ([]model.DeliverableVersion, error)

	// MarkStaged transitions generating -> staged. Returns ErrNotFound when
	// the version is not currently generating.
	MarkStaged(ctx context.Context, id int64, draft string, provenance []byte, deliveredAt time.Time) (*model.DeliverableVersion, error)
	// MarkFailed transitions generating -> failed, retaining the error.
	MarkFailed(ctx context.Context, id int64, deliveryError string) (*model.DeliverableVersion, error)
	// Approve transitions staged -> approved with optional edited content.
	Approve(ctx context.Context, id int64, finalContent *string) (*model.DeliverableVersion, error)
	// Reject transitions staged -> rejected with a required reason.
	Reject(ctx context.Context, id int64, reason string) (*model.DeliverableVersion, error)

	// ReclaimStuck marks versions stuck in generating since before the cutoff
	// as failed, returning the ids it reclaimed.
	ReclaimStuck(ctx context.Context, cutoff time.Time, reason string) ([]int64, error)
}

// LedgerStore is the deduplication ledger. TryAcquire is the single
// check-and-record operation: it must be atomic so two concurrent calls for
// the same key cannot both be allowed within one cooldown window.
type LedgerStore interface {
	TryAcquire(ctx context.Context, userID int64, signalType model.SignalType, reference string, now time.Time, cooldown time.Duration) (model.LedgerDecision, error)
	// RecordOutcome links the entry to the deliverable it produced. Best
	// effort: the suppression guarantee stands even if this never runs.
	RecordOutcome(ctx context.Context, userID int64, signalType model.SignalType, reference string, deliverableID int64) error
	Get(ctx context.Context, userID int64, signalType model.SignalType, reference string) (*model.DedupRecord, error)
}

// ExecutionLogStore is append-only.
type ExecutionLogStore interface {
	Create(ctx context.Context, entry *model.ExecutionLog) error
	ListByDeliverable(ctx context.Context, deliverableID int64, limit int32) ([]model.ExecutionLog, error)
}

// SessionStore defines the contract for interaction session access
type SessionStore interface {
	Create(ctx context.Context, s *model.InteractionSession) error
	ListRecentByUser(ctx context.Context, userID int64, since time.Time, limit int32) ([]model.InteractionSession, error)
}
