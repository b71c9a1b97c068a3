// Package store defines the persistence interfaces for the delivery engine
// and the data types they exchange. Implementations live in store/pg
// (managed mode, Postgres), store/sqlite (standalone mode) and store/memory
// (tests, dry runs).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups when the referenced row does not exist.
var ErrNotFound = errors.New("not found")

// QueueStore is the durable, append-mostly store of inbound requests.
type QueueStore interface {
	// Enqueue inserts a new request in pending state.
	Enqueue(ctx context.Context, req *QueuedRequest) error

	// Get returns a request by id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*QueuedRequest, error)

	// List returns up to limit requests matching any of the given statuses,
	// newest first. Empty statuses means all.
	List(ctx context.Context, statuses []RequestStatus, limit int) ([]QueuedRequest, error)

	// ClaimPending atomically transitions up to limit pending requests to
	// processing, FIFO by created_at, and returns the claimed rows. This is
	// the only pending→processing transition.
	ClaimPending(ctx context.Context, limit int) ([]QueuedRequest, error)

	// MarkCompleted finalizes a processing request as completed.
	MarkCompleted(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// MarkFailed finalizes a processing request as failed with the captured error.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error

	// ReclaimStuck returns requests stuck in processing for longer than
	// olderThan back to pending and reports how many were reclaimed.
	// Evaluation idempotency makes the re-run safe.
	ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error)

	// CountByStatus reports row counts per status.
	CountByStatus(ctx context.Context) (map[RequestStatus]int, error)
}

// ConfigStore holds per-conversation admission policy. GetPrioritization
// returns (nil, nil) when no row exists; callers substitute the system default.
type ConfigStore interface {
	GetPrioritization(ctx context.Context, conversationID string) (*PrioritizationConfig, error)
	PutPrioritization(ctx context.Context, cfg *PrioritizationConfig) error
	DeletePrioritization(ctx context.Context, conversationID string) error
}

// EvaluationStore is the append-only admission audit trail.
type EvaluationStore interface {
	// Insert records an evaluation. The (request, recipient) pair is unique;
	// when a row already exists the insert is skipped and inserted=false is
	// returned, making concurrent or repeated processing idempotent.
	Insert(ctx context.Context, ev *Evaluation) (inserted bool, err error)

	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Evaluation, error)
}

// DeliveryStore is the append-only forwarding audit trail.
type DeliveryStore interface {
	Insert(ctx context.Context, rec *DeliveryRecord) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]DeliveryRecord, error)
	ListBySource(ctx context.Context, source string, limit int) ([]DeliveryRecord, error)
}

// RecipientStore is the conversation directory used for target resolution.
type RecipientStore interface {
	// ByUserID and ByPhone return ErrNotFound for unknown identities.
	ByUserID(ctx context.Context, userID string) (*Recipient, error)
	ByPhone(ctx context.Context, phone string) (*Recipient, error)
	ByConversation(ctx context.Context, conversationID string) (*Recipient, error)

	// AllOptedIn returns every opted-in recipient (global targets).
	AllOptedIn(ctx context.Context) ([]Recipient, error)

	// SegmentMembers returns the recipients belonging to a segment.
	// An unknown segment yields an empty result, not an error.
	SegmentMembers(ctx context.Context, segmentID string) ([]Recipient, error)
}

// Stores bundles all store implementations for one backend.
type Stores struct {
	Queue       QueueStore
	Config      ConfigStore
	Evaluations EvaluationStore
	Deliveries  DeliveryStore
	Recipients  RecipientStore
}
