// Package usecase implements the event store business logic: versioned
// append, ordered reads, read-time upcasting, destructive migrations,
// snapshotting and replay.
package usecase

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/eventstore/domain"
)

// EventRepository defines the persistence operations the store needs for
// stored events. Any engine offering insert-with-uniqueness, ascending range
// queries, update-by-id and delete-by-id-set suffices.
type EventRepository interface {
	Insert(ctx context.Context, event *domain.StoredEvent) error
	MaxVersion(ctx context.Context, aggregateType, aggregateID string) (uint, error)
	GetByAggregate(ctx context.Context, aggregateID, aggregateType string) ([]domain.StoredEvent, error)
	GetAfterVersion(ctx context.Context, aggregateID, aggregateType string, version uint) ([]domain.StoredEvent, error)
	GetByType(ctx context.Context, eventType string, since *time.Time) ([]domain.StoredEvent, error)
	GetPage(ctx context.Context, aggregateID, aggregateType string, offset, limit int) ([]domain.StoredEvent, error)
	ListForMigration(ctx context.Context, filter domain.MigrationFilter) ([]domain.StoredEvent, error)
	CountByAggregate(ctx context.Context, aggregateID, aggregateType string) (int, error)
	UpdateData(ctx context.Context, id uuid.UUID, eventData, metadata json.RawMessage) error
}

// SnapshotRepository defines the persistence operations for snapshots.
type SnapshotRepository interface {
	Insert(ctx context.Context, snapshot *domain.Snapshot) error
	GetLatest(ctx context.Context, aggregateID, aggregateType string) (*domain.Snapshot, error)
	List(ctx context.Context, aggregateID, aggregateType string) ([]domain.Snapshot, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error)
}

// EventStore defines the store's business operations.
//
// Append storage failures propagate to the caller; upcast and migration
// failures are collected per item and never abort a batch. Replay operations
// are read-only except for the snapshot writes of ReplayWithSnapshot.
type EventStore interface {
	// Append persists the envelope with version currentMax+1 for its
	// aggregate. Concurrent appends to the same aggregate are serialized;
	// a lost race returns domain.ErrVersionConflict, which the caller may
	// retry.
	Append(ctx context.Context, envelope domain.AppendEnvelope) (*domain.StoredEvent, error)

	// GetEvents returns the aggregate's raw events ascending by version.
	// An empty aggregateType matches any type.
	GetEvents(ctx context.Context, aggregateID, aggregateType string) ([]domain.StoredEvent, error)

	// GetEventsUpcasted returns the aggregate's events with all registered
	// upcasters applied.
	GetEventsUpcasted(ctx context.Context, aggregateID, aggregateType string) ([]domain.StoredEvent, error)

	// GetEventsByType returns events of one type across aggregates ascending
	// by time, optionally bounded below by since. Used for analytics and
	// backfill, not per-aggregate replay.
	GetEventsByType(ctx context.Context, eventType string, since *time.Time) ([]domain.StoredEvent, error)

	// Replay folds the aggregate's upcasted events through reducer starting
	// from initial. The result's Version is the version of the last applied
	// event, 0 if none.
	Replay(
		ctx context.Context,
		aggregateID string,
		reducer domain.Reducer,
		initial any,
		aggregateType string,
	) (*domain.AggregateState, error)

	// RegisterUpcaster registers a read-time event transformation.
	RegisterUpcaster(upcaster domain.Upcaster)
	// RegisterUpcasters registers several upcasters at once.
	RegisterUpcasters(upcasters []domain.Upcaster)

	// RegisterMigration registers a destructive schema rewrite rule.
	RegisterMigration(migration domain.Migration)
	// MigrateEvents rewrites matching stored events through the registered
	// migrations, best effort: per-event failures are collected, never fatal.
	MigrateEvents(ctx context.Context, filter domain.MigrationFilter) (*domain.MigrationResult, error)

	// SaveSnapshot persists a checkpoint of reduced aggregate state.
	SaveSnapshot(ctx context.Context, request domain.SnapshotRequest) (*domain.Snapshot, error)
	// GetLatestSnapshot returns the most recent snapshot for the aggregate.
	GetLatestSnapshot(ctx context.Context, aggregateID, aggregateType string) (*domain.Snapshot, error)
	// GetSnapshots returns every snapshot for the aggregate, newest first.
	GetSnapshots(ctx context.Context, aggregateID, aggregateType string) ([]domain.Snapshot, error)
	// PruneSnapshots deletes all but the keepCount most recent snapshots,
	// returning how many were deleted. A non-positive keepCount uses
	// domain.DefaultSnapshotKeep.
	PruneSnapshots(ctx context.Context, aggregateID, aggregateType string, keepCount int) (int, error)

	// ReplayFromSnapshot loads the latest snapshot (falling back to a full
	// replay from empty state) and folds only the events past it. The
	// reducer state must round-trip through JSON for the snapshot path and
	// the full path to agree.
	ReplayFromSnapshot(
		ctx context.Context,
		aggregateID string,
		reducer domain.Reducer,
		aggregateType string,
	) (*domain.AggregateState, error)

	// ReplayWithSnapshot is the adaptive variant: below threshold total
	// events it replays in full without touching snapshots; at or above it
	// replays from the latest snapshot and, once threshold/2 events have
	// accumulated since that snapshot, writes a new one and prunes old ones.
	// A non-positive threshold uses domain.DefaultSnapshotThreshold.
	ReplayWithSnapshot(
		ctx context.Context,
		aggregateID string,
		reducer domain.Reducer,
		aggregateType string,
		threshold int,
	) (*domain.AggregateState, error)

	// StreamEvents yields the aggregate's upcasted events in batches of
	// batchSize via offset pagination, terminating on an empty or short
	// batch. A non-positive batchSize uses DefaultStreamBatchSize.
	StreamEvents(
		ctx context.Context,
		aggregateID, aggregateType string,
		batchSize int,
	) iter.Seq2[[]domain.StoredEvent, error]
}
