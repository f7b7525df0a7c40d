package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/posflow/posflow/internal/eventstore/domain"
	"github.com/posflow/posflow/internal/metrics"
)

// eventStoreWithMetrics decorates EventStore with metrics instrumentation.
type eventStoreWithMetrics struct {
	next    EventStore
	metrics metrics.BusinessMetrics
}

// NewEventStoreWithMetrics wraps an EventStore with metrics recording.
func NewEventStoreWithMetrics(store EventStore, m metrics.BusinessMetrics) EventStore {
	return &eventStoreWithMetrics{
		next:    store,
		metrics: m,
	}
}

// record emits the operation counter and duration with a success/error status.
func (s *eventStoreWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(ctx, "eventstore", operation, status)
	s.metrics.RecordDuration(ctx, "eventstore", operation, time.Since(start), status)
}

func (s *eventStoreWithMetrics) Append(
	ctx context.Context,
	envelope domain.AppendEnvelope,
) (*domain.StoredEvent, error) {
	start := time.Now()
	stored, err := s.next.Append(ctx, envelope)
	s.record(ctx, "append", start, err)
	return stored, err
}

func (s *eventStoreWithMetrics) GetEvents(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	start := time.Now()
	events, err := s.next.GetEvents(ctx, aggregateID, aggregateType)
	s.record(ctx, "get_events", start, err)
	return events, err
}

func (s *eventStoreWithMetrics) GetEventsUpcasted(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	start := time.Now()
	events, err := s.next.GetEventsUpcasted(ctx, aggregateID, aggregateType)
	s.record(ctx, "get_events_upcasted", start, err)
	return events, err
}

func (s *eventStoreWithMetrics) GetEventsByType(
	ctx context.Context,
	eventType string,
	since *time.Time,
) ([]domain.StoredEvent, error) {
	start := time.Now()
	events, err := s.next.GetEventsByType(ctx, eventType, since)
	s.record(ctx, "get_events_by_type", start, err)
	return events, err
}

func (s *eventStoreWithMetrics) Replay(
	ctx context.Context,
	aggregateID string,
	reducer domain.Reducer,
	initial any,
	aggregateType string,
) (*domain.AggregateState, error) {
	start := time.Now()
	state, err := s.next.Replay(ctx, aggregateID, reducer, initial, aggregateType)
	s.record(ctx, "replay", start, err)
	return state, err
}

func (s *eventStoreWithMetrics) RegisterUpcaster(upcaster domain.Upcaster) {
	s.next.RegisterUpcaster(upcaster)
}

func (s *eventStoreWithMetrics) RegisterUpcasters(upcasters []domain.Upcaster) {
	s.next.RegisterUpcasters(upcasters)
}

func (s *eventStoreWithMetrics) RegisterMigration(migration domain.Migration) {
	s.next.RegisterMigration(migration)
}

func (s *eventStoreWithMetrics) MigrateEvents(
	ctx context.Context,
	filter domain.MigrationFilter,
) (*domain.MigrationResult, error) {
	start := time.Now()
	result, err := s.next.MigrateEvents(ctx, filter)
	s.record(ctx, "migrate_events", start, err)
	return result, err
}

func (s *eventStoreWithMetrics) SaveSnapshot(
	ctx context.Context,
	request domain.SnapshotRequest,
) (*domain.Snapshot, error) {
	start := time.Now()
	snapshot, err := s.next.SaveSnapshot(ctx, request)
	s.record(ctx, "save_snapshot", start, err)
	return snapshot, err
}

func (s *eventStoreWithMetrics) GetLatestSnapshot(
	ctx context.Context,
	aggregateID, aggregateType string,
) (*domain.Snapshot, error) {
	start := time.Now()
	snapshot, err := s.next.GetLatestSnapshot(ctx, aggregateID, aggregateType)
	s.record(ctx, "get_latest_snapshot", start, err)
	return snapshot, err
}

func (s *eventStoreWithMetrics) GetSnapshots(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.Snapshot, error) {
	start := time.Now()
	snapshots, err := s.next.GetSnapshots(ctx, aggregateID, aggregateType)
	s.record(ctx, "get_snapshots", start, err)
	return snapshots, err
}

func (s *eventStoreWithMetrics) PruneSnapshots(
	ctx context.Context,
	aggregateID, aggregateType string,
	keepCount int,
) (int, error) {
	start := time.Now()
	deleted, err := s.next.PruneSnapshots(ctx, aggregateID, aggregateType, keepCount)
	s.record(ctx, "prune_snapshots", start, err)
	return deleted, err
}

func (s *eventStoreWithMetrics) ReplayFromSnapshot(
	ctx context.Context,
	aggregateID string,
	reducer domain.Reducer,
	aggregateType string,
) (*domain.AggregateState, error) {
	start := time.Now()
	state, err := s.next.ReplayFromSnapshot(ctx, aggregateID, reducer, aggregateType)
	s.record(ctx, "replay_from_snapshot", start, err)
	return state, err
}

func (s *eventStoreWithMetrics) ReplayWithSnapshot(
	ctx context.Context,
	aggregateID string,
	reducer domain.Reducer,
	aggregateType string,
	threshold int,
) (*domain.AggregateState, error) {
	start := time.Now()
	state, err := s.next.ReplayWithSnapshot(ctx, aggregateID, reducer, aggregateType, threshold)
	s.record(ctx, "replay_with_snapshot", start, err)
	return state, err
}

func (s *eventStoreWithMetrics) StreamEvents(
	ctx context.Context,
	aggregateID, aggregateType string,
	batchSize int,
) iter.Seq2[[]domain.StoredEvent, error] {
	return s.next.StreamEvents(ctx, aggregateID, aggregateType, batchSize)
}
