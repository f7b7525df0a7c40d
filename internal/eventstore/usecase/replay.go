package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

// Replay folds the aggregate's upcasted events through reducer in version
// order. Pure given the same stored history and registered upcasters.
func (uc *eventStoreUseCase) Replay(
	ctx context.Context,
	aggregateID string,
	reducer domain.Reducer,
	initial any,
	aggregateType string,
) (*domain.AggregateState, error) {
	stored, err := uc.GetEventsUpcasted(ctx, aggregateID, aggregateType)
	if err != nil {
		return nil, err
	}
	return foldEvents(aggregateID, initial, 0, reducer, stored), nil
}

// SaveSnapshot persists a checkpoint of reduced aggregate state.
func (uc *eventStoreUseCase) SaveSnapshot(
	ctx context.Context,
	request domain.SnapshotRequest,
) (*domain.Snapshot, error) {
	if err := request.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	snapshot := &domain.Snapshot{
		ID:            uuid.Must(uuid.NewV7()),
		AggregateID:   request.AggregateID,
		AggregateType: request.AggregateType,
		Version:       request.Version,
		State:         request.State,
		Metadata:      request.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := uc.snapshotRepo.Insert(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetLatestSnapshot returns the most recent snapshot for the aggregate.
func (uc *eventStoreUseCase) GetLatestSnapshot(
	ctx context.Context,
	aggregateID, aggregateType string,
) (*domain.Snapshot, error) {
	return uc.snapshotRepo.GetLatest(ctx, aggregateID, aggregateType)
}

// GetSnapshots returns every snapshot for the aggregate, newest first.
func (uc *eventStoreUseCase) GetSnapshots(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.Snapshot, error) {
	return uc.snapshotRepo.List(ctx, aggregateID, aggregateType)
}

// PruneSnapshots deletes all but the keepCount most recent snapshots.
func (uc *eventStoreUseCase) PruneSnapshots(
	ctx context.Context,
	aggregateID, aggregateType string,
	keepCount int,
) (int, error) {
	if keepCount <= 0 {
		keepCount = domain.DefaultSnapshotKeep
	}

	snapshots, err := uc.snapshotRepo.List(ctx, aggregateID, aggregateType)
	if err != nil {
		return 0, err
	}
	if len(snapshots) <= keepCount {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(snapshots)-keepCount)
	for _, snapshot := range snapshots[keepCount:] {
		ids = append(ids, snapshot.ID)
	}
	return uc.snapshotRepo.DeleteByIDs(ctx, ids)
}

// ReplayFromSnapshot loads the latest snapshot and folds only the events
// past its version. Without a snapshot it falls back to a full replay from
// empty state, so the result is identical either way.
func (uc *eventStoreUseCase) ReplayFromSnapshot(
	ctx context.Context,
	aggregateID string,
	reducer domain.Reducer,
	aggregateType string,
) (*domain.AggregateState, error) {
	snapshot, err := uc.snapshotRepo.GetLatest(ctx, aggregateID, aggregateType)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return uc.Replay(ctx, aggregateID, reducer, nil, aggregateType)
		}
		return nil, err
	}

	var state any
	if err := json.Unmarshal(snapshot.State, &state); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode snapshot state")
	}

	stored, err := uc.eventRepo.GetAfterVersion(ctx, aggregateID, aggregateType, snapshot.Version)
	if err != nil {
		return nil, err
	}
	return foldEvents(aggregateID, state, snapshot.Version, reducer, uc.upcastAll(stored)), nil
}

// ReplayWithSnapshot amortizes snapshot-write cost against replay-read cost:
// short histories replay in full, long ones replay from the latest snapshot
// and refresh it once enough events have accumulated since.
func (uc *eventStoreUseCase) ReplayWithSnapshot(
	ctx context.Context,
	aggregateID string,
	reducer domain.Reducer,
	aggregateType string,
	threshold int,
) (*domain.AggregateState, error) {
	if threshold <= 0 {
		threshold = domain.DefaultSnapshotThreshold
	}

	total, err := uc.eventRepo.CountByAggregate(ctx, aggregateID, aggregateType)
	if err != nil {
		return nil, err
	}
	if total < threshold {
		return uc.Replay(ctx, aggregateID, reducer, nil, aggregateType)
	}

	var snapshotVersion uint
	snapshot, err := uc.snapshotRepo.GetLatest(ctx, aggregateID, aggregateType)
	switch {
	case err == nil:
		snapshotVersion = snapshot.Version
	case errors.Is(err, apperrors.ErrNotFound):
		// No snapshot yet; the replay below starts from empty state.
	default:
		return nil, err
	}

	result, err := uc.ReplayFromSnapshot(ctx, aggregateID, reducer, aggregateType)
	if err != nil {
		return nil, err
	}

	accumulated := int(result.Version - snapshotVersion)
	if accumulated < threshold/2 {
		return result, nil
	}

	encoded, err := json.Marshal(result.State)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode snapshot state")
	}
	if _, err := uc.SaveSnapshot(ctx, domain.SnapshotRequest{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       result.Version,
		State:         encoded,
	}); err != nil {
		return nil, err
	}
	if _, err := uc.PruneSnapshots(ctx, aggregateID, aggregateType, domain.DefaultSnapshotKeep); err != nil {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Info("snapshot refreshed",
			slog.String("aggregate_id", aggregateID),
			slog.String("aggregate_type", aggregateType),
			slog.Uint64("version", uint64(result.Version)),
		)
	}
	return result, nil
}

// foldEvents runs the reducer over events, tracking the last applied version.
func foldEvents(
	aggregateID string,
	initial any,
	baseVersion uint,
	reducer domain.Reducer,
	events []domain.StoredEvent,
) *domain.AggregateState {
	state := initial
	version := baseVersion
	for _, event := range events {
		state = reducer(state, event)
		version = event.Version
	}
	return &domain.AggregateState{
		ID:      aggregateID,
		Version: version,
		State:   state,
	}
}
