package usecase

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/database"
	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

// eventStoreUseCase implements the EventStore interface over an event
// repository and a snapshot repository.
type eventStoreUseCase struct {
	txManager    database.TxManager
	eventRepo    EventRepository
	snapshotRepo SnapshotRepository
	upcasters    *domain.UpcasterRegistry
	logger       *slog.Logger

	migrationsMu sync.RWMutex
	migrations   []domain.Migration
}

// NewEventStoreUseCase creates a new EventStore.
func NewEventStoreUseCase(
	txManager database.TxManager,
	eventRepo EventRepository,
	snapshotRepo SnapshotRepository,
	logger *slog.Logger,
) EventStore {
	return &eventStoreUseCase{
		txManager:    txManager,
		eventRepo:    eventRepo,
		snapshotRepo: snapshotRepo,
		upcasters:    domain.NewUpcasterRegistry(),
		logger:       logger,
	}
}

// appendTxOptions pins the isolation level for the Append read-then-write.
// Read committed is sufficient because the unique constraint on
// (aggregate_type, aggregate_id, version) catches the race two appends
// would otherwise win together.
var appendTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// Append computes the next version inside a transaction and inserts the
// record. The read-then-write is transactional and the unique constraint is
// the backstop: two appends that race on the same aggregate cannot both
// commit the same version, the loser gets domain.ErrVersionConflict.
func (uc *eventStoreUseCase) Append(
	ctx context.Context,
	envelope domain.AppendEnvelope,
) (*domain.StoredEvent, error) {
	if err := envelope.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	var stored *domain.StoredEvent
	err := uc.txManager.WithTxOptions(ctx, appendTxOptions, func(txCtx context.Context) error {
		currentVersion, err := uc.eventRepo.MaxVersion(txCtx, envelope.AggregateType, envelope.AggregateID)
		if err != nil {
			return err
		}

		stored = &domain.StoredEvent{
			ID:            uuid.Must(uuid.NewV7()),
			AggregateID:   envelope.AggregateID,
			AggregateType: envelope.AggregateType,
			EventType:     envelope.EventType,
			EventData:     envelope.EventData,
			Metadata:      envelope.Metadata,
			Version:       currentVersion + 1,
			OccurredOn:    time.Now().UTC(),
		}

		return uc.eventRepo.Insert(txCtx, stored)
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// GetEvents returns the aggregate's raw events ascending by version.
func (uc *eventStoreUseCase) GetEvents(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	return uc.eventRepo.GetByAggregate(ctx, aggregateID, aggregateType)
}

// GetEventsUpcasted returns the aggregate's events with upcasters applied.
// An event whose upcast chain fails is passed through in its last good shape
// and the failure is logged; read-side adaptation is never fatal.
func (uc *eventStoreUseCase) GetEventsUpcasted(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	stored, err := uc.eventRepo.GetByAggregate(ctx, aggregateID, aggregateType)
	if err != nil {
		return nil, err
	}
	return uc.upcastAll(stored), nil
}

// GetEventsByType returns events of one type across aggregates with
// upcasters applied.
func (uc *eventStoreUseCase) GetEventsByType(
	ctx context.Context,
	eventType string,
	since *time.Time,
) ([]domain.StoredEvent, error) {
	stored, err := uc.eventRepo.GetByType(ctx, eventType, since)
	if err != nil {
		return nil, err
	}
	return uc.upcastAll(stored), nil
}

// RegisterUpcaster registers a read-time event transformation.
func (uc *eventStoreUseCase) RegisterUpcaster(upcaster domain.Upcaster) {
	uc.upcasters.Register(upcaster)
}

// RegisterUpcasters registers several upcasters at once.
func (uc *eventStoreUseCase) RegisterUpcasters(upcasters []domain.Upcaster) {
	for _, upcaster := range upcasters {
		uc.upcasters.Register(upcaster)
	}
}

// RegisterMigration registers a destructive schema rewrite rule.
func (uc *eventStoreUseCase) RegisterMigration(migration domain.Migration) {
	uc.migrationsMu.Lock()
	defer uc.migrationsMu.Unlock()
	uc.migrations = append(uc.migrations, migration)
}

// MigrateEvents rewrites matching stored events through every registered
// migration whose type list matches, in registration order. Each event is
// rewritten independently; failures are collected into the result and never
// abort the batch.
func (uc *eventStoreUseCase) MigrateEvents(
	ctx context.Context,
	filter domain.MigrationFilter,
) (*domain.MigrationResult, error) {
	uc.migrationsMu.RLock()
	migrations := make([]domain.Migration, len(uc.migrations))
	copy(migrations, uc.migrations)
	uc.migrationsMu.RUnlock()

	result := &domain.MigrationResult{}
	if len(migrations) == 0 {
		return result, nil
	}

	stored, err := uc.eventRepo.ListForMigration(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, event := range stored {
		migrated, changed, err := applyMigrations(migrations, event)
		if err != nil {
			result.Errors = append(result.Errors, domain.MigrationError{EventID: event.ID.String(), Err: err})
			continue
		}
		if !changed {
			continue
		}

		if err := uc.eventRepo.UpdateData(ctx, event.ID, migrated.EventData, migrated.Metadata); err != nil {
			result.Errors = append(result.Errors, domain.MigrationError{EventID: event.ID.String(), Err: err})
			continue
		}
		result.Migrated++
	}

	if uc.logger != nil {
		uc.logger.Info("event migration finished",
			slog.Int("migrated", result.Migrated),
			slog.Int("errors", len(result.Errors)),
		)
	}
	return result, nil
}

// applyMigrations chains every matching migration over the event, reporting
// whether anything changed.
func applyMigrations(
	migrations []domain.Migration,
	event domain.StoredEvent,
) (domain.StoredEvent, bool, error) {
	current := event
	changed := false
	for _, migration := range migrations {
		if !migration.Matches(current.EventType) {
			continue
		}
		next, err := migration.Transform(current)
		if err != nil {
			return current, changed, err
		}
		current = next
		changed = true
	}
	return current, changed, nil
}

// upcastAll applies the upcaster chain to every event, logging per-event
// failures and keeping the last good shape.
func (uc *eventStoreUseCase) upcastAll(stored []domain.StoredEvent) []domain.StoredEvent {
	if len(stored) == 0 {
		return stored
	}
	upcasted := make([]domain.StoredEvent, 0, len(stored))
	for _, event := range stored {
		transformed, err := uc.upcasters.Apply(event)
		if err != nil && uc.logger != nil {
			uc.logger.Warn("upcast failed, serving last good shape",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.EventType),
				slog.Any("error", err),
			)
		}
		upcasted = append(upcasted, transformed)
	}
	return upcasted
}
