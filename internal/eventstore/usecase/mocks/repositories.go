// Package mocks provides mock implementations for testing event store use cases.
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/posflow/posflow/internal/eventstore/domain"
)

// MockEventRepository is a mock implementation of EventRepository for testing.
type MockEventRepository struct {
	mock.Mock
}

// Insert mocks the Insert method of EventRepository.
func (m *MockEventRepository) Insert(ctx context.Context, event *domain.StoredEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MaxVersion mocks the MaxVersion method of EventRepository.
func (m *MockEventRepository) MaxVersion(
	ctx context.Context,
	aggregateType, aggregateID string,
) (uint, error) {
	args := m.Called(ctx, aggregateType, aggregateID)
	return args.Get(0).(uint), args.Error(1)
}

// GetByAggregate mocks the GetByAggregate method of EventRepository.
func (m *MockEventRepository) GetByAggregate(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	args := m.Called(ctx, aggregateID, aggregateType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredEvent), args.Error(1)
}

// GetAfterVersion mocks the GetAfterVersion method of EventRepository.
func (m *MockEventRepository) GetAfterVersion(
	ctx context.Context,
	aggregateID, aggregateType string,
	version uint,
) ([]domain.StoredEvent, error) {
	args := m.Called(ctx, aggregateID, aggregateType, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredEvent), args.Error(1)
}

// GetByType mocks the GetByType method of EventRepository.
func (m *MockEventRepository) GetByType(
	ctx context.Context,
	eventType string,
	since *time.Time,
) ([]domain.StoredEvent, error) {
	args := m.Called(ctx, eventType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredEvent), args.Error(1)
}

// GetPage mocks the GetPage method of EventRepository.
func (m *MockEventRepository) GetPage(
	ctx context.Context,
	aggregateID, aggregateType string,
	offset, limit int,
) ([]domain.StoredEvent, error) {
	args := m.Called(ctx, aggregateID, aggregateType, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredEvent), args.Error(1)
}

// ListForMigration mocks the ListForMigration method of EventRepository.
func (m *MockEventRepository) ListForMigration(
	ctx context.Context,
	filter domain.MigrationFilter,
) ([]domain.StoredEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredEvent), args.Error(1)
}

// CountByAggregate mocks the CountByAggregate method of EventRepository.
func (m *MockEventRepository) CountByAggregate(
	ctx context.Context,
	aggregateID, aggregateType string,
) (int, error) {
	args := m.Called(ctx, aggregateID, aggregateType)
	return args.Int(0), args.Error(1)
}

// UpdateData mocks the UpdateData method of EventRepository.
func (m *MockEventRepository) UpdateData(
	ctx context.Context,
	id uuid.UUID,
	eventData, metadata json.RawMessage,
) error {
	args := m.Called(ctx, id, eventData, metadata)
	return args.Error(0)
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository for testing.
type MockSnapshotRepository struct {
	mock.Mock
}

// Insert mocks the Insert method of SnapshotRepository.
func (m *MockSnapshotRepository) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// GetLatest mocks the GetLatest method of SnapshotRepository.
func (m *MockSnapshotRepository) GetLatest(
	ctx context.Context,
	aggregateID, aggregateType string,
) (*domain.Snapshot, error) {
	args := m.Called(ctx, aggregateID, aggregateType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

// List mocks the List method of SnapshotRepository.
func (m *MockSnapshotRepository) List(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.Snapshot, error) {
	args := m.Called(ctx, aggregateID, aggregateType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Snapshot), args.Error(1)
}

// DeleteByIDs mocks the DeleteByIDs method of SnapshotRepository.
func (m *MockSnapshotRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}
