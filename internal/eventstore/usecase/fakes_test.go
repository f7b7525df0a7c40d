package usecase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/eventstore/domain"
)

// passthroughTxManager runs the callback directly; the fakes below provide
// their own serialization guarantees the way a real database would.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTxManager) WithTxOptions(
	ctx context.Context,
	_ *sql.TxOptions,
	fn func(ctx context.Context) error,
) error {
	return fn(ctx)
}

// fakeEventRepo is an in-memory EventRepository enforcing the unique
// (aggregate_type, aggregate_id, version) constraint, so append races
// surface exactly as they would against a real store.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.StoredEvent
	byKey  map[string]struct{}
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byKey: make(map[string]struct{})}
}

func eventKey(aggregateType, aggregateID string, version uint) string {
	return fmt.Sprintf("%s/%s/%d", aggregateType, aggregateID, version)
}

func (f *fakeEventRepo) Insert(_ context.Context, event *domain.StoredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := eventKey(event.AggregateType, event.AggregateID, event.Version)
	if _, exists := f.byKey[key]; exists {
		return domain.ErrVersionConflict
	}
	f.byKey[key] = struct{}{}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEventRepo) MaxVersion(_ context.Context, aggregateType, aggregateID string) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max uint
	for _, event := range f.events {
		if event.AggregateType == aggregateType && event.AggregateID == aggregateID && event.Version > max {
			max = event.Version
		}
	}
	return max, nil
}

func (f *fakeEventRepo) matching(aggregateID, aggregateType string) []domain.StoredEvent {
	var out []domain.StoredEvent
	for _, event := range f.events {
		if event.AggregateID != aggregateID {
			continue
		}
		if aggregateType != "" && event.AggregateType != aggregateType {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (f *fakeEventRepo) GetByAggregate(_ context.Context, aggregateID, aggregateType string) ([]domain.StoredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matching(aggregateID, aggregateType), nil
}

func (f *fakeEventRepo) GetAfterVersion(
	_ context.Context,
	aggregateID, aggregateType string,
	version uint,
) ([]domain.StoredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StoredEvent
	for _, event := range f.matching(aggregateID, aggregateType) {
		if event.Version > version {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) GetByType(_ context.Context, eventType string, since *time.Time) ([]domain.StoredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StoredEvent
	for _, event := range f.events {
		if event.EventType != eventType {
			continue
		}
		if since != nil && event.OccurredOn.Before(*since) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredOn.Before(out[j].OccurredOn) })
	return out, nil
}

func (f *fakeEventRepo) GetPage(
	_ context.Context,
	aggregateID, aggregateType string,
	offset, limit int,
) ([]domain.StoredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(aggregateID, aggregateType)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeEventRepo) ListForMigration(_ context.Context, filter domain.MigrationFilter) ([]domain.StoredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StoredEvent
	for _, event := range f.events {
		if filter.AggregateID != "" && event.AggregateID != filter.AggregateID {
			continue
		}
		if filter.AggregateType != "" && event.AggregateType != filter.AggregateType {
			continue
		}
		if filter.BeforeVersion != 0 && event.Version >= filter.BeforeVersion {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (f *fakeEventRepo) CountByAggregate(_ context.Context, aggregateID, aggregateType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.matching(aggregateID, aggregateType)), nil
}

func (f *fakeEventRepo) UpdateData(_ context.Context, id uuid.UUID, eventData, metadata json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].EventData = eventData
			f.events[i].Metadata = metadata
			return nil
		}
	}
	return fmt.Errorf("event %s not found", id)
}

// fakeSnapshotRepo is an in-memory SnapshotRepository.
type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []domain.Snapshot
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{}
}

func (f *fakeSnapshotRepo) Insert(_ context.Context, snapshot *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, *snapshot)
	return nil
}

func (f *fakeSnapshotRepo) sorted(aggregateID, aggregateType string) []domain.Snapshot {
	var out []domain.Snapshot
	for _, snapshot := range f.snapshots {
		if snapshot.AggregateID == aggregateID && snapshot.AggregateType == aggregateType {
			out = append(out, snapshot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}

func (f *fakeSnapshotRepo) GetLatest(_ context.Context, aggregateID, aggregateType string) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sorted(aggregateID, aggregateType)
	if len(all) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	latest := all[0]
	return &latest, nil
}

func (f *fakeSnapshotRepo) List(_ context.Context, aggregateID, aggregateType string) ([]domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(aggregateID, aggregateType), nil
}

func (f *fakeSnapshotRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := f.snapshots[:0]
	deleted := 0
	for _, snapshot := range f.snapshots {
		if _, gone := drop[snapshot.ID]; gone {
			deleted++
			continue
		}
		kept = append(kept, snapshot)
	}
	f.snapshots = kept
	return deleted, nil
}
