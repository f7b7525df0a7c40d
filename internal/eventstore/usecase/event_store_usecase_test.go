package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

func newTestStore() (EventStore, *fakeEventRepo, *fakeSnapshotRepo) {
	eventRepo := newFakeEventRepo()
	snapshotRepo := newFakeSnapshotRepo()
	store := NewEventStoreUseCase(passthroughTxManager{}, eventRepo, snapshotRepo, nil)
	return store, eventRepo, snapshotRepo
}

func appendN(t *testing.T, store EventStore, aggregateID, aggregateType string, n int) []domain.StoredEvent {
	t.Helper()
	ctx := context.Background()
	out := make([]domain.StoredEvent, 0, n)
	for i := 0; i < n; i++ {
		stored, err := store.Append(ctx, domain.AppendEnvelope{
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			EventType:     "stock.changed",
			EventData:     json.RawMessage(fmt.Sprintf(`{"delta":%d}`, i+1)),
		})
		require.NoError(t, err)
		out = append(out, *stored)
	}
	return out
}

func TestEventStoreAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns contiguous versions starting at one", func(t *testing.T) {
		store, _, _ := newTestStore()
		stored := appendN(t, store, "stock-1", "stock", 3)

		for i, event := range stored {
			assert.Equal(t, uint(i+1), event.Version)
			assert.Equal(t, "stock-1", event.AggregateID)
			assert.False(t, event.OccurredOn.IsZero())
		}

		events, err := store.GetEvents(ctx, "stock-1", "stock")
		require.NoError(t, err)
		require.Len(t, events, 3)
		for i, event := range events {
			assert.Equal(t, uint(i+1), event.Version)
		}
	})

	t.Run("versions are independent per aggregate", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 2)
		stored := appendN(t, store, "stock-2", "stock", 1)
		assert.Equal(t, uint(1), stored[0].Version)

		// Same id under a different aggregate type is a distinct stream.
		other, err := store.Append(ctx, domain.AppendEnvelope{
			AggregateID:   "stock-1",
			AggregateType: "order",
			EventType:     "order.status_changed",
			EventData:     json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		assert.Equal(t, uint(1), other.Version)
	})

	t.Run("rejects an incomplete envelope", func(t *testing.T) {
		store, _, _ := newTestStore()
		_, err := store.Append(ctx, domain.AppendEnvelope{
			AggregateID: "stock-1",
			EventType:   "stock.changed",
			EventData:   json.RawMessage(`{}`),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("a lost race returns a version conflict", func(t *testing.T) {
		store, eventRepo, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 1)

		// Force the next insert to collide by occupying version 2 behind
		// the use case's back, as a concurrent writer would.
		eventRepo.mu.Lock()
		eventRepo.byKey[eventKey("stock", "stock-1", 2)] = struct{}{}
		eventRepo.mu.Unlock()

		_, err := store.Append(ctx, domain.AppendEnvelope{
			AggregateID:   "stock-1",
			AggregateType: "stock",
			EventType:     "stock.changed",
			EventData:     json.RawMessage(`{}`),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
	})

	t.Run("concurrent appends with retry produce a gapless history", func(t *testing.T) {
		store, _, _ := newTestStore()
		const writers = 16

		var group errgroup.Group
		for i := 0; i < writers; i++ {
			group.Go(func() error {
				for {
					_, err := store.Append(ctx, domain.AppendEnvelope{
						AggregateID:   "stock-1",
						AggregateType: "stock",
						EventType:     "stock.changed",
						EventData:     json.RawMessage(`{}`),
					})
					if err == nil {
						return nil
					}
					if !apperrors.Is(err, apperrors.ErrVersionConflict) {
						return err
					}
				}
			})
		}
		require.NoError(t, group.Wait())

		events, err := store.GetEvents(ctx, "stock-1", "stock")
		require.NoError(t, err)
		require.Len(t, events, writers)
		for i, event := range events {
			assert.Equal(t, uint(i+1), event.Version)
		}
	})
}

func TestEventStoreUpcasting(t *testing.T) {
	ctx := context.Background()

	renameField := func(from, to string) func(domain.StoredEvent) (domain.StoredEvent, error) {
		return func(event domain.StoredEvent) (domain.StoredEvent, error) {
			var payload map[string]any
			if err := json.Unmarshal(event.EventData, &payload); err != nil {
				return event, err
			}
			if value, ok := payload[from]; ok {
				delete(payload, from)
				payload[to] = value
			}
			encoded, err := json.Marshal(payload)
			if err != nil {
				return event, err
			}
			event.EventData = encoded
			return event, nil
		}
	}

	t.Run("applies the chain ascending by from-version", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 1)

		// Registered out of order on purpose.
		store.RegisterUpcasters([]domain.Upcaster{
			{EventType: "stock.changed", FromVersion: 1, Transform: renameField("amount", "delta")},
			{EventType: "stock.changed", FromVersion: 0, Transform: renameField("delta", "amount")},
		})

		events, err := store.GetEventsUpcasted(ctx, "stock-1", "stock")
		require.NoError(t, err)
		require.Len(t, events, 1)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(events[0].EventData, &payload))
		assert.Contains(t, payload, "delta")
		assert.NotContains(t, payload, "amount")
	})

	t.Run("registering before or after the append reads the same", func(t *testing.T) {
		upcaster := domain.Upcaster{
			EventType: "stock.changed",
			Transform: renameField("delta", "amount"),
		}

		before, _, _ := newTestStore()
		before.RegisterUpcaster(upcaster)
		appendN(t, before, "stock-1", "stock", 1)

		after, _, _ := newTestStore()
		appendN(t, after, "stock-1", "stock", 1)
		after.RegisterUpcaster(upcaster)

		beforeEvents, err := before.GetEventsUpcasted(ctx, "stock-1", "stock")
		require.NoError(t, err)
		afterEvents, err := after.GetEventsUpcasted(ctx, "stock-1", "stock")
		require.NoError(t, err)

		require.Len(t, beforeEvents, 1)
		require.Len(t, afterEvents, 1)
		assert.JSONEq(t, string(beforeEvents[0].EventData), string(afterEvents[0].EventData))
		assert.JSONEq(t, `{"amount":1}`, string(afterEvents[0].EventData))
	})

	t.Run("stored events remain untouched", func(t *testing.T) {
		store, eventRepo, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 1)
		store.RegisterUpcaster(domain.Upcaster{
			EventType: "stock.changed",
			Transform: renameField("delta", "amount"),
		})

		_, err := store.GetEventsUpcasted(ctx, "stock-1", "stock")
		require.NoError(t, err)

		eventRepo.mu.Lock()
		raw := eventRepo.events[0].EventData
		eventRepo.mu.Unlock()
		assert.JSONEq(t, `{"delta":1}`, string(raw))
	})

	t.Run("a failing upcaster serves the last good shape", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 1)
		store.RegisterUpcasters([]domain.Upcaster{
			{EventType: "stock.changed", FromVersion: 0, Transform: renameField("delta", "amount")},
			{
				EventType:   "stock.changed",
				FromVersion: 1,
				Transform: func(event domain.StoredEvent) (domain.StoredEvent, error) {
					return event, fmt.Errorf("boom")
				},
			},
		})

		events, err := store.GetEventsUpcasted(ctx, "stock-1", "stock")
		require.NoError(t, err)
		require.Len(t, events, 1)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(events[0].EventData, &payload))
		assert.Contains(t, payload, "amount")
	})

	t.Run("other event types pass through", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 1)
		store.RegisterUpcaster(domain.Upcaster{
			EventType: "order.status_changed",
			Transform: func(event domain.StoredEvent) (domain.StoredEvent, error) {
				event.EventData = json.RawMessage(`{"rewritten":true}`)
				return event, nil
			},
		})

		events, err := store.GetEventsUpcasted(ctx, "stock-1", "stock")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.JSONEq(t, `{"delta":1}`, string(events[0].EventData))
	})
}

func TestEventStoreMigrateEvents(t *testing.T) {
	ctx := context.Background()

	addField := func(key string, value any) func(domain.StoredEvent) (domain.StoredEvent, error) {
		return func(event domain.StoredEvent) (domain.StoredEvent, error) {
			var payload map[string]any
			if err := json.Unmarshal(event.EventData, &payload); err != nil {
				return event, err
			}
			payload[key] = value
			encoded, err := json.Marshal(payload)
			if err != nil {
				return event, err
			}
			event.EventData = encoded
			return event, nil
		}
	}

	t.Run("rewrites matching events in place", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 2)
		store.RegisterMigration(domain.Migration{
			EventTypes: []string{"stock.changed"},
			Transform:  addField("unit", "pcs"),
		})

		result, err := store.MigrateEvents(ctx, domain.MigrationFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Migrated)
		assert.Empty(t, result.Errors)

		events, err := store.GetEvents(ctx, "stock-1", "stock")
		require.NoError(t, err)
		for _, event := range events {
			var payload map[string]any
			require.NoError(t, json.Unmarshal(event.EventData, &payload))
			assert.Equal(t, "pcs", payload["unit"])
		}
	})

	t.Run("collects per-event failures without aborting", func(t *testing.T) {
		store, eventRepo, _ := newTestStore()
		stored := appendN(t, store, "stock-1", "stock", 3)

		// Corrupt the middle event so its transform fails to decode.
		eventRepo.mu.Lock()
		eventRepo.events[1].EventData = json.RawMessage(`not json`)
		eventRepo.mu.Unlock()

		store.RegisterMigration(domain.Migration{
			EventTypes: []string{domain.MigrationWildcard},
			Transform:  addField("migrated", true),
		})

		result, err := store.MigrateEvents(ctx, domain.MigrationFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Migrated)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, stored[1].ID.String(), result.Errors[0].EventID)
		assert.Error(t, result.Errors[0].Err)
	})

	t.Run("honors the filter", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 2)
		appendN(t, store, "order-1", "order", 1)
		store.RegisterMigration(domain.Migration{
			EventTypes: []string{domain.MigrationWildcard},
			Transform:  addField("migrated", true),
		})

		result, err := store.MigrateEvents(ctx, domain.MigrationFilter{AggregateType: "order"})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Migrated)

		untouched, err := store.GetEvents(ctx, "stock-1", "stock")
		require.NoError(t, err)
		assert.JSONEq(t, `{"delta":1}`, string(untouched[0].EventData))
	})

	t.Run("no registered migrations is a no-op", func(t *testing.T) {
		store, _, _ := newTestStore()
		appendN(t, store, "stock-1", "stock", 1)

		result, err := store.MigrateEvents(ctx, domain.MigrationFilter{})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Migrated)
		assert.Empty(t, result.Errors)
	})
}
