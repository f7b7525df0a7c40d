package audit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posflow/posflow/internal/eventbus"
	"github.com/posflow/posflow/internal/events"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&syncWriter{buf: &buf, mu: &mu}, nil))

	bus := eventbus.New(0, nil)
	defer bus.Close()

	sub := NewLogger(logger).Attach(bus)
	require.NotNil(t, sub)

	bus.Publish(events.NewStockChanged("ing-1", 10, 8, "order:o-1"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return bytes.Contains(buf.Bytes(), []byte("stock.changed"))
	}, time.Second, 10*time.Millisecond)
}

// syncWriter serializes writes from the bus delivery goroutine.
type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// stubAppender captures appended envelopes, optionally failing the first
// conflictsLeft calls with a version conflict.
type stubAppender struct {
	mu            sync.Mutex
	envelopes     []domain.AppendEnvelope
	calls         int
	conflictsLeft int
}

func (s *stubAppender) Append(_ context.Context, envelope domain.AppendEnvelope) (*domain.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return nil, domain.ErrVersionConflict
	}
	s.envelopes = append(s.envelopes, envelope)
	return &domain.StoredEvent{}, nil
}

func (s *stubAppender) snapshot() ([]domain.AppendEnvelope, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AppendEnvelope(nil), s.envelopes...), s.calls
}

func TestRecorder(t *testing.T) {
	t.Run("appends published events under the audit trail aggregate", func(t *testing.T) {
		appender := &stubAppender{}
		bus := eventbus.New(0, nil)
		defer bus.Close()

		NewRecorder(appender, nil).Attach(bus)
		bus.Publish(events.NewOrderStatusChanged("o-1", "pending", "preparing"))

		require.Eventually(t, func() bool {
			envelopes, _ := appender.snapshot()
			return len(envelopes) == 1
		}, time.Second, 10*time.Millisecond)

		envelopes, _ := appender.snapshot()
		assert.Equal(t, AggregateID, envelopes[0].AggregateID)
		assert.Equal(t, AggregateType, envelopes[0].AggregateType)
		assert.Equal(t, events.EventOrderStatusChanged, envelopes[0].EventType)
		assert.Contains(t, string(envelopes[0].EventData), `"order_id":"o-1"`)
	})

	t.Run("retries version conflicts", func(t *testing.T) {
		appender := &stubAppender{conflictsLeft: 2}
		bus := eventbus.New(0, nil)
		defer bus.Close()

		NewRecorder(appender, nil).Attach(bus)
		bus.Publish(events.NewStockChanged("ing-1", 10, 8, "order:o-1"))

		require.Eventually(t, func() bool {
			envelopes, calls := appender.snapshot()
			return len(envelopes) == 1 && calls == 3
		}, time.Second, 10*time.Millisecond)
	})
}

// stubSource serves stored events filtered by the since bound, the way the
// repository query does.
type stubSource struct {
	mu     sync.Mutex
	events []domain.StoredEvent
}

func (s *stubSource) GetEventsByType(_ context.Context, eventType string, since *time.Time) ([]domain.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StoredEvent
	for _, event := range s.events {
		if event.EventType != eventType {
			continue
		}
		if since != nil && event.OccurredOn.Before(*since) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *stubSource) add(event domain.StoredEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func storedAt(eventType string, offset time.Duration) domain.StoredEvent {
	return domain.StoredEvent{
		ID:         uuid.Must(uuid.NewV7()),
		EventType:  eventType,
		EventData:  []byte(`{}`),
		OccurredOn: time.Now().UTC().Add(offset),
	}
}

func TestProjector(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers each event once across passes", func(t *testing.T) {
		source := &stubSource{}
		source.add(storedAt("stock.changed", -3*time.Second))
		source.add(storedAt("stock.changed", -2*time.Second))

		var delivered []domain.StoredEvent
		projector := NewProjector(
			ProjectorConfig{EventType: "stock.changed", Interval: time.Millisecond},
			source,
			func(_ context.Context, event domain.StoredEvent) error {
				delivered = append(delivered, event)
				return nil
			},
			nil,
		)

		require.NoError(t, projector.Project(ctx))
		assert.Len(t, delivered, 2)

		// Nothing new: the checkpoint holds.
		require.NoError(t, projector.Project(ctx))
		assert.Len(t, delivered, 2)

		source.add(storedAt("stock.changed", -time.Second))
		require.NoError(t, projector.Project(ctx))
		assert.Len(t, delivered, 3)
	})

	t.Run("delivers a later-stored event sharing the checkpoint instant", func(t *testing.T) {
		instant := time.Now().UTC().Truncate(time.Microsecond)
		first := storedAt("stock.changed", 0)
		first.OccurredOn = instant
		second := storedAt("stock.changed", 0)
		second.OccurredOn = instant

		source := &stubSource{}
		source.add(first)

		var delivered []uuid.UUID
		projector := NewProjector(
			ProjectorConfig{EventType: "stock.changed", Interval: time.Millisecond},
			source,
			func(_ context.Context, event domain.StoredEvent) error {
				delivered = append(delivered, event.ID)
				return nil
			},
			nil,
		)

		require.NoError(t, projector.Project(ctx))
		require.Equal(t, []uuid.UUID{first.ID}, delivered)

		// The second event lands with an occurred_on equal to the
		// checkpoint; it must still go out, and exactly once.
		source.add(second)
		require.NoError(t, projector.Project(ctx))
		assert.Equal(t, []uuid.UUID{first.ID, second.ID}, delivered)

		require.NoError(t, projector.Project(ctx))
		assert.Equal(t, []uuid.UUID{first.ID, second.ID}, delivered)
	})

	t.Run("ignores other event types", func(t *testing.T) {
		source := &stubSource{}
		source.add(storedAt("order.status_changed", -time.Second))

		deliveries := 0
		projector := NewProjector(
			ProjectorConfig{EventType: "stock.changed", Interval: time.Millisecond},
			source,
			func(context.Context, domain.StoredEvent) error {
				deliveries++
				return nil
			},
			nil,
		)
		require.NoError(t, projector.Project(ctx))
		assert.Equal(t, 0, deliveries)
	})

	t.Run("handler failure is retried from the failed event", func(t *testing.T) {
		source := &stubSource{}
		source.add(storedAt("stock.changed", -3*time.Second))
		source.add(storedAt("stock.changed", -2*time.Second))

		failOnce := true
		var delivered int
		projector := NewProjector(
			ProjectorConfig{EventType: "stock.changed", Interval: time.Millisecond},
			source,
			func(_ context.Context, event domain.StoredEvent) error {
				if delivered == 1 && failOnce {
					failOnce = false
					return fmt.Errorf("projection sink down")
				}
				delivered++
				return nil
			},
			nil,
		)

		require.Error(t, projector.Project(ctx))
		assert.Equal(t, 1, delivered)

		require.NoError(t, projector.Project(ctx))
		assert.Equal(t, 2, delivered)
	})

	t.Run("start stops on context cancellation", func(t *testing.T) {
		source := &stubSource{}
		projector := NewProjector(
			ProjectorConfig{EventType: "stock.changed", Interval: time.Millisecond},
			source,
			func(context.Context, domain.StoredEvent) error { return nil },
			nil,
		)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- projector.Start(runCtx) }()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("projector did not stop")
		}
	})

	t.Run("throttles deliveries when configured", func(t *testing.T) {
		source := &stubSource{}
		for i := 0; i < 5; i++ {
			source.add(storedAt("stock.changed", time.Duration(-10+i)*time.Second))
		}

		deliveries := 0
		projector := NewProjector(
			ProjectorConfig{EventType: "stock.changed", Interval: time.Millisecond, RatePerSecond: 100, Burst: 1},
			source,
			func(context.Context, domain.StoredEvent) error {
				deliveries++
				return nil
			},
			nil,
		)

		start := time.Now()
		require.NoError(t, projector.Project(ctx))
		assert.Equal(t, 5, deliveries)
		// 4 waits at 100/s after the initial burst token.
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})
}
