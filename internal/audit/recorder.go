package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/posflow/posflow/internal/eventbus"
	"github.com/posflow/posflow/internal/events"
	"github.com/posflow/posflow/internal/eventstore/domain"
	apperrors "github.com/posflow/posflow/internal/errors"
)

// Audit trail aggregate identity.
const (
	AggregateID   = "audit-trail"
	AggregateType = "audit"
)

// appendRetries bounds version-conflict retries when another writer appends
// to the audit trail concurrently.
const appendRetries = 3

// EventAppender is the slice of the event store the recorder needs.
type EventAppender interface {
	Append(ctx context.Context, envelope domain.AppendEnvelope) (*domain.StoredEvent, error)
}

// Recorder is a subscribe-all reactor that appends every published domain
// event into the event store under the audit-trail aggregate, giving the bus
// traffic a replayable history.
type Recorder struct {
	store  EventAppender
	logger *slog.Logger
}

// NewRecorder creates a new Recorder.
func NewRecorder(store EventAppender, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to every event on the bus.
func (r *Recorder) Attach(bus *eventbus.Bus) *eventbus.Subscription {
	return bus.SubscribeAll(r.handle)
}

func (r *Recorder) handle(event events.DomainEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logError("failed to encode event for the audit trail", event, err)
		return
	}

	envelope := domain.AppendEnvelope{
		AggregateID:   AggregateID,
		AggregateType: AggregateType,
		EventType:     event.EventName(),
		EventData:     payload,
	}

	ctx := context.Background()
	for attempt := 0; attempt < appendRetries; attempt++ {
		if _, err = r.store.Append(ctx, envelope); !apperrors.Is(err, apperrors.ErrVersionConflict) {
			break
		}
	}
	if err != nil {
		r.logError("failed to append event to the audit trail", event, err)
	}
}

func (r *Recorder) logError(message string, event events.DomainEvent, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error(message,
		slog.String("event_name", event.EventName()),
		slog.Any("error", err),
	)
}
