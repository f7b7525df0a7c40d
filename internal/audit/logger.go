// Package audit provides the reactors that observe the event bus and the
// event store: a structured logger for every published event, a recorder
// persisting the bus traffic as an audit trail, and a projector re-delivering
// stored events to analytics handlers.
package audit

import (
	"log/slog"

	"github.com/posflow/posflow/internal/eventbus"
	"github.com/posflow/posflow/internal/events"
)

// Logger is a subscribe-all reactor that logs every published domain event.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new Logger.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Attach subscribes the logger to every event on the bus.
func (l *Logger) Attach(bus *eventbus.Bus) *eventbus.Subscription {
	return bus.SubscribeAll(l.handle)
}

func (l *Logger) handle(event events.DomainEvent) {
	if l.logger == nil {
		return
	}
	l.logger.Info("domain event published",
		slog.String("event_name", event.EventName()),
		slog.Time("occurred_on", event.OccurredOn()),
		slog.Any("event", event),
	)
}
