// Package domain defines the core event store entities: stored events,
// snapshots, upcasters and migrations. Stored events are the durable,
// versioned history of an aggregate; for a fixed (aggregate_type,
// aggregate_id) the set of versions is exactly 1..N with no gaps or
// duplicates.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/validation"

	rules "github.com/posflow/posflow/internal/validation"
)

// StoredEvent is the durable record of a domain event. It is created by
// Append and never updated except by an explicit migration; it is never
// deleted.
type StoredEvent struct {
	// ID is the unique identifier of the record.
	ID uuid.UUID
	// AggregateID identifies the aggregate instance this event belongs to.
	AggregateID string
	// AggregateType is the kind of aggregate (e.g. "order", "shift").
	AggregateType string
	// EventType is the stable string tag of the domain event.
	EventType string
	// EventData is the opaque structured payload of the event.
	EventData json.RawMessage
	// Version is the 1-based position of this event in the aggregate's history.
	Version uint
	// OccurredOn is the time the underlying fact happened.
	OccurredOn time.Time
	// Metadata is an opaque key/value bag (correlation ids, actor, device).
	Metadata json.RawMessage
}

// AppendEnvelope carries the caller-supplied attributes of an event to be
// appended. The store assigns ID, Version and the persisted timestamp.
type AppendEnvelope struct {
	AggregateID   string
	AggregateType string
	EventType     string
	EventData     json.RawMessage
	Metadata      json.RawMessage
}

// Validate checks that the envelope carries everything an append requires.
func (e AppendEnvelope) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AggregateID, validation.Required, validation.Length(1, 255), rules.NoWhitespace),
		validation.Field(&e.AggregateType, validation.Required, validation.Length(1, 255), rules.NoWhitespace),
		validation.Field(&e.EventType, validation.Required, validation.Length(1, 255), rules.EventTypeTag),
		validation.Field(&e.EventData, validation.Required, rules.JSONPayload),
	)
}

// AggregateState is the result of replaying an aggregate's history through a
// reducer. Version is the version of the last applied event, 0 if none.
type AggregateState struct {
	ID      string
	Version uint
	State   any
}

// Reducer folds a stored event into the accumulated aggregate state.
type Reducer func(state any, event StoredEvent) any
