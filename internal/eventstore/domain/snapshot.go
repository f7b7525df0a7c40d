package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/validation"

	rules "github.com/posflow/posflow/internal/validation"
)

// DefaultSnapshotKeep is the number of most recent snapshots retained per
// aggregate by pruning.
const DefaultSnapshotKeep = 5

// DefaultSnapshotThreshold is the event count at which adaptive replay
// starts using and writing snapshots.
const DefaultSnapshotThreshold = 100

// Snapshot is a checkpoint of reduced aggregate state at a given version.
// Snapshots are superseded by newer ones and eventually pruned; they are
// never mutated in place.
type Snapshot struct {
	// ID is the unique identifier of the snapshot record.
	ID uuid.UUID
	// AggregateID identifies the aggregate instance.
	AggregateID string
	// AggregateType is the kind of aggregate.
	AggregateType string
	// Version is the version of the last event folded into State. It never
	// exceeds the latest stored event version for the aggregate.
	Version uint
	// State is the opaque serialized reduced state.
	State json.RawMessage
	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
	// Metadata is an opaque key/value bag.
	Metadata json.RawMessage
}

// SnapshotRequest carries the caller-supplied attributes of a snapshot to be
// saved. The store assigns ID and CreatedAt.
type SnapshotRequest struct {
	AggregateID   string
	AggregateType string
	Version       uint
	State         json.RawMessage
	Metadata      json.RawMessage
}

// Validate checks that the request carries everything a snapshot requires.
func (r SnapshotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AggregateID, validation.Required, validation.Length(1, 255), rules.NoWhitespace),
		validation.Field(&r.AggregateType, validation.Required, validation.Length(1, 255), rules.NoWhitespace),
		validation.Field(&r.Version, validation.Required, validation.Min(uint(1))),
		validation.Field(&r.State, validation.Required, rules.JSONPayload),
	)
}
