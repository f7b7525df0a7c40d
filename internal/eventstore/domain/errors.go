package domain

import (
	"github.com/posflow/posflow/internal/errors"
)

// Event store error definitions.
var (
	// ErrVersionConflict indicates two concurrent appends raced on the same
	// aggregate. The caller may retry the whole append.
	ErrVersionConflict = errors.Wrap(errors.ErrVersionConflict, "concurrent append on aggregate")

	// ErrSnapshotNotFound indicates no snapshot exists for the aggregate.
	ErrSnapshotNotFound = errors.Wrap(errors.ErrNotFound, "snapshot not found")
)
