package domain

import (
	"github.com/posflow/posflow/internal/errors"
)

// Saga error definitions.
var (
	// ErrSagaAlreadyExecuted indicates Execute was called twice on the same
	// saga. A saga is terminal once its execution returns.
	ErrSagaAlreadyExecuted = errors.Wrap(errors.ErrConflict, "saga already executed")

	// ErrSagaLogNotFound indicates no log exists for the saga id.
	ErrSagaLogNotFound = errors.Wrap(errors.ErrNotFound, "saga log not found")
)
