// Package usecase implements the saga orchestrator: it creates sagas, runs
// them, and retains their execution logs in a bounded in-memory ledger for
// audit and inspection.
package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/saga/domain"
)

// DefaultLedgerCapacity bounds the in-memory saga log ledger. Once full, the
// oldest log is evicted per new execution, so memory stays flat for the
// process lifetime.
const DefaultLedgerCapacity = 1000

// Orchestrator creates and executes sagas and exposes their logs.
type Orchestrator interface {
	// CreateSaga allocates an empty pending saga.
	CreateSaga(name string) *domain.Saga

	// ExecuteSaga runs the saga and records its log in the ledger. The log
	// is the authoritative failure report; the error mirrors the failing
	// step for callers that only need success or failure.
	ExecuteSaga(ctx context.Context, saga *domain.Saga, initial domain.Context) (domain.Context, *domain.Log, error)

	// SagaLogs returns the retained logs, oldest first.
	SagaLogs() []domain.Log

	// SagaLog returns the log for one saga id, or ErrSagaLogNotFound.
	SagaLog(id uuid.UUID) (*domain.Log, error)
}

// orchestrator implements Orchestrator with a capacity-evicting ledger.
type orchestrator struct {
	logger   *slog.Logger
	capacity int

	mu    sync.Mutex
	order []uuid.UUID
	logs  map[uuid.UUID]domain.Log
}

// NewOrchestrator creates an Orchestrator retaining at most capacity logs.
// A non-positive capacity uses DefaultLedgerCapacity.
func NewOrchestrator(capacity int, logger *slog.Logger) Orchestrator {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &orchestrator{
		logger:   logger,
		capacity: capacity,
		logs:     make(map[uuid.UUID]domain.Log),
	}
}

// CreateSaga allocates an empty pending saga.
func (o *orchestrator) CreateSaga(name string) *domain.Saga {
	return domain.NewSaga(name)
}

// ExecuteSaga runs the saga, records its log and emits the outcome.
func (o *orchestrator) ExecuteSaga(
	ctx context.Context,
	saga *domain.Saga,
	initial domain.Context,
) (domain.Context, *domain.Log, error) {
	result, log, err := saga.Execute(ctx, initial)
	if apperrors.Is(err, domain.ErrSagaAlreadyExecuted) {
		return result, log, err
	}

	o.remember(*log)

	if o.logger != nil {
		switch {
		case err != nil:
			o.logger.Error("saga failed",
				slog.String("saga_id", log.SagaID.String()),
				slog.String("saga_name", log.SagaName),
				slog.Int("steps", len(log.Steps)),
				slog.Any("error", err),
			)
		default:
			o.logger.Info("saga completed",
				slog.String("saga_id", log.SagaID.String()),
				slog.String("saga_name", log.SagaName),
				slog.Int("steps", len(log.Steps)),
			)
		}
	}
	return result, log, err
}

// remember appends the log, evicting the oldest once the ledger is full.
func (o *orchestrator) remember(log domain.Log) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.logs[log.SagaID]; !exists {
		o.order = append(o.order, log.SagaID)
		for len(o.order) > o.capacity {
			delete(o.logs, o.order[0])
			o.order = o.order[1:]
		}
	}
	o.logs[log.SagaID] = log
}

// SagaLogs returns the retained logs, oldest first.
func (o *orchestrator) SagaLogs() []domain.Log {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.Log, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.logs[id])
	}
	return out
}

// SagaLog returns the log for one saga id.
func (o *orchestrator) SagaLog(id uuid.UUID) (*domain.Log, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	log, ok := o.logs[id]
	if !ok {
		return nil, domain.ErrSagaLogNotFound
	}
	return &log, nil
}
