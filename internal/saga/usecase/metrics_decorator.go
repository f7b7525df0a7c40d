package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/metrics"
	"github.com/posflow/posflow/internal/saga/domain"
)

// orchestratorWithMetrics decorates Orchestrator with metrics
// instrumentation.
type orchestratorWithMetrics struct {
	next    Orchestrator
	metrics metrics.BusinessMetrics
}

// NewOrchestratorWithMetrics wraps an Orchestrator with metrics recording.
func NewOrchestratorWithMetrics(orchestrator Orchestrator, m metrics.BusinessMetrics) Orchestrator {
	return &orchestratorWithMetrics{
		next:    orchestrator,
		metrics: m,
	}
}

func (o *orchestratorWithMetrics) CreateSaga(name string) *domain.Saga {
	return o.next.CreateSaga(name)
}

func (o *orchestratorWithMetrics) ExecuteSaga(
	ctx context.Context,
	saga *domain.Saga,
	initial domain.Context,
) (domain.Context, *domain.Log, error) {
	start := time.Now()
	result, log, err := o.next.ExecuteSaga(ctx, saga, initial)

	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordOperation(ctx, "saga", saga.Name, status)
	o.metrics.RecordDuration(ctx, "saga", saga.Name, time.Since(start), status)
	if log != nil {
		o.metrics.RecordCompensation(ctx, saga.Name, countCompensations(log))
	}
	return result, log, err
}

// countCompensations counts the compensation entries in a saga log.
func countCompensations(log *domain.Log) int64 {
	var n int64
	for _, entry := range log.Steps {
		if strings.HasPrefix(entry.StepName, domain.CompensationPrefix) {
			n++
		}
	}
	return n
}

func (o *orchestratorWithMetrics) SagaLogs() []domain.Log {
	return o.next.SagaLogs()
}

func (o *orchestratorWithMetrics) SagaLog(id uuid.UUID) (*domain.Log, error) {
	return o.next.SagaLog(id)
}
