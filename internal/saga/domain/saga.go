package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/posflow/posflow/internal/errors"
)

// CompensationPrefix marks compensation entries in a saga log.
const CompensationPrefix = "compensate:"

// StepEntry records one step attempt, forward or compensating. Compensation
// entries carry the step name prefixed with CompensationPrefix.
type StepEntry struct {
	StepName string
	Success  bool
	Data     Context
	Error    string
}

// Log is the authoritative report of one saga execution: the caller never
// needs to inspect errors to know what ran, what failed and what was undone.
type Log struct {
	SagaID      uuid.UUID
	SagaName    string
	Status      Status
	Steps       []StepEntry
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Saga is one execution of a named, ordered list of steps. It is created
// pending, mutated only by its own Execute, and terminal once Execute
// returns.
type Saga struct {
	ID   uuid.UUID
	Name string

	steps    []Step
	machine  *statusMachine
	executed bool
	log      Log
}

// NewSaga creates an empty pending saga.
func NewSaga(name string) *Saga {
	return &Saga{
		ID:      uuid.Must(uuid.NewV7()),
		Name:    name,
		machine: newStatusMachine(),
	}
}

// AddStep appends a step; steps run in the order added.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Status returns the saga's current lifecycle state.
func (s *Saga) Status() Status {
	return s.machine.status()
}

// Done reports whether the saga reached a terminal state.
func (s *Saga) Done() bool {
	return s.machine.done()
}

// Log returns the execution log written by Execute.
func (s *Saga) Log() *Log {
	return &s.log
}

// Execute runs the steps in order, threading the context each step returns
// into the next. On the first step error, forward execution stops, every
// already-succeeded step is compensated in strict reverse order, and the
// saga ends FAILED; the failing step itself is never compensated and no
// later step runs. On success the saga ends COMPLETED.
//
// The returned error reports the failing step; the log is the full account
// either way.
func (s *Saga) Execute(ctx context.Context, initial Context) (Context, *Log, error) {
	if s.executed {
		return initial, &s.log, ErrSagaAlreadyExecuted
	}
	s.executed = true

	s.log = Log{
		SagaID:    s.ID,
		SagaName:  s.Name,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.machine.send(eventStart)

	current := initial
	if current == nil {
		current = Context{}
	}

	for i, step := range s.steps {
		next, err := step.Execute(ctx, current)
		if err != nil {
			s.log.Steps = append(s.log.Steps, StepEntry{
				StepName: step.Name(),
				Success:  false,
				Error:    err.Error(),
			})

			s.machine.send(eventStepFailed)
			s.log.Status = StatusCompensating
			current = s.compensate(ctx, current, i)

			s.machine.send(eventCompensated)
			s.finish(StatusFailed, err.Error())
			return current, &s.log, apperrors.Wrapf(err, "saga %s failed at step %s", s.Name, step.Name())
		}
		if next != nil {
			current = next
		}

		s.log.Steps = append(s.log.Steps, StepEntry{
			StepName: step.Name(),
			Success:  true,
			Data:     current.clone(),
		})
	}

	s.machine.send(eventComplete)
	s.finish(StatusCompleted, "")
	return current, &s.log, nil
}

// compensate undoes steps 0..failedIndex-1 in reverse order. Each attempt is
// independent: a compensation that itself fails is recorded and the earlier
// steps are still compensated.
func (s *Saga) compensate(ctx context.Context, current Context, failedIndex int) Context {
	for i := failedIndex - 1; i >= 0; i-- {
		step := s.steps[i]
		entry := StepEntry{StepName: CompensationPrefix + step.Name()}

		next, err := step.Compensate(ctx, current)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Success = true
			if next != nil {
				current = next
			}
			entry.Data = current.clone()
		}
		s.log.Steps = append(s.log.Steps, entry)
	}
	return current
}

func (s *Saga) finish(status Status, errMessage string) {
	now := time.Now().UTC()
	s.log.Status = status
	s.log.CompletedAt = &now
	s.log.Error = errMessage
}
