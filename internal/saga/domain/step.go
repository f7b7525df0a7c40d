// Package domain holds the saga model: ordered steps, the status state
// machine and the execution log. A saga runs its steps sequentially,
// threading a string-keyed context between them, and compensates the
// already-succeeded steps in reverse order when a step fails.
package domain

import (
	"context"
	"maps"
)

// Context carries a saga's working state. Steps receive the context produced
// by the previous step and return the context for the next one.
type Context map[string]any

// clone returns a shallow copy so log entries keep the state as it was when
// the entry was written.
func (c Context) clone() Context {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}

// Step is one unit of work inside a saga. Execute is attempted at most once
// per saga run; there are no automatic retries. Compensate must be safe to
// call even when Execute only partially applied its effect, and a step whose
// forward action is a pure read must still implement it, as an explicit
// no-op.
type Step interface {
	Name() string
	Execute(ctx context.Context, sagaCtx Context) (Context, error)
	Compensate(ctx context.Context, sagaCtx Context) (Context, error)
}

// StepFunc is the signature of a step's forward or compensating action.
type StepFunc func(ctx context.Context, sagaCtx Context) (Context, error)

// NoOpCompensation is the explicit compensation for steps without side
// effects.
func NoOpCompensation(_ context.Context, sagaCtx Context) (Context, error) {
	return sagaCtx, nil
}

// funcStep adapts a pair of functions into a Step.
type funcStep struct {
	name       string
	execute    StepFunc
	compensate StepFunc
}

// NewStep builds a Step from functions. A nil compensate defaults to
// NoOpCompensation.
func NewStep(name string, execute, compensate StepFunc) Step {
	if compensate == nil {
		compensate = NoOpCompensation
	}
	return &funcStep{name: name, execute: execute, compensate: compensate}
}

func (s *funcStep) Name() string {
	return s.name
}

func (s *funcStep) Execute(ctx context.Context, sagaCtx Context) (Context, error) {
	return s.execute(ctx, sagaCtx)
}

func (s *funcStep) Compensate(ctx context.Context, sagaCtx Context) (Context, error) {
	return s.compensate(ctx, sagaCtx)
}
