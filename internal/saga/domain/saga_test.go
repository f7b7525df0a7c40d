package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/posflow/posflow/internal/errors"
)

// recordingStep tracks forward and compensating calls for assertions.
type recordingStep struct {
	name          string
	calls         *[]string
	executeErr    error
	compensateErr error
}

func (s *recordingStep) Name() string {
	return s.name
}

func (s *recordingStep) Execute(_ context.Context, sagaCtx Context) (Context, error) {
	*s.calls = append(*s.calls, s.name)
	if s.executeErr != nil {
		return sagaCtx, s.executeErr
	}
	sagaCtx[s.name] = true
	return sagaCtx, nil
}

func (s *recordingStep) Compensate(_ context.Context, sagaCtx Context) (Context, error) {
	*s.calls = append(*s.calls, CompensationPrefix+s.name)
	if s.compensateErr != nil {
		return sagaCtx, s.compensateErr
	}
	delete(sagaCtx, s.name)
	return sagaCtx, nil
}

func entryNames(log *Log) []string {
	names := make([]string, 0, len(log.Steps))
	for _, entry := range log.Steps {
		names = append(names, entry.StepName)
	}
	return names
}

func TestSagaExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("new saga starts pending", func(t *testing.T) {
		saga := NewSaga("create-order")
		assert.Equal(t, StatusPending, saga.Status())
		assert.False(t, saga.Done())
	})

	t.Run("all steps succeed", func(t *testing.T) {
		var calls []string
		saga := NewSaga("create-order").
			AddStep(&recordingStep{name: "a", calls: &calls}).
			AddStep(&recordingStep{name: "b", calls: &calls}).
			AddStep(&recordingStep{name: "c", calls: &calls})

		result, log, err := saga.Execute(ctx, Context{"seed": 1})
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, calls)
		assert.Equal(t, StatusCompleted, saga.Status())
		assert.True(t, saga.Done())
		assert.Equal(t, StatusCompleted, log.Status)
		assert.Equal(t, []string{"a", "b", "c"}, entryNames(log))
		require.NotNil(t, log.CompletedAt)
		assert.Empty(t, log.Error)

		assert.Equal(t, 1, result["seed"])
		assert.Equal(t, true, result["a"])
		assert.Equal(t, true, result["c"])
	})

	t.Run("context threads between steps", func(t *testing.T) {
		saga := NewSaga("create-order").
			AddStep(NewStep("first", func(_ context.Context, sagaCtx Context) (Context, error) {
				sagaCtx["total"] = 10
				return sagaCtx, nil
			}, nil)).
			AddStep(NewStep("second", func(_ context.Context, sagaCtx Context) (Context, error) {
				sagaCtx["total"] = sagaCtx["total"].(int) * 2
				return sagaCtx, nil
			}, nil))

		result, _, err := saga.Execute(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 20, result["total"])
	})

	t.Run("middle step failure compensates succeeded steps in reverse", func(t *testing.T) {
		var calls []string
		saga := NewSaga("create-order").
			AddStep(&recordingStep{name: "a", calls: &calls}).
			AddStep(&recordingStep{name: "b", calls: &calls, executeErr: fmt.Errorf("insufficient stock")}).
			AddStep(&recordingStep{name: "c", calls: &calls})

		_, log, err := saga.Execute(ctx, Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient stock")

		// c never ran, b is never compensated, a is undone.
		assert.Equal(t, []string{"a", "b", "compensate:a"}, calls)
		assert.Equal(t, StatusFailed, saga.Status())
		assert.True(t, saga.Done())

		assert.Equal(t, StatusFailed, log.Status)
		assert.Equal(t, "insufficient stock", log.Error)
		require.NotNil(t, log.CompletedAt)

		require.Len(t, log.Steps, 3)
		assert.Equal(t, StepEntry{StepName: "a", Success: true, Data: Context{"a": true}}, log.Steps[0])
		assert.Equal(t, "b", log.Steps[1].StepName)
		assert.False(t, log.Steps[1].Success)
		assert.Equal(t, "insufficient stock", log.Steps[1].Error)
		assert.Equal(t, "compensate:a", log.Steps[2].StepName)
		assert.True(t, log.Steps[2].Success)
	})

	t.Run("compensation failure does not stop earlier compensations", func(t *testing.T) {
		var calls []string
		saga := NewSaga("create-order").
			AddStep(&recordingStep{name: "a", calls: &calls}).
			AddStep(&recordingStep{name: "b", calls: &calls, compensateErr: fmt.Errorf("undo rejected")}).
			AddStep(&recordingStep{name: "c", calls: &calls, executeErr: fmt.Errorf("kds offline")})

		_, log, err := saga.Execute(ctx, Context{})
		require.Error(t, err)

		assert.Equal(t, []string{"a", "b", "c", "compensate:b", "compensate:a"}, calls)
		assert.Equal(t, StatusFailed, saga.Status())

		assert.Equal(t, []string{"a", "b", "c", "compensate:b", "compensate:a"}, entryNames(log))
		assert.False(t, log.Steps[3].Success)
		assert.Equal(t, "undo rejected", log.Steps[3].Error)
		assert.True(t, log.Steps[4].Success)
	})

	t.Run("failed compensation of the only succeeded step", func(t *testing.T) {
		var calls []string
		saga := NewSaga("create-order").
			AddStep(&recordingStep{name: "a", calls: &calls, compensateErr: fmt.Errorf("undo rejected")}).
			AddStep(&recordingStep{name: "b", calls: &calls, executeErr: fmt.Errorf("insufficient stock")})

		_, log, err := saga.Execute(ctx, Context{})
		require.Error(t, err)

		assert.Equal(t, []string{"a", "b", "compensate:a"}, entryNames(log))
		assert.False(t, log.Steps[2].Success)
		assert.Equal(t, "undo rejected", log.Steps[2].Error)
		assert.Equal(t, StatusFailed, log.Status)
	})

	t.Run("first step failure compensates nothing", func(t *testing.T) {
		var calls []string
		saga := NewSaga("create-order").
			AddStep(&recordingStep{name: "a", calls: &calls, executeErr: fmt.Errorf("boom")}).
			AddStep(&recordingStep{name: "b", calls: &calls})

		_, log, err := saga.Execute(ctx, Context{})
		require.Error(t, err)
		assert.Equal(t, []string{"a"}, calls)
		assert.Equal(t, []string{"a"}, entryNames(log))
		assert.Equal(t, StatusFailed, saga.Status())
	})

	t.Run("empty saga completes", func(t *testing.T) {
		saga := NewSaga("noop")
		result, log, err := saga.Execute(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, StatusCompleted, log.Status)
		assert.Empty(t, log.Steps)
	})

	t.Run("a saga executes at most once", func(t *testing.T) {
		saga := NewSaga("create-order")
		_, _, err := saga.Execute(ctx, nil)
		require.NoError(t, err)

		_, _, err = saga.Execute(ctx, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, StatusCompleted, saga.Status())
	})

	t.Run("log entries keep the context at write time", func(t *testing.T) {
		saga := NewSaga("create-order").
			AddStep(NewStep("first", func(_ context.Context, sagaCtx Context) (Context, error) {
				sagaCtx["value"] = "first"
				return sagaCtx, nil
			}, nil)).
			AddStep(NewStep("second", func(_ context.Context, sagaCtx Context) (Context, error) {
				sagaCtx["value"] = "second"
				return sagaCtx, nil
			}, nil))

		_, log, err := saga.Execute(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "first", log.Steps[0].Data["value"])
		assert.Equal(t, "second", log.Steps[1].Data["value"])
	})

	t.Run("no-op compensation passes the context through", func(t *testing.T) {
		sagaCtx := Context{"key": "value"}
		result, err := NoOpCompensation(ctx, sagaCtx)
		require.NoError(t, err)
		assert.Equal(t, sagaCtx, result)
	})

	t.Run("unique ids per saga", func(t *testing.T) {
		first := NewSaga("create-order")
		second := NewSaga("create-order")
		assert.NotEqual(t, first.ID, second.ID)
	})
}
