package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posflow/posflow/internal/orders/domain"
	"github.com/posflow/posflow/internal/orders/usecase/mocks"
	sagadomain "github.com/posflow/posflow/internal/saga/domain"
)

func deductStepContext() sagadomain.Context {
	return sagadomain.Context{
		contextKeyOrder: &domain.Order{
			ID: "order-1",
			Requirements: []domain.IngredientRequirement{
				{IngredientID: "ing-1", Quantity: 2},
				{IngredientID: "ing-2", Quantity: 0.5},
			},
		},
	}
}

func TestDeductStockStepExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("mid-loop failure restores the applied deductions", func(t *testing.T) {
		stock := &mocks.MockStockService{}
		stock.On("Deduct", ctx, "ing-1", float64(2), "order-1").Return(float64(8), nil)
		stock.On("Deduct", ctx, "ing-2", float64(0.5), "order-1").
			Return(float64(0), fmt.Errorf("deduct rejected"))
		stock.On("Restore", ctx, "ing-1", float64(2), "order-1").Return(float64(10), nil)

		step := newDeductStockStep(stock)
		sagaCtx := deductStepContext()
		_, err := step.Execute(ctx, sagaCtx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "deduct rejected")
		assert.NotContains(t, err.Error(), "restore")
		assert.NotContains(t, sagaCtx, contextKeyStockChanges)
		stock.AssertExpectations(t)
	})

	t.Run("failed restore surfaces alongside the deduct failure", func(t *testing.T) {
		stock := &mocks.MockStockService{}
		stock.On("Deduct", ctx, "ing-1", float64(2), "order-1").Return(float64(8), nil)
		stock.On("Deduct", ctx, "ing-2", float64(0.5), "order-1").
			Return(float64(0), fmt.Errorf("deduct rejected"))
		stock.On("Restore", ctx, "ing-1", float64(2), "order-1").
			Return(float64(0), fmt.Errorf("restore rejected"))

		step := newDeductStockStep(stock)
		_, err := step.Execute(ctx, deductStepContext())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "deduct rejected")
		assert.Contains(t, err.Error(), "failed to restore partial deductions")
		assert.Contains(t, err.Error(), "restore rejected")
		stock.AssertExpectations(t)
	})
}
