package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/posflow/posflow/internal/orders/domain"
	sagadomain "github.com/posflow/posflow/internal/saga/domain"
)

// Saga context keys.
const (
	contextKeyOrder        = "order"
	contextKeyStockChanges = "stock_changes"
)

// orderFromContext extracts the order the workflow placed in the saga
// context.
func orderFromContext(sagaCtx sagadomain.Context) (*domain.Order, error) {
	order, ok := sagaCtx[contextKeyOrder].(*domain.Order)
	if !ok || order == nil {
		return nil, fmt.Errorf("saga context is missing the order")
	}
	return order, nil
}

// stockChangesFromContext extracts the deductions recorded so far.
func stockChangesFromContext(sagaCtx sagadomain.Context) []domain.StockChange {
	changes, _ := sagaCtx[contextKeyStockChanges].([]domain.StockChange)
	return changes
}

// validateStockStep checks availability for every ingredient requirement.
// A pure read, so its compensation is an explicit no-op.
type validateStockStep struct {
	stock StockService
}

func newValidateStockStep(stock StockService) sagadomain.Step {
	return &validateStockStep{stock: stock}
}

func (s *validateStockStep) Name() string { return "validate-stock" }

func (s *validateStockStep) Execute(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}

	for _, requirement := range order.Requirements {
		available, err := s.stock.AvailableStock(ctx, requirement.IngredientID)
		if err != nil {
			return sagaCtx, err
		}
		if available < requirement.Quantity {
			return sagaCtx, fmt.Errorf(
				"insufficient stock for ingredient %s: need %.2f, have %.2f",
				requirement.IngredientID, requirement.Quantity, available,
			)
		}
	}
	return sagaCtx, nil
}

func (s *validateStockStep) Compensate(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	return sagadomain.NoOpCompensation(ctx, sagaCtx)
}

// createOrderRecordStep persists the order with its items; its compensation
// deletes them again.
type createOrderRecordStep struct {
	orders OrderRepository
}

func newCreateOrderRecordStep(orders OrderRepository) sagadomain.Step {
	return &createOrderRecordStep{orders: orders}
}

func (s *createOrderRecordStep) Name() string { return "create-order-record" }

func (s *createOrderRecordStep) Execute(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return sagaCtx, err
	}
	return sagaCtx, nil
}

func (s *createOrderRecordStep) Compensate(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return sagaCtx, err
	}
	return sagaCtx, nil
}

// deductStockStep applies every ingredient deduction, recording each applied
// change into the saga context. A mid-loop failure restores the deductions
// already applied before returning, so the step leaves either its full effect
// or none; when that restore fails too, both errors come back joined so the
// stranded deductions are visible to the caller. Its compensation, run when a
// later step fails, restores every recorded change and removes the movement
// records.
type deductStockStep struct {
	stock StockService
}

func newDeductStockStep(stock StockService) sagadomain.Step {
	return &deductStockStep{stock: stock}
}

func (s *deductStockStep) Name() string { return "deduct-ingredient-stock" }

func (s *deductStockStep) Execute(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}

	applied := make([]domain.StockChange, 0, len(order.Requirements))
	for _, requirement := range order.Requirements {
		newQty, err := s.stock.Deduct(ctx, requirement.IngredientID, requirement.Quantity, order.ID)
		if err != nil {
			if restoreErr := s.restore(ctx, order.ID, applied); restoreErr != nil {
				return sagaCtx, errors.Join(
					err,
					fmt.Errorf("failed to restore partial deductions: %w", restoreErr),
				)
			}
			return sagaCtx, err
		}
		applied = append(applied, domain.StockChange{
			IngredientID: requirement.IngredientID,
			PreviousQty:  newQty + requirement.Quantity,
			NewQty:       newQty,
		})
	}

	sagaCtx[contextKeyStockChanges] = applied
	return sagaCtx, nil
}

func (s *deductStockStep) Compensate(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}

	if err := s.restore(ctx, order.ID, stockChangesFromContext(sagaCtx)); err != nil {
		return sagaCtx, err
	}
	if err := s.stock.RemoveMovements(ctx, order.ID); err != nil {
		return sagaCtx, err
	}

	delete(sagaCtx, contextKeyStockChanges)
	return sagaCtx, nil
}

// restore puts back the given changes in reverse order, stopping on the
// first failure.
func (s *deductStockStep) restore(ctx context.Context, orderID string, changes []domain.StockChange) error {
	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]
		quantity := change.PreviousQty - change.NewQty
		if _, err := s.stock.Restore(ctx, change.IngredientID, quantity, orderID); err != nil {
			return err
		}
	}
	return nil
}

// sendToKdsStep notifies the kitchen display and marks the order preparing;
// its compensation reverts the order to cancelled.
type sendToKdsStep struct {
	orders OrderRepository
	kds    KitchenDisplay
}

func newSendToKdsStep(orders OrderRepository, kds KitchenDisplay) sagadomain.Step {
	return &sendToKdsStep{orders: orders, kds: kds}
}

func (s *sendToKdsStep) Name() string { return "send-to-kds" }

func (s *sendToKdsStep) Execute(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}

	if err := s.kds.Send(ctx, order); err != nil {
		return sagaCtx, err
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPreparing); err != nil {
		return sagaCtx, err
	}

	order.Status = domain.OrderStatusPreparing
	return sagaCtx, nil
}

func (s *sendToKdsStep) Compensate(ctx context.Context, sagaCtx sagadomain.Context) (sagadomain.Context, error) {
	order, err := orderFromContext(sagaCtx)
	if err != nil {
		return sagaCtx, err
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
		return sagaCtx, err
	}
	order.Status = domain.OrderStatusCancelled
	return sagaCtx, nil
}
