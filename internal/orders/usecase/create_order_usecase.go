package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/events"
	"github.com/posflow/posflow/internal/orders/domain"
	sagadomain "github.com/posflow/posflow/internal/saga/domain"
	sagausecase "github.com/posflow/posflow/internal/saga/usecase"
)

// SagaName is the name the create-order saga carries in logs and metrics.
const SagaName = "create-order"

// orderUseCase implements OrderUseCase over the saga orchestrator and the
// workflow's collaborators.
type orderUseCase struct {
	orchestrator sagausecase.Orchestrator
	stock        StockService
	orders       OrderRepository
	kds          KitchenDisplay
	bus          EventPublisher
	logger       *slog.Logger
}

// NewOrderUseCase creates a new OrderUseCase.
func NewOrderUseCase(
	orchestrator sagausecase.Orchestrator,
	stock StockService,
	orders OrderRepository,
	kds KitchenDisplay,
	bus EventPublisher,
	logger *slog.Logger,
) OrderUseCase {
	return &orderUseCase{
		orchestrator: orchestrator,
		stock:        stock,
		orders:       orders,
		kds:          kds,
		bus:          bus,
		logger:       logger,
	}
}

// CreateOrder builds the order, runs the create-order saga and, on success,
// publishes the resulting facts to the bus.
func (uc *orderUseCase) CreateOrder(
	ctx context.Context,
	request domain.CreateOrderRequest,
) (*domain.Order, *sagadomain.Log, error) {
	if err := request.Validate(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	order := &domain.Order{
		ID:           uuid.Must(uuid.NewV7()).String(),
		TableNumber:  request.TableNumber,
		Items:        request.Items,
		Requirements: request.Requirements,
		Status:       domain.OrderStatusPending,
		Total:        request.ItemsTotal(),
		CreatedAt:    time.Now().UTC(),
	}

	saga := uc.orchestrator.CreateSaga(SagaName).
		AddStep(newValidateStockStep(uc.stock)).
		AddStep(newCreateOrderRecordStep(uc.orders)).
		AddStep(newDeductStockStep(uc.stock)).
		AddStep(newSendToKdsStep(uc.orders, uc.kds))

	result, log, err := uc.orchestrator.ExecuteSaga(ctx, saga, sagadomain.Context{
		contextKeyOrder: order,
	})
	if err != nil {
		return nil, log, err
	}

	uc.publishFacts(order, stockChangesFromContext(result))
	return order, log, nil
}

// publishFacts emits the order and stock events after the saga committed.
// Subscribers react asynchronously; their failures never roll the order back.
func (uc *orderUseCase) publishFacts(order *domain.Order, changes []domain.StockChange) {
	if uc.bus == nil {
		return
	}

	uc.bus.Publish(events.NewOrderStatusChanged(
		order.ID,
		string(domain.OrderStatusPending),
		string(order.Status),
	))
	for _, change := range changes {
		uc.bus.Publish(events.NewStockChanged(
			change.IngredientID,
			change.PreviousQty,
			change.NewQty,
			"order:"+order.ID,
		))
	}

	if uc.logger != nil {
		uc.logger.Info("order created",
			slog.String("order_id", order.ID),
			slog.Int("items", len(order.Items)),
			slog.Int("stock_changes", len(changes)),
		)
	}
}
