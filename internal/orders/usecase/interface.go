// Package usecase implements the create-order workflow as a saga: validate
// stock, persist the order, deduct ingredient stock, notify the kitchen
// display, with each side effect undone in reverse order when a later step
// fails.
package usecase

import (
	"context"

	"github.com/posflow/posflow/internal/events"
	"github.com/posflow/posflow/internal/orders/domain"
	sagadomain "github.com/posflow/posflow/internal/saga/domain"
)

// StockService is the inventory collaborator consumed by saga steps. Deduct
// and Restore record stock movements under the given reference; atomicity of
// the quantity math is the service's own responsibility.
type StockService interface {
	AvailableStock(ctx context.Context, ingredientID string) (float64, error)
	Deduct(ctx context.Context, ingredientID string, quantity float64, reference string) (float64, error)
	Restore(ctx context.Context, ingredientID string, quantity float64, reference string) (float64, error)
	RemoveMovements(ctx context.Context, reference string) error
}

// OrderRepository is the order persistence collaborator.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, orderID string) error
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// KitchenDisplay is the kitchen notification collaborator.
type KitchenDisplay interface {
	Send(ctx context.Context, order *domain.Order) error
}

// EventPublisher publishes domain events after the saga committed. Reactions
// are fire-and-forget and intentionally outside the saga's compensation
// boundary.
type EventPublisher interface {
	Publish(event events.DomainEvent)
}

// OrderUseCase creates orders through the saga orchestrator.
type OrderUseCase interface {
	// CreateOrder runs the create-order saga. The returned log is the full
	// account of what ran; on failure every applied side effect has been
	// compensated.
	CreateOrder(ctx context.Context, request domain.CreateOrderRequest) (*domain.Order, *sagadomain.Log, error)
}
