// Package mocks provides mock implementations of the create-order workflow
// collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/posflow/posflow/internal/events"
	"github.com/posflow/posflow/internal/orders/domain"
)

// MockStockService is a mock implementation of StockService for testing.
type MockStockService struct {
	mock.Mock
}

// AvailableStock mocks the AvailableStock method of StockService.
func (m *MockStockService) AvailableStock(ctx context.Context, ingredientID string) (float64, error) {
	args := m.Called(ctx, ingredientID)
	return args.Get(0).(float64), args.Error(1)
}

// Deduct mocks the Deduct method of StockService.
func (m *MockStockService) Deduct(
	ctx context.Context,
	ingredientID string,
	quantity float64,
	reference string,
) (float64, error) {
	args := m.Called(ctx, ingredientID, quantity, reference)
	return args.Get(0).(float64), args.Error(1)
}

// Restore mocks the Restore method of StockService.
func (m *MockStockService) Restore(
	ctx context.Context,
	ingredientID string,
	quantity float64,
	reference string,
) (float64, error) {
	args := m.Called(ctx, ingredientID, quantity, reference)
	return args.Get(0).(float64), args.Error(1)
}

// RemoveMovements mocks the RemoveMovements method of StockService.
func (m *MockStockService) RemoveMovements(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of OrderRepository for testing.
type MockOrderRepository struct {
	mock.Mock
}

// Create mocks the Create method of OrderRepository.
func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// Delete mocks the Delete method of OrderRepository.
func (m *MockOrderRepository) Delete(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// UpdateStatus mocks the UpdateStatus method of OrderRepository.
func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

// MockKitchenDisplay is a mock implementation of KitchenDisplay for testing.
type MockKitchenDisplay struct {
	mock.Mock
}

// Send mocks the Send method of KitchenDisplay.
func (m *MockKitchenDisplay) Send(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing.
type MockEventPublisher struct {
	mock.Mock
}

// Publish mocks the Publish method of EventPublisher.
func (m *MockEventPublisher) Publish(event events.DomainEvent) {
	m.Called(event)
}
