// Package domain holds the order model used by the create-order workflow.
package domain

import (
	"time"

	validation "github.com/jellydator/validation"
)

// OrderStatus is an order's lifecycle state as seen by the kitchen.
type OrderStatus string

// Order statuses.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem is one product line on an order.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  float64
	UnitPrice float64
}

// IngredientRequirement is the stock an order consumes from one ingredient.
type IngredientRequirement struct {
	IngredientID string
	Quantity     float64
}

// Order is a customer order assembled by the create-order workflow.
type Order struct {
	ID           string
	TableNumber  int
	Items        []OrderItem
	Requirements []IngredientRequirement
	Status       OrderStatus
	Total        float64
	CreatedAt    time.Time
}

// StockChange records one applied stock deduction, kept so compensation and
// event publication know exactly what happened.
type StockChange struct {
	IngredientID string
	PreviousQty  float64
	NewQty       float64
}

// CreateOrderRequest carries everything needed to create an order.
type CreateOrderRequest struct {
	TableNumber  int
	Items        []OrderItem
	Requirements []IngredientRequirement
}

// Validate checks that the request carries at least one item and coherent
// quantities.
func (r CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TableNumber, validation.Min(1)),
		validation.Field(&r.Items, validation.Required),
	)
}

// ItemsTotal sums the request's line totals.
func (r CreateOrderRequest) ItemsTotal() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.Quantity * item.UnitPrice
	}
	return total
}
