// Package events defines the closed catalog of domain events published by
// business operations. A domain event is an immutable fact about something
// that already happened; it is created once by the operation that caused the
// fact and consumed by zero or more subscribers on the event bus.
//
// Subscription filtering is done by stable string tags (the EventX constants)
// rather than runtime types, so the catalog stays enumerable and every
// subscriber names exactly the facts it cares about.
package events

import (
	"time"
)

// Stable event name tags. These are persisted as the event_type of stored
// events and used as subscription keys on the bus, so they must never change
// for an existing event shape.
const (
	EventStockChanged               = "stock.changed"
	EventOrderStatusChanged         = "order.status_changed"
	EventTransactionCreated         = "transaction.created"
	EventTransactionVoided          = "transaction.voided"
	EventShiftStarted               = "shift.started"
	EventShiftEnded                 = "shift.ended"
	EventDeviceSyncStatusChanged    = "device.sync_status_changed"
	EventStockTransferStatusChanged = "stock_transfer.status_changed"
)

// DomainEvent is the contract every catalog event satisfies.
type DomainEvent interface {
	// EventName returns the stable string tag of the event.
	EventName() string
	// OccurredOn returns the time the fact happened, set at construction.
	OccurredOn() time.Time
}

// StockChanged records a change of an ingredient's stock quantity.
type StockChanged struct {
	IngredientID string    `json:"ingredient_id"`
	PreviousQty  float64   `json:"previous_qty"`
	NewQty       float64   `json:"new_qty"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewStockChanged creates a StockChanged event stamped with the current time.
func NewStockChanged(ingredientID string, previousQty, newQty float64, reason string) StockChanged {
	return StockChanged{
		IngredientID: ingredientID,
		PreviousQty:  previousQty,
		NewQty:       newQty,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e StockChanged) EventName() string     { return EventStockChanged }
func (e StockChanged) OccurredOn() time.Time { return e.OccurredAt }

// OrderStatusChanged records a transition of an order between statuses.
type OrderStatusChanged struct {
	OrderID        string    `json:"order_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewOrderStatusChanged creates an OrderStatusChanged event stamped with the current time.
func NewOrderStatusChanged(orderID, previousStatus, newStatus string) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:        orderID,
		PreviousStatus: previousStatus,
		NewStatus:      newStatus,
		OccurredAt:     time.Now().UTC(),
	}
}

func (e OrderStatusChanged) EventName() string     { return EventOrderStatusChanged }
func (e OrderStatusChanged) OccurredOn() time.Time { return e.OccurredAt }

// TransactionCreated records a completed payment transaction for an order.
type TransactionCreated struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       string    `json:"order_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewTransactionCreated creates a TransactionCreated event stamped with the current time.
func NewTransactionCreated(transactionID, orderID string, amount float64, paymentMethod string) TransactionCreated {
	return TransactionCreated{
		TransactionID: transactionID,
		OrderID:       orderID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		OccurredAt:    time.Now().UTC(),
	}
}

func (e TransactionCreated) EventName() string     { return EventTransactionCreated }
func (e TransactionCreated) OccurredOn() time.Time { return e.OccurredAt }

// TransactionVoided records the voiding of a previously created transaction.
type TransactionVoided struct {
	TransactionID string    `json:"transaction_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewTransactionVoided creates a TransactionVoided event stamped with the current time.
func NewTransactionVoided(transactionID, reason string) TransactionVoided {
	return TransactionVoided{
		TransactionID: transactionID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}

func (e TransactionVoided) EventName() string     { return EventTransactionVoided }
func (e TransactionVoided) OccurredOn() time.Time { return e.OccurredAt }

// ShiftStarted records the opening of a cashier shift.
type ShiftStarted struct {
	ShiftID      string    `json:"shift_id"`
	CashierID    string    `json:"cashier_id"`
	OpeningFloat float64   `json:"opening_float"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewShiftStarted creates a ShiftStarted event stamped with the current time.
func NewShiftStarted(shiftID, cashierID string, openingFloat float64) ShiftStarted {
	return ShiftStarted{
		ShiftID:      shiftID,
		CashierID:    cashierID,
		OpeningFloat: openingFloat,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e ShiftStarted) EventName() string     { return EventShiftStarted }
func (e ShiftStarted) OccurredOn() time.Time { return e.OccurredAt }

// ShiftEnded records the closing of a cashier shift.
type ShiftEnded struct {
	ShiftID      string    `json:"shift_id"`
	CashierID    string    `json:"cashier_id"`
	ClosingTotal float64   `json:"closing_total"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewShiftEnded creates a ShiftEnded event stamped with the current time.
func NewShiftEnded(shiftID, cashierID string, closingTotal float64) ShiftEnded {
	return ShiftEnded{
		ShiftID:      shiftID,
		CashierID:    cashierID,
		ClosingTotal: closingTotal,
		OccurredAt:   time.Now().UTC(),
	}
}

func (e ShiftEnded) EventName() string     { return EventShiftEnded }
func (e ShiftEnded) OccurredOn() time.Time { return e.OccurredAt }

// DeviceSyncStatusChanged records a POS device moving between sync states.
type DeviceSyncStatusChanged struct {
	DeviceID   string    `json:"device_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewDeviceSyncStatusChanged creates a DeviceSyncStatusChanged event stamped with the current time.
func NewDeviceSyncStatusChanged(deviceID, status string) DeviceSyncStatusChanged {
	return DeviceSyncStatusChanged{
		DeviceID:   deviceID,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}

func (e DeviceSyncStatusChanged) EventName() string     { return EventDeviceSyncStatusChanged }
func (e DeviceSyncStatusChanged) OccurredOn() time.Time { return e.OccurredAt }

// StockTransferStatusChanged records a stock transfer between locations
// moving through its workflow.
type StockTransferStatusChanged struct {
	TransferID     string    `json:"transfer_id"`
	FromLocation   string    `json:"from_location"`
	ToLocation     string    `json:"to_location"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewStockTransferStatusChanged creates a StockTransferStatusChanged event
// stamped with the current time.
func NewStockTransferStatusChanged(
	transferID, fromLocation, toLocation, previousStatus, newStatus string,
) StockTransferStatusChanged {
	return StockTransferStatusChanged{
		TransferID:     transferID,
		FromLocation:   fromLocation,
		ToLocation:     toLocation,
		PreviousStatus: previousStatus,
		NewStatus:      newStatus,
		OccurredAt:     time.Now().UTC(),
	}
}

func (e StockTransferStatusChanged) EventName() string     { return EventStockTransferStatusChanged }
func (e StockTransferStatusChanged) OccurredOn() time.Time { return e.OccurredAt }
