package order

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/joel710/agriflow/internal/service/models/currency"
	"github.com/joel710/agriflow/internal/service/models/orderitem"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipping  Status = "shipping"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is the settlement state of an order, tracked independently of
// the fulfillment status. A failed attempt keeps the order itself untouched so
// the customer can retry with another method.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

var (
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

var statusTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusShipping:  true,
		StatusCancelled: true,
	},
	StatusShipping: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {
		PaymentPaid:   true,
		PaymentFailed: true,
	},
	PaymentFailed: {
		PaymentPaid:   true,
		PaymentFailed: true,
	},
	// paid is absorbing: only the explicit refund bookkeeping may leave it.
	PaymentPaid: {
		PaymentRefunded: true,
	},
	PaymentRefunded: {},
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusPreparing,
		StatusShipping, StatusDelivered, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentPaid, PaymentRefunded, PaymentFailed:
		return PaymentStatus(s), nil
	default:
		return "", ErrInvalidPaymentStatus
	}
}

func (s Status) String() string { return string(s) }

func (s Status) Value() (driver.Value, error) { return s.String(), nil }

// CanTransitionTo reports whether the fulfillment status may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	return statusTransitions[s][next]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// CustomerCancellable reports whether the order's own customer may still
// cancel. Staff may cancel from any non-terminal status instead.
func (s Status) CustomerCancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) Value() (driver.Value, error) { return s.String(), nil }

// CanTransitionTo reports whether the payment status may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return paymentTransitions[s][next]
}

// Order represents a customer order. It is created once per checkout with its
// immutable lines and is never deleted; cancellation is a status transition.
type Order struct {
	ID                   int64                 `json:"id"`
	CustomerID           int64                 `json:"customerId"`
	Status               Status                `json:"status"`
	PaymentStatus        PaymentStatus         `json:"paymentStatus"`
	PaymentMethod        string                `json:"paymentMethod"`
	PaymentTransactionID *string               `json:"paymentTransactionId,omitempty"`
	DeliveryAddress      string                `json:"deliveryAddress"`
	DeliveryNotes        string                `json:"deliveryNotes,omitempty"`
	TotalPriceCents      int64                 `json:"totalPriceCents"`
	TotalPriceCurrency   currency.Currency     `json:"totalPriceCurrency"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
	OrderItems           []orderitem.OrderItem `json:"orderItems"`
}
