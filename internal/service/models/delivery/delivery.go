package delivery

import (
	"database/sql/driver"
	"errors"
	"time"
)

// Status is the state of the single delivery attached to an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid delivery status")

var statusTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPreparing: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusInTransit: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusInTransit: {
		StatusDelivered: true,
		StatusFailed:    true,
	},
	StatusDelivered: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPreparing, StatusInTransit,
		StatusDelivered, StatusFailed, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) String() string { return string(s) }

func (s Status) Value() (driver.Value, error) { return s.String(), nil }

func (s Status) CanTransitionTo(next Status) bool {
	return statusTransitions[s][next]
}

func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Delivery is the one delivery record of an order, created when the order is
// confirmed. Its delivered state is the trigger that finalizes the order.
type Delivery struct {
	ID             int64      `json:"id"`
	OrderID        int64      `json:"orderId"`
	Status         Status     `json:"status"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	Carrier        string     `json:"carrier,omitempty"`
	EstimatedAt    *time.Time `json:"estimatedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// New returns the delivery row inserted when an order reaches confirmed.
func New(orderID int64, now time.Time) Delivery {
	return Delivery{
		OrderID:   orderID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
