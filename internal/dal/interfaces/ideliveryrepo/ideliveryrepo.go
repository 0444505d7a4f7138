package ideliveryrepo

import (
	"context"

	"github.com/joel710/agriflow/internal/service/models/delivery"
)

// IDeliveryRepository is an interface for delivery postgres repository.
type IDeliveryRepository interface {
	// Insert creates the single delivery row of an order. A second insert
	// for the same order fails with domainerr.ConflictError.
	Insert(ctx context.Context, d delivery.Delivery) (*delivery.Delivery, error)

	GetByID(ctx context.Context, id int64) (*delivery.Delivery, error)

	// GetByIDForUpdate loads a delivery with an exclusive row lock.
	GetByIDForUpdate(ctx context.Context, id int64) (*delivery.Delivery, error)

	GetByOrderID(ctx context.Context, orderID int64) (*delivery.Delivery, error)

	// Update persists status, tracking fields and timestamps.
	Update(ctx context.Context, d *delivery.Delivery) error
}
