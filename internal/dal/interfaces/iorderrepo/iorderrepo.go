package iorderrepo

import (
	"context"

	"github.com/joel710/agriflow/internal/service/models/order"
)

// IOrderRepository is an interface for order postgres repository.
type IOrderRepository interface {
	// Insert persists a new order row and returns it with its generated id.
	Insert(ctx context.Context, o order.Order) (*order.Order, error)

	// GetByID loads an order without its items.
	GetByID(ctx context.Context, id int64) (*order.Order, error)

	// GetByIDForUpdate loads an order with an exclusive row lock. Must be
	// called inside a unit of work.
	GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error)

	// Query retrieves orders based on filter criteria.
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// Update persists the mutable fields of an order: status, payment
	// status, payment method, transaction id and updated_at.
	Update(ctx context.Context, o *order.Order) error
}
