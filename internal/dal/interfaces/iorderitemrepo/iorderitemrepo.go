package iorderitemrepo

import (
	"context"

	"github.com/joel710/agriflow/internal/service/models/orderitem"
)

// IOrderItemRepository is an interface for order item postgres repository.
// Order items are immutable: there is no update or delete.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	QueryByOrderIds(ctx context.Context, orderIds []int64) ([]orderitem.OrderItem, error)
}
