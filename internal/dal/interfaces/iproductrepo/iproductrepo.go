package iproductrepo

import (
	"context"

	"github.com/joel710/agriflow/internal/service/models/product"
)

// IProductRepository is the stock ledger over the products read model.
type IProductRepository interface {
	// GetByID loads a product row.
	GetByID(ctx context.Context, id int64) (*product.Product, error)

	// Reserve atomically decrements stock_quantity by qty if the product is
	// available and has at least qty units, and returns the product snapshot
	// used for pricing the order line. It fails with
	// domainerr.InsufficientStockError otherwise. Must be called inside a
	// unit of work so a failed sibling line rolls the reservation back.
	Reserve(ctx context.Context, productID int64, qty int) (*product.Product, error)

	// Release increments stock_quantity back. Compensating cancellation
	// path only, never exposed as a general increment.
	Release(ctx context.Context, productID int64, qty int) error
}
