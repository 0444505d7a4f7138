package product

import (
	"time"

	"github.com/joel710/agriflow/internal/service/models/currency"
)

// Product is the catalog read model this service holds locally. The catalog
// service owns everything except stock_quantity, which is mutated here only
// through the stock ledger operations (reserve on order creation, release on
// cancellation). Prices on order lines are always copied from this record,
// never accepted from the caller.
type Product struct {
	ID            int64             `json:"id"`
	ProducerID    int64             `json:"producerId"`
	Title         string            `json:"title"`
	PriceCents    int64             `json:"priceCents"`
	PriceCurrency currency.Currency `json:"priceCurrency"`
	StockQuantity int               `json:"stockQuantity"`
	IsAvailable   bool              `json:"isAvailable"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
