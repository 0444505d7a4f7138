package orderitem

import (
	"time"

	"github.com/joel710/agriflow/internal/service/models/currency"
)

// OrderItem represents one line of an order. Lines are created atomically with
// the order and are immutable afterwards: no re-pricing, no quantity edits.
type OrderItem struct {
	ID             int64             `json:"id"`
	OrderID        int64             `json:"orderId"`
	ProductID      int64             `json:"productId"`
	ProductTitle   string            `json:"productTitle"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unitPriceCents"`
	LineTotalCents int64             `json:"lineTotalCents"`
	PriceCurrency  currency.Currency `json:"priceCurrency"`
	CreatedAt      time.Time         `json:"createdAt"`
}
