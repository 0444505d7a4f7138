package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Create(ctx context.Context, p principal.Principal, model order.CreateOrderModel) (*order.Order, error)
}

// itemInCreateOrderRequest represents an item in a create order request. The
// caller names the product and quantity only; pricing is server-side.
type itemInCreateOrderRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity"  validate:"gt=0"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	Items           []itemInCreateOrderRequest `json:"items"           validate:"required,min=1,dive"`
	DeliveryAddress string                     `json:"deliveryAddress" validate:"required"`
	DeliveryNotes   string                     `json:"deliveryNotes"`
	PaymentMethod   string                     `json:"paymentMethod"   validate:"required"`
}

// toModel converts createOrderRequest to order.CreateOrderModel.
func (r *createOrderRequest) toModel() order.CreateOrderModel {
	items := make([]order.CreateOrderItemModel, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, order.CreateOrderItemModel{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	return order.CreateOrderModel{
		Items:           items,
		DeliveryAddress: r.DeliveryAddress,
		DeliveryNotes:   r.DeliveryNotes,
		PaymentMethod:   r.PaymentMethod,
	}
}

// CreateOrder handles the create order request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})

		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	created, err := service.Create(r.Context(), p, req.toModel())
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusCreated, created)
}
