package getdelivery

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	GetByOrderID(ctx context.Context, p principal.Principal, orderID int64) (*delivery.Delivery, error)
}

// GetDelivery handles the read of an order's delivery.
func GetDelivery(w http.ResponseWriter, r *http.Request, service service) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "Invalid order id", http.StatusBadRequest)

		return
	}

	del, err := service.GetByOrderID(r.Context(), p, orderID)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, del)
}
