package cancelorder

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Cancel(ctx context.Context, p principal.Principal, orderID int64) (*order.Order, error)
}

// CancelOrder handles the order cancellation request.
func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})

		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid order id", http.StatusBadRequest)

		return
	}

	ord, err := service.Cancel(r.Context(), p, id)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, ord)
}
