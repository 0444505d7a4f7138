package updatestatus

import (
	"context"
	"encoding/json"
	"log/slog"
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
	UpdateStatus(ctx context.Context, p principal.Principal, orderID int64, next order.Status) (*order.Order, error)
}

// updateStatusRequest represents an update order status request.
type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles the staff order status transition request.
func UpdateStatus(w http.ResponseWriter, r *http.Request, service service) {
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

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for update status", "error", err)

		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		http.Error(w, "Invalid order status", http.StatusBadRequest)

		return
	}

	ord, err := service.UpdateStatus(r.Context(), p, id, status)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, ord)
}
