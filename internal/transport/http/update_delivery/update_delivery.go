package updatedelivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/service/services/deliverysvc"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	UpdateStatus(
		ctx context.Context,
		p principal.Principal,
		deliveryID int64,
		model deliverysvc.UpdateModel,
	) (*delivery.Delivery, error)
}

// updateDeliveryRequest represents a staff delivery update request.
type updateDeliveryRequest struct {
	Status         string     `json:"status"`
	TrackingNumber string     `json:"trackingNumber"`
	Carrier        string     `json:"carrier"`
	EstimatedAt    *time.Time `json:"estimatedAt"`
}

// UpdateDelivery handles the staff delivery status transition request.
func UpdateDelivery(w http.ResponseWriter, r *http.Request, service service) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})

		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid delivery id", http.StatusBadRequest)

		return
	}

	var req updateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for update delivery", "error", err)

		return
	}

	status, err := delivery.ParseStatus(req.Status)
	if err != nil {
		http.Error(w, "Invalid delivery status", http.StatusBadRequest)

		return
	}

	del, err := service.UpdateStatus(r.Context(), p, id, deliverysvc.UpdateModel{
		Status:         status,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		EstimatedAt:    req.EstimatedAt,
	})
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, del)
}
