package initiatepayment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Initiate(ctx context.Context, p principal.Principal, model payment.InitiateModel) (*payment.InitiationResult, error)
}

// initiatePaymentRequest represents a payment initiation request. Method is
// optional; when empty the method chosen at checkout is used.
type initiatePaymentRequest struct {
	Method  string            `json:"method"`
	Details map[string]string `json:"details"`
}

// InitiatePayment handles the payment initiation request.
func InitiatePayment(w http.ResponseWriter, r *http.Request, service service) {
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

	var req initiatePaymentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			slog.Error("Error decoding request body for initiate payment", "error", err)

			return
		}
	}

	result, err := service.Initiate(r.Context(), p, payment.InitiateModel{
		OrderID: id,
		Method:  req.Method,
		Details: req.Details,
	})
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, result)
}
