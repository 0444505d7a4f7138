package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) error
}

// PaymentWebhook handles an asynchronous payment notification. Providers retry
// on anything but 2xx, so business-level no-ops come back as 200; only
// unauthenticated or malformed payloads are rejected.
func PaymentWebhook(w http.ResponseWriter, r *http.Request, service service) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)

		return
	}

	if err := service.HandleWebhook(r.Context(), provider, r.Header, body); err != nil {
		var validation *domainerr.ValidationError
		var notFound *domainerr.NotFoundError
		if errors.As(err, &validation) || errors.As(err, &notFound) {
			slog.Warn("Rejected payment webhook", "provider", provider, "error", err)
			respond.JSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

			return
		}

		slog.Error("Error applying payment webhook", "provider", provider, "error", err)
		respond.JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})

		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
