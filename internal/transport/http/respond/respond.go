package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joel710/agriflow/internal/service/models/domainerr"
)

type errorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

// Error translates a domain error variant into an HTTP status code and writes
// it. Internal errors are logged and hidden behind a generic message.
func Error(w http.ResponseWriter, err error) {
	var (
		validation   *domainerr.ValidationError
		stock        *domainerr.InsufficientStockError
		balance      *domainerr.InsufficientBalanceError
		transition   *domainerr.InvalidTransitionError
		forbidden    *domainerr.ForbiddenError
		notFound     *domainerr.NotFoundError
		conflict     *domainerr.ConflictError
		gatewayError *domainerr.GatewayInitiationError
	)

	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &forbidden):
		JSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.As(err, &notFound):
		JSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &transition), errors.As(err, &conflict):
		JSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &stock), errors.As(err, &balance):
		JSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.As(err, &gatewayError):
		JSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		slog.Error("Unhandled error", "error", err)
		JSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
