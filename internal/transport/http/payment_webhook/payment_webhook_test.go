package paymentwebhook_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	paymentwebhook "github.com/joel710/agriflow/internal/transport/http/payment_webhook"
	"github.com/stretchr/testify/assert"
)

type mockService struct {
	handleWebhookFunc func(ctx context.Context, provider string, header http.Header, body []byte) error
}

func (m *mockService) HandleWebhook(
	ctx context.Context,
	provider string,
	header http.Header,
	body []byte,
) error {
	return m.handleWebhookFunc(ctx, provider, header, body)
}

func TestPaymentWebhook(t *testing.T) {
	tests := []struct {
		name       string
		handleErr  error
		wantStatus int
	}{
		{name: "applied", handleErr: nil, wantStatus: http.StatusOK},
		{
			name:       "rejected_payload",
			handleErr:  &domainerr.ValidationError{Field: "payload", Reason: "signature mismatch"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown_order",
			handleErr:  &domainerr.NotFoundError{Entity: "order", ID: 99},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "internal_failure",
			handleErr:  errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotProvider string
			svc := &mockService{
				handleWebhookFunc: func(_ context.Context, provider string, _ http.Header, _ []byte) error {
					gotProvider = provider

					return tt.handleErr
				},
			}

			router := chi.NewRouter()
			router.Post("/api/webhooks/payment/{provider}", func(w http.ResponseWriter, r *http.Request) {
				paymentwebhook.PaymentWebhook(w, r, svc)
			})

			req := httptest.NewRequest(
				http.MethodPost,
				"/api/webhooks/payment/tmoney",
				bytes.NewReader([]byte(`{"orderId":1}`)),
			)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "tmoney", gotProvider)
		})
	}
}
