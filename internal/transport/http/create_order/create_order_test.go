package createorder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/principal"
	createorder "github.com/joel710/agriflow/internal/transport/http/create_order"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	createFunc func(ctx context.Context, p principal.Principal, model order.CreateOrderModel) (*order.Order, error)
}

func (m *mockService) Create(
	ctx context.Context,
	p principal.Principal,
	model order.CreateOrderModel,
) (*order.Order, error) {
	return m.createFunc(ctx, p, model)
}

func doRequest(svc *mockService, body string, authenticated bool) *httptest.ResponseRecorder {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		createorder.CreateOrder(w, r, svc)
	})
	if authenticated {
		handler = auth.NewAuthMiddleware(handler)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(body)))
	if authenticated {
		req.Header.Set(auth.HeaderUserID, "1")
		req.Header.Set(auth.HeaderRole, "customer")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestCreateOrder(t *testing.T) {
	validBody := `{
		"items": [{"productId": 3, "quantity": 2}],
		"deliveryAddress": "Lome, Agbalepedogan",
		"paymentMethod": "wallet"
	}`

	t.Run("created", func(t *testing.T) {
		var gotModel order.CreateOrderModel
		var gotPrincipal principal.Principal
		svc := &mockService{
			createFunc: func(_ context.Context, p principal.Principal, model order.CreateOrderModel) (*order.Order, error) {
				gotPrincipal = p
				gotModel = model

				return &order.Order{ID: 10, CustomerID: p.UserID, Status: order.StatusPending}, nil
			},
		}

		rec := doRequest(svc, validBody, true)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(1), gotPrincipal.UserID)
		require.Len(t, gotModel.Items, 1)
		assert.Equal(t, int64(3), gotModel.Items[0].ProductID)
		assert.Equal(t, 2, gotModel.Items[0].Quantity)

		var created order.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, int64(10), created.ID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := doRequest(&mockService{}, validBody, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed_json", func(t *testing.T) {
		rec := doRequest(&mockService{}, `{"items": `, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty_items", func(t *testing.T) {
		rec := doRequest(&mockService{}, `{
			"items": [],
			"deliveryAddress": "Lome",
			"paymentMethod": "wallet"
		}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("insufficient_stock", func(t *testing.T) {
		svc := &mockService{
			createFunc: func(context.Context, principal.Principal, order.CreateOrderModel) (*order.Order, error) {
				return nil, &domainerr.InsufficientStockError{ProductID: 3, Requested: 2, Available: 1}
			},
		}

		rec := doRequest(svc, validBody, true)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
