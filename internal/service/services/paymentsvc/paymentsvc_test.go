package paymentsvc_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/joel710/agriflow/internal/service/models/currency"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/outbox"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/service/models/wallet"
	"github.com/joel710/agriflow/internal/service/services/paymentsvc"
	"github.com/joel710/agriflow/internal/service/services/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customer = principal.Principal{UserID: 1, Role: principal.RoleCustomer}

type mockGateway struct {
	initiateFunc func(ctx context.Context, ord *order.Order, details map[string]string) (*payment.GatewaySession, error)
	verifyFunc   func(header http.Header, body []byte) (*payment.WebhookEvent, error)
}

func (m *mockGateway) Initiate(
	ctx context.Context,
	ord *order.Order,
	details map[string]string,
) (*payment.GatewaySession, error) {
	return m.initiateFunc(ctx, ord, details)
}

func (m *mockGateway) VerifyWebhook(header http.Header, body []byte) (*payment.WebhookEvent, error) {
	return m.verifyFunc(header, body)
}

func newService(store *servicetest.Store, gateways map[string]paymentsvc.Gateway) *paymentsvc.PaymentService {
	return paymentsvc.MustNewPaymentService(
		paymentsvc.WithUnitOfWorkFactory(store.Factory()),
		paymentsvc.WithGateways(gateways),
	)
}

func seedPendingOrder(store *servicetest.Store, totalCents int64) order.Order {
	return store.SeedOrder(order.Order{
		CustomerID:         1,
		Status:             order.StatusPending,
		PaymentStatus:      order.PaymentPending,
		PaymentMethod:      payment.MethodWallet,
		TotalPriceCents:    totalCents,
		TotalPriceCurrency: currency.CurrencyXOF,
	})
}

func TestPaymentService_KnownMethod(t *testing.T) {
	svc := newService(servicetest.NewStore(), map[string]paymentsvc.Gateway{
		"tmoney": &mockGateway{},
	})

	assert.True(t, svc.KnownMethod(payment.MethodWallet))
	assert.True(t, svc.KnownMethod(payment.MethodCashOnDelivery))
	assert.True(t, svc.KnownMethod("tmoney"))
	assert.False(t, svc.KnownMethod("flooz"))
}

func TestPaymentService_Initiate_Wallet(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store, nil)
	ord := seedPendingOrder(store, 5000)
	w := store.SeedWallet(wallet.Wallet{
		CustomerID:   1,
		BalanceCents: 8000,
		Currency:     currency.CurrencyXOF,
	})

	res, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{OrderID: ord.ID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TransactionID)

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusConfirmed, stored.Status)
	assert.Equal(t, order.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentTransactionID)
	assert.Equal(t, res.TransactionID, *stored.PaymentTransactionID)

	assert.Equal(t, int64(3000), store.Wallets[w.ID].BalanceCents)
	require.Len(t, store.WalletTxs, 1)
	assert.Equal(t, wallet.KindDebit, store.WalletTxs[0].Kind)
	assert.Equal(t, int64(5000), store.WalletTxs[0].AmountCents)

	// Confirmation creates the delivery and both events land in the outbox.
	require.Len(t, store.Deliveries, 1)
	routingKeys := make([]string, 0, len(store.Outbox))
	for _, msg := range store.Outbox {
		routingKeys = append(routingKeys, msg.RoutingKey)
	}
	assert.Contains(t, routingKeys, outbox.RoutingKeyOrderStatusChanged)
	assert.Contains(t, routingKeys, outbox.RoutingKeyOrderPaymentChanged)
}

func TestPaymentService_Initiate_Wallet_InsufficientBalance(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store, nil)
	ord := seedPendingOrder(store, 5000)
	w := store.SeedWallet(wallet.Wallet{
		CustomerID:   1,
		BalanceCents: 4999,
		Currency:     currency.CurrencyXOF,
	})

	_, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{OrderID: ord.ID})

	var balanceErr *domainerr.InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.Equal(t, int64(5000), balanceErr.RequiredCents)
	assert.Equal(t, int64(4999), balanceErr.AvailableCents)

	// Nothing moved: order untouched, balance intact, no ledger row.
	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusPending, stored.Status)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
	assert.Equal(t, int64(4999), store.Wallets[w.ID].BalanceCents)
	assert.Empty(t, store.WalletTxs)
	assert.Empty(t, store.Deliveries)
}

func TestPaymentService_Initiate_CashOnDelivery(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store, nil)
	ord := seedPendingOrder(store, 5000)

	res, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{
		OrderID: ord.ID,
		Method:  payment.MethodCashOnDelivery,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.TransactionID)

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusConfirmed, stored.Status)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
	assert.Equal(t, payment.MethodCashOnDelivery, stored.PaymentMethod)
	assert.Len(t, store.Deliveries, 1)
}

func TestPaymentService_Initiate_Gateway(t *testing.T) {
	store := servicetest.NewStore()
	gw := &mockGateway{
		initiateFunc: func(_ context.Context, _ *order.Order, _ map[string]string) (*payment.GatewaySession, error) {
			return &payment.GatewaySession{
				TransactionID:     "tx-123",
				RedirectReference: "https://pay.example.com/tx-123",
			}, nil
		},
	}
	svc := newService(store, map[string]paymentsvc.Gateway{"tmoney": gw})
	ord := seedPendingOrder(store, 5000)

	res, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{
		OrderID: ord.ID,
		Method:  "tmoney",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tx-123", res.TransactionID)
	assert.Equal(t, "https://pay.example.com/tx-123", res.RedirectReference)

	// Only the provisional transaction id is recorded; settlement waits for
	// the webhook.
	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusPending, stored.Status)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentTransactionID)
	assert.Equal(t, "tx-123", *stored.PaymentTransactionID)
	assert.Empty(t, store.Deliveries)
}

func TestPaymentService_Initiate_GatewayFailureLeavesOrderPayable(t *testing.T) {
	store := servicetest.NewStore()
	gw := &mockGateway{
		initiateFunc: func(_ context.Context, _ *order.Order, _ map[string]string) (*payment.GatewaySession, error) {
			return nil, errors.New("provider timeout")
		},
	}
	svc := newService(store, map[string]paymentsvc.Gateway{"tmoney": gw})
	ord := seedPendingOrder(store, 5000)

	_, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{
		OrderID: ord.ID,
		Method:  "tmoney",
	})

	var gwErr *domainerr.GatewayInitiationError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "tmoney", gwErr.Provider)

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusPending, stored.Status)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
	assert.Nil(t, stored.PaymentTransactionID)
}

func TestPaymentService_Initiate_Guards(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store, nil)
	ord := seedPendingOrder(store, 5000)

	_, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{
		OrderID: ord.ID,
		Method:  "unknown",
	})
	var vErr *domainerr.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.Initiate(
		context.Background(),
		principal.Principal{UserID: 2, Role: principal.RoleCustomer},
		payment.InitiateModel{OrderID: ord.ID},
	)
	var forbidden *domainerr.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	confirmed := store.SeedOrder(order.Order{
		CustomerID:    1,
		Status:        order.StatusConfirmed,
		PaymentStatus: order.PaymentPaid,
	})
	_, err = svc.Initiate(context.Background(), customer, payment.InitiateModel{OrderID: confirmed.ID})
	var transition *domainerr.InvalidTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestPaymentService_Initiate_CheckoutMethodGatewayUnconfigured(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store, nil)
	ord := store.SeedOrder(order.Order{
		CustomerID:         1,
		Status:             order.StatusPending,
		PaymentStatus:      order.PaymentPending,
		PaymentMethod:      "tmoney",
		TotalPriceCents:    5000,
		TotalPriceCurrency: currency.CurrencyXOF,
	})

	// Empty method falls back to the checkout choice, which names a gateway
	// no longer configured.
	_, err := svc.Initiate(context.Background(), customer, payment.InitiateModel{OrderID: ord.ID})
	var vErr *domainerr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "method", vErr.Field)
	assert.Equal(t, order.PaymentPending, store.Orders[ord.ID].PaymentStatus)
	assert.Equal(t, order.StatusPending, store.Orders[ord.ID].Status)
}

func webhookService(store *servicetest.Store, event *payment.WebhookEvent, verifyErr error) *paymentsvc.PaymentService {
	gw := &mockGateway{
		verifyFunc: func(http.Header, []byte) (*payment.WebhookEvent, error) {
			if verifyErr != nil {
				return nil, verifyErr
			}

			return event, nil
		},
	}

	return newService(store, map[string]paymentsvc.Gateway{"tmoney": gw})
}

func TestPaymentService_HandleWebhook_SuccessSettlesOrder(t *testing.T) {
	store := servicetest.NewStore()
	ord := seedPendingOrder(store, 5000)
	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-9",
		Succeeded:     true,
	}, nil)

	err := svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}"))
	require.NoError(t, err)

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusConfirmed, stored.Status)
	assert.Equal(t, order.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentTransactionID)
	assert.Equal(t, "tx-9", *stored.PaymentTransactionID)
	assert.Len(t, store.Deliveries, 1)
}

func TestPaymentService_HandleWebhook_DuplicateSuccessIsNoOp(t *testing.T) {
	store := servicetest.NewStore()
	ord := seedPendingOrder(store, 5000)
	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-9",
		Succeeded:     true,
	}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))
	outboxBefore := len(store.Outbox)

	// Same notification again: nothing changes, no duplicate events, no
	// second delivery.
	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))
	assert.Len(t, store.Outbox, outboxBefore)
	assert.Len(t, store.Deliveries, 1)
	assert.Equal(t, order.PaymentPaid, store.Orders[ord.ID].PaymentStatus)
}

func TestPaymentService_HandleWebhook_DuplicateFailureIsNoOp(t *testing.T) {
	store := servicetest.NewStore()
	ord := seedPendingOrder(store, 5000)
	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-9",
		Succeeded:     false,
		Reason:        "insufficient funds",
	}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))
	outboxBefore := len(store.Outbox)

	// Redelivery of the same failure: no fresh event, state untouched.
	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))
	assert.Len(t, store.Outbox, outboxBefore)
	assert.Equal(t, order.PaymentFailed, store.Orders[ord.ID].PaymentStatus)
	assert.Equal(t, order.StatusPending, store.Orders[ord.ID].Status)
}

func TestPaymentService_HandleWebhook_LateFailureCannotDowngradePaid(t *testing.T) {
	store := servicetest.NewStore()
	txID := "tx-9"
	ord := store.SeedOrder(order.Order{
		CustomerID:           1,
		Status:               order.StatusConfirmed,
		PaymentStatus:        order.PaymentPaid,
		PaymentTransactionID: &txID,
	})
	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: txID,
		Succeeded:     false,
		Reason:        "provider reversal",
	}, nil)

	// Absorbed and acknowledged, not an error: the provider must not retry.
	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))
	assert.Equal(t, order.PaymentPaid, store.Orders[ord.ID].PaymentStatus)
	assert.Empty(t, store.Outbox)
}

func TestPaymentService_HandleWebhook_FailureLeavesOrderRetryable(t *testing.T) {
	store := servicetest.NewStore()
	ord := seedPendingOrder(store, 5000)
	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-9",
		Succeeded:     false,
		Reason:        "insufficient funds",
	}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusPending, stored.Status)
	assert.Equal(t, order.PaymentFailed, stored.PaymentStatus)

	// A failed attempt may retry and succeed.
	svc = webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-10",
		Succeeded:     true,
	}, nil)
	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))
	assert.Equal(t, order.PaymentPaid, store.Orders[ord.ID].PaymentStatus)
}

func TestPaymentService_HandleWebhook_Rejections(t *testing.T) {
	store := servicetest.NewStore()
	svc := webhookService(store, nil, errors.New("signature mismatch"))

	var vErr *domainerr.ValidationError

	err := svc.HandleWebhook(context.Background(), "unknown", http.Header{}, []byte("{}"))
	assert.ErrorAs(t, err, &vErr)

	err = svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}"))
	assert.ErrorAs(t, err, &vErr)

	svc = webhookService(store, &payment.WebhookEvent{
		OrderID:       999,
		TransactionID: "tx-1",
		Succeeded:     true,
	}, nil)
	err = svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}"))
	var notFound *domainerr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPaymentService_HandleWebhook_SuccessOnCancelledOrder(t *testing.T) {
	store := servicetest.NewStore()
	ord := store.SeedOrder(order.Order{
		CustomerID:    1,
		Status:        order.StatusCancelled,
		PaymentStatus: order.PaymentPending,
	})
	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-late",
		Succeeded:     true,
	}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}")))

	// The money is recorded as received, flagged for refund handling, but a
	// cancelled order is never resurrected.
	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusCancelled, stored.Status)
	assert.Equal(t, order.PaymentPaid, stored.PaymentStatus)
	assert.Empty(t, store.Deliveries)
}

func TestPaymentService_GetWallet(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store, nil)
	w := store.SeedWallet(wallet.Wallet{
		CustomerID:   1,
		BalanceCents: 12000,
		Currency:     currency.CurrencyXOF,
	})
	store.WalletTxs = []wallet.Transaction{
		{ID: 1, WalletID: w.ID, Kind: wallet.KindCredit, AmountCents: 20000, CreatedAt: time.Now()},
		{ID: 2, WalletID: w.ID, Kind: wallet.KindDebit, AmountCents: 8000, CreatedAt: time.Now()},
	}

	got, transactions, err := svc.GetWallet(context.Background(), customer, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), got.BalanceCents)
	require.Len(t, transactions, 2)
	assert.Equal(t, wallet.KindDebit, transactions[0].Kind)

	_, _, err = svc.GetWallet(context.Background(), principal.Principal{UserID: 9, Role: principal.RoleCustomer}, 10, 0)
	var notFound *domainerr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// Delivery creation is guarded by the one-delivery-per-order constraint even
// if two settlement paths race.
func TestPaymentService_SettleTwiceConflictsOnDelivery(t *testing.T) {
	store := servicetest.NewStore()
	ord := seedPendingOrder(store, 5000)
	store.SeedDelivery(delivery.New(ord.ID, time.Now()))

	svc := webhookService(store, &payment.WebhookEvent{
		OrderID:       ord.ID,
		TransactionID: "tx-9",
		Succeeded:     true,
	}, nil)

	err := svc.HandleWebhook(context.Background(), "tmoney", http.Header{}, []byte("{}"))
	var conflict *domainerr.ConflictError
	require.ErrorAs(t, err, &conflict)

	// The whole settlement rolled back with the conflict.
	assert.Equal(t, order.PaymentPending, store.Orders[ord.ID].PaymentStatus)
}
