package paymentsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/dal/uow"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/outbox"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/service/models/wallet"
	"go.opentelemetry.io/otel"
)

// PaymentService orchestrates payment attempts against the wallet or a named
// external gateway, and reconciles the asynchronous webhook notifications the
// gateways send back.
type PaymentService struct {
	uowFactory     func() uow.UnitOfWork
	gateways       map[string]Gateway
	gatewayTimeout time.Duration
}

// option is a function that configures the PaymentService.
type option func(*PaymentService)

// MustNewPaymentService creates a new PaymentService.
func MustNewPaymentService(opts ...option) *PaymentService {
	s := &PaymentService{
		gateways:       make(map[string]Gateway),
		gatewayTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.uowFactory == nil {
		panic("paymentsvc: no unit of work source configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the PaymentService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *PaymentService) {
		s.uowFactory = func() uow.UnitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory overrides the unit of work source, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() uow.UnitOfWork) option {
	return func(s *PaymentService) {
		s.uowFactory = factory
	}
}

// WithGateway registers an external gateway adapter under its method tag.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGateway(name string, gw Gateway) option {
	return func(s *PaymentService) {
		s.gateways[name] = gw
	}
}

// WithGateways registers a set of gateway adapters keyed by method tag.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGateways(gateways map[string]Gateway) option {
	return func(s *PaymentService) {
		for name, gw := range gateways {
			s.gateways[name] = gw
		}
	}
}

// WithGatewayTimeout bounds the external initiation call.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGatewayTimeout(d time.Duration) option {
	return func(s *PaymentService) {
		s.gatewayTimeout = d
	}
}

// KnownMethod reports whether tag names the wallet, cash on delivery or a
// registered gateway.
func (s *PaymentService) KnownMethod(tag string) bool {
	if tag == payment.MethodWallet || tag == payment.MethodCashOnDelivery {
		return true
	}
	_, ok := s.gateways[tag]

	return ok
}

// Initiate dispatches a payment attempt for a pending order. Wallet and cash
// on delivery settle synchronously; gateway methods only record a provisional
// transaction id and leave settlement to the webhook reconciler. A failed
// initiation leaves the order pending so the customer can retry with a
// different method.
func (s *PaymentService) Initiate(
	ctx context.Context,
	p principal.Principal,
	model payment.InitiateModel,
) (*payment.InitiationResult, error) {
	ctx, span := otel.Tracer("paymentsvc").Start(ctx, "PaymentService.Initiate")
	defer span.End()

	method := model.Method

	switch method {
	case "":
		// Fall through to the method chosen at checkout, resolved below.
	case payment.MethodWallet, payment.MethodCashOnDelivery:
	default:
		if _, ok := s.gateways[method]; !ok {
			return nil, &domainerr.ValidationError{
				Field:  "method",
				Reason: fmt.Sprintf("unknown payment method %q", method),
			}
		}
	}

	work := s.uowFactory()

	ord, err := work.Orders().GetByID(ctx, model.OrderID)
	if err != nil {
		return nil, err
	}
	if ord.CustomerID != p.UserID {
		return nil, &domainerr.ForbiddenError{Reason: "order belongs to another customer"}
	}
	if method == "" {
		method = ord.PaymentMethod
	}
	if err := payable(ord); err != nil {
		return nil, err
	}

	switch method {
	case payment.MethodWallet:
		return s.initiateWallet(ctx, p, model.OrderID)
	case payment.MethodCashOnDelivery:
		return s.initiateCashOnDelivery(ctx, model.OrderID)
	default:
		return s.initiateGateway(ctx, method, ord, model.Details)
	}
}

// initiateWallet settles synchronously: balance check, debit, ledger append
// and order confirmation all land in one transaction, or none of them do.
func (s *PaymentService) initiateWallet(
	ctx context.Context,
	p principal.Principal,
	orderID int64,
) (*payment.InitiationResult, error) {
	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	ord, err := work.Orders().GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := payable(ord); err != nil {
		return nil, err
	}

	w, err := work.Wallets().GetByCustomerIDForUpdate(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if w.BalanceCents < ord.TotalPriceCents {
		return nil, &domainerr.InsufficientBalanceError{
			RequiredCents:  ord.TotalPriceCents,
			AvailableCents: w.BalanceCents,
		}
	}

	now := time.Now()
	txID := uuid.NewString()

	if err := work.Wallets().Debit(ctx, w.ID, ord.TotalPriceCents); err != nil {
		return nil, err
	}
	if _, err := work.Wallets().InsertTransaction(ctx, wallet.Transaction{
		WalletID:    w.ID,
		Kind:        wallet.KindDebit,
		AmountCents: ord.TotalPriceCents,
		Reference:   txID,
		Description: fmt.Sprintf("payment for order %d", ord.ID),
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	if err := s.settle(ctx, work, ord, payment.MethodWallet, txID, now); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Wallet payment settled",
		"order_id", ord.ID,
		"customer_id", p.UserID,
		"amount_cents", ord.TotalPriceCents,
		"transaction_id", txID,
	)

	return &payment.InitiationResult{
		Success:       true,
		Message:       "payment settled from wallet",
		TransactionID: txID,
	}, nil
}

// initiateCashOnDelivery confirms the order and leaves payment pending; the
// delivery coordinator settles it when the courier reports delivered.
func (s *PaymentService) initiateCashOnDelivery(
	ctx context.Context,
	orderID int64,
) (*payment.InitiationResult, error) {
	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	ord, err := work.Orders().GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := payable(ord); err != nil {
		return nil, err
	}

	now := time.Now()
	ord.Status = order.StatusConfirmed
	ord.PaymentMethod = payment.MethodCashOnDelivery
	ord.UpdatedAt = now
	if err := work.Orders().Update(ctx, ord); err != nil {
		return nil, err
	}
	if _, err := work.Deliveries().Insert(ctx, delivery.New(ord.ID, now)); err != nil {
		return nil, err
	}
	if err := work.Outbox().Insert(ctx, outbox.NewOrderEventMessage(
		outbox.RoutingKeyOrderStatusChanged,
		orderEvent(ord),
	)); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Cash on delivery order confirmed", "order_id", ord.ID)

	return &payment.InitiationResult{
		Success: true,
		Message: "order confirmed, payment due on delivery",
	}, nil
}

// initiateGateway calls the external adapter with a bounded context and no
// database locks held, then records the provisional transaction id. Order
// status and payment status stay untouched; only the webhook reconciler moves
// them.
func (s *PaymentService) initiateGateway(
	ctx context.Context,
	provider string,
	ord *order.Order,
	details map[string]string,
) (*payment.InitiationResult, error) {
	// The provider may come from the order's checkout method, which is not
	// covered by the request-tag validation above and can name a gateway
	// that is no longer configured.
	gw, ok := s.gateways[provider]
	if !ok {
		return nil, &domainerr.ValidationError{
			Field:  "method",
			Reason: fmt.Sprintf("unknown payment method %q", provider),
		}
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := gw.Initiate(gwCtx, ord, details)
	if err != nil {
		slog.Warn("Gateway initiation failed",
			"order_id", ord.ID,
			"provider", provider,
			"error", err,
		)

		return nil, &domainerr.GatewayInitiationError{Provider: provider, Err: err}
	}

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	// Re-read under lock: the order may have settled or been cancelled
	// while the gateway call was in flight.
	ord, err = work.Orders().GetByIDForUpdate(ctx, ord.ID)
	if err != nil {
		return nil, err
	}
	if err := payable(ord); err != nil {
		return nil, err
	}

	ord.PaymentMethod = provider
	ord.PaymentTransactionID = &session.TransactionID
	ord.UpdatedAt = time.Now()
	if err := work.Orders().Update(ctx, ord); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Gateway payment initiated",
		"order_id", ord.ID,
		"provider", provider,
		"transaction_id", session.TransactionID,
	)

	message := session.Message
	if message == "" {
		message = "payment initiated, awaiting provider confirmation"
	}

	return &payment.InitiationResult{
		Success:           true,
		Message:           message,
		TransactionID:     session.TransactionID,
		RedirectReference: session.RedirectReference,
	}, nil
}

// HandleWebhook authenticates and applies an asynchronous payment
// notification. Safe to invoke more than once with the same payload: once an
// order is paid, success notifications are no-ops and failure notifications
// are logged as reconciliation conflicts and ignored.
func (s *PaymentService) HandleWebhook(
	ctx context.Context,
	provider string,
	header http.Header,
	body []byte,
) error {
	ctx, span := otel.Tracer("paymentsvc").Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	gw, ok := s.gateways[provider]
	if !ok {
		return &domainerr.ValidationError{
			Field:  "provider",
			Reason: fmt.Sprintf("unknown payment provider %q", provider),
		}
	}

	event, err := gw.VerifyWebhook(header, body)
	if err != nil {
		return &domainerr.ValidationError{
			Field:  "payload",
			Reason: fmt.Sprintf("webhook rejected: %v", err),
		}
	}

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer work.Rollback(ctx)

	ord, err := work.Orders().GetByIDForUpdate(ctx, event.OrderID)
	if err != nil {
		return err
	}

	if ord.PaymentStatus == order.PaymentPaid || ord.PaymentStatus == order.PaymentRefunded {
		if !event.Succeeded {
			// Out-of-order failure after settlement: paid is absorbing.
			slog.Warn("Ignoring webhook that would downgrade settled payment",
				"order_id", ord.ID,
				"provider", provider,
				"transaction_id", event.TransactionID,
				"error", domainerr.ErrReconciliationConflict,
			)

			return nil
		}

		slog.Info("Duplicate payment success webhook ignored",
			"order_id", ord.ID,
			"provider", provider,
			"transaction_id", event.TransactionID,
		)

		return nil
	}

	if !event.Succeeded && ord.PaymentStatus == order.PaymentFailed &&
		ord.PaymentTransactionID != nil && *ord.PaymentTransactionID == event.TransactionID {
		// Redelivery of a failure already recorded for this transaction.
		slog.Info("Duplicate payment failure webhook ignored",
			"order_id", ord.ID,
			"provider", provider,
			"transaction_id", event.TransactionID,
		)

		return nil
	}

	now := time.Now()
	if event.Succeeded {
		if err := s.settle(ctx, work, ord, provider, event.TransactionID, now); err != nil {
			return err
		}
	} else {
		ord.PaymentStatus = order.PaymentFailed
		ord.PaymentTransactionID = &event.TransactionID
		ord.UpdatedAt = now
		if err := work.Orders().Update(ctx, ord); err != nil {
			return err
		}
		if err := work.Outbox().Insert(ctx, outbox.NewOrderEventMessage(
			outbox.RoutingKeyOrderPaymentChanged,
			orderEvent(ord),
		)); err != nil {
			return err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return err
	}

	slog.Info("Payment webhook applied",
		"order_id", ord.ID,
		"provider", provider,
		"transaction_id", event.TransactionID,
		"succeeded", event.Succeeded,
		"reason", event.Reason,
	)

	return nil
}

// GetWallet returns the caller's wallet with its ledger history.
func (s *PaymentService) GetWallet(
	ctx context.Context,
	p principal.Principal,
	limit, offset int,
) (*wallet.Wallet, []wallet.Transaction, error) {
	ctx, span := otel.Tracer("paymentsvc").Start(ctx, "PaymentService.GetWallet")
	defer span.End()

	work := s.uowFactory()

	w, err := work.Wallets().GetByCustomerID(ctx, p.UserID)
	if err != nil {
		return nil, nil, err
	}
	transactions, err := work.Wallets().ListTransactions(ctx, w.ID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	return w, transactions, nil
}

// settle marks the order paid and, if it was still pending, confirms it and
// creates its delivery. Runs inside the caller's transaction.
func (s *PaymentService) settle(
	ctx context.Context,
	work uow.UnitOfWork,
	ord *order.Order,
	method string,
	transactionID string,
	now time.Time,
) error {
	ord.PaymentStatus = order.PaymentPaid
	ord.PaymentMethod = method
	ord.PaymentTransactionID = &transactionID
	ord.UpdatedAt = now

	confirmed := false
	if ord.Status == order.StatusPending {
		ord.Status = order.StatusConfirmed
		confirmed = true
	}

	if err := work.Orders().Update(ctx, ord); err != nil {
		return err
	}
	if confirmed {
		if _, err := work.Deliveries().Insert(ctx, delivery.New(ord.ID, now)); err != nil {
			return err
		}
		if err := work.Outbox().Insert(ctx, outbox.NewOrderEventMessage(
			outbox.RoutingKeyOrderStatusChanged,
			orderEvent(ord),
		)); err != nil {
			return err
		}
	}

	return work.Outbox().Insert(ctx, outbox.NewOrderEventMessage(
		outbox.RoutingKeyOrderPaymentChanged,
		orderEvent(ord),
	))
}

// payable reports whether a payment attempt may run against the order: it must
// still be pending and not already settled.
func payable(ord *order.Order) error {
	if ord.Status != order.StatusPending {
		return &domainerr.InvalidTransitionError{
			Entity: "order",
			From:   ord.Status.String(),
			To:     order.StatusConfirmed.String(),
		}
	}
	if ord.PaymentStatus != order.PaymentPending && ord.PaymentStatus != order.PaymentFailed {
		return &domainerr.InvalidTransitionError{
			Entity: "payment",
			From:   ord.PaymentStatus.String(),
			To:     order.PaymentPaid.String(),
		}
	}

	return nil
}

func orderEvent(ord *order.Order) outbox.OrderEvent {
	return outbox.OrderEvent{
		OrderID:       ord.ID,
		CustomerID:    ord.CustomerID,
		Status:        ord.Status.String(),
		PaymentStatus: ord.PaymentStatus.String(),
		OccurredAt:    ord.UpdatedAt,
	}
}
