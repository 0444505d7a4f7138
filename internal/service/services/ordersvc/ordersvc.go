package ordersvc

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/dal/uow"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/orderitem"
	"github.com/joel710/agriflow/internal/service/models/outbox"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"go.opentelemetry.io/otel"
)

// OrderService owns the order aggregate: creation with atomic stock
// reservation, role-scoped reads, staff status transitions and the
// compensating cancellation.
type OrderService struct {
	uowFactory     func() uow.UnitOfWork
	paymentMethods func(string) bool
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		paymentMethods: func(string) bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.uowFactory == nil {
		panic("ordersvc: no unit of work source configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.uowFactory = func() uow.UnitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory overrides the unit of work source, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() uow.UnitOfWork) option {
	return func(s *OrderService) {
		s.uowFactory = factory
	}
}

// WithPaymentMethodCheck wires the payment orchestrator's knowledge of which
// method tags are valid, so checkout rejects unknown methods up front.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPaymentMethodCheck(known func(method string) bool) option {
	return func(s *OrderService) {
		s.paymentMethods = known
	}
}

// Create turns a cart submission into a persisted order. Stock is reserved
// line by line inside one transaction; any failing line aborts the whole
// operation with no partial reservation and no partial order. Prices come from
// the catalog rows only.
func (s *OrderService) Create(
	ctx context.Context,
	p principal.Principal,
	model order.CreateOrderModel,
) (*order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.Create")
	defer span.End()

	if err := validateCreate(model, s.paymentMethods); err != nil {
		return nil, err
	}

	now := time.Now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	items := make([]orderitem.OrderItem, 0, len(model.Items))
	var totalCents int64
	ord := order.Order{
		CustomerID:      p.UserID,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		PaymentMethod:   model.PaymentMethod,
		DeliveryAddress: model.DeliveryAddress,
		DeliveryNotes:   model.DeliveryNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Reserve in product id order so concurrent orders touching the same
	// products take their row locks in the same sequence.
	lines := slices.Clone(model.Items)
	slices.SortFunc(lines, func(a, b order.CreateOrderItemModel) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	for _, line := range lines {
		prod, err := work.Products().Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}

		lineTotal := prod.PriceCents * int64(line.Quantity)
		totalCents += lineTotal
		ord.TotalPriceCurrency = prod.PriceCurrency
		items = append(items, orderitem.OrderItem{
			ProductID:      prod.ID,
			ProductTitle:   prod.Title,
			Quantity:       line.Quantity,
			UnitPriceCents: prod.PriceCents,
			LineTotalCents: lineTotal,
			PriceCurrency:  prod.PriceCurrency,
			CreatedAt:      now,
		})
	}
	ord.TotalPriceCents = totalCents

	inserted, err := work.Orders().Insert(ctx, ord)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].OrderID = inserted.ID
	}
	items, err = work.OrderItems().BulkInsert(ctx, items)
	if err != nil {
		return nil, err
	}
	inserted.OrderItems = items

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Order created",
		"order_id", inserted.ID,
		"customer_id", p.UserID,
		"total_cents", inserted.TotalPriceCents,
		"lines", len(items),
	)

	return inserted, nil
}

// GetByID loads an order with its lines, scoped by caller role.
func (s *OrderService) GetByID(
	ctx context.Context,
	p principal.Principal,
	id int64,
) (*order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.GetByID")
	defer span.End()

	work := s.uowFactory()

	ord, err := work.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsStaff() && ord.CustomerID != p.UserID {
		return nil, &domainerr.ForbiddenError{Reason: "order belongs to another customer"}
	}

	items, err := work.OrderItems().QueryByOrderIds(ctx, []int64{ord.ID})
	if err != nil {
		return nil, err
	}
	ord.OrderItems = items

	return ord, nil
}

// List retrieves orders with their lines. Customers only ever see their own
// orders regardless of the submitted filter.
func (s *OrderService) List(
	ctx context.Context,
	p principal.Principal,
	filter order.QueryOrdersModel,
) ([]order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.List")
	defer span.End()

	if !p.IsStaff() {
		filter.CustomerIds = []int64{p.UserID}
	}

	work := s.uowFactory()

	orders, err := work.Orders().Query(ctx, &filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	orderIds := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIds = append(orderIds, o.ID)
	}
	items, err := work.OrderItems().QueryByOrderIds(ctx, orderIds)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		for _, item := range items {
			if item.OrderID == orders[i].ID {
				orders[i].OrderItems = append(orders[i].OrderItems, item)
			}
		}
	}

	return orders, nil
}

// UpdateStatus applies a staff fulfillment transition: confirmed, preparing,
// shipping. Confirming creates the order's delivery record. Delivered and
// cancelled are not reachable here; they come from the delivery coordinator
// and Cancel respectively.
func (s *OrderService) UpdateStatus(
	ctx context.Context,
	p principal.Principal,
	orderID int64,
	next order.Status,
) (*order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !p.IsStaff() {
		return nil, &domainerr.ForbiddenError{Reason: "only staff may update order status"}
	}
	if next == order.StatusCancelled || next == order.StatusDelivered {
		return nil, &domainerr.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("status %s is not set directly", next),
		}
	}

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	ord, err := work.Orders().GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ord.Status.CanTransitionTo(next) {
		return nil, &domainerr.InvalidTransitionError{
			Entity: "order",
			From:   ord.Status.String(),
			To:     next.String(),
		}
	}

	prev := ord.Status
	ord.Status = next
	ord.UpdatedAt = time.Now()
	if err := work.Orders().Update(ctx, ord); err != nil {
		return nil, err
	}

	if next == order.StatusConfirmed {
		if _, err := work.Deliveries().Insert(ctx, delivery.New(ord.ID, ord.UpdatedAt)); err != nil {
			return nil, err
		}
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

	slog.Info("Order status updated",
		"order_id", ord.ID,
		"from", prev,
		"to", next,
		"staff_id", p.UserID,
	)

	return ord, nil
}

// Cancel executes the compensating cancellation: restore every line's stock,
// mark the order cancelled and flip a paid payment to refunded (bookkeeping
// only, no external refund call). All of it commits atomically or not at all.
func (s *OrderService) Cancel(
	ctx context.Context,
	p principal.Principal,
	orderID int64,
) (*order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.Cancel")
	defer span.End()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	ord, err := work.Orders().GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := authorizeCancel(p, ord); err != nil {
		return nil, err
	}

	items, err := work.OrderItems().QueryByOrderIds(ctx, []int64{ord.ID})
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := work.Products().Release(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to restock product %d: %w", item.ProductID, err)
		}
	}
	ord.OrderItems = items

	ord.Status = order.StatusCancelled
	if ord.PaymentStatus == order.PaymentPaid {
		ord.PaymentStatus = order.PaymentRefunded
	}
	ord.UpdatedAt = time.Now()
	if err := work.Orders().Update(ctx, ord); err != nil {
		return nil, err
	}

	// The delivery record, if one was already created, follows the order.
	if err := cancelDelivery(ctx, work, ord.ID); err != nil {
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

	slog.Info("Order cancelled",
		"order_id", ord.ID,
		"by", p.UserID,
		"role", p.Role,
		"payment_status", ord.PaymentStatus,
	)

	return ord, nil
}

func authorizeCancel(p principal.Principal, ord *order.Order) error {
	if ord.Status.Terminal() {
		return &domainerr.InvalidTransitionError{
			Entity: "order",
			From:   ord.Status.String(),
			To:     order.StatusCancelled.String(),
		}
	}
	if p.IsStaff() {
		return nil
	}
	if ord.CustomerID != p.UserID {
		return &domainerr.ForbiddenError{Reason: "order belongs to another customer"}
	}
	if !ord.Status.CustomerCancellable() {
		return &domainerr.ForbiddenError{
			Reason: fmt.Sprintf("customers cannot cancel an order in status %s", ord.Status),
		}
	}

	return nil
}

func cancelDelivery(ctx context.Context, work uow.UnitOfWork, orderID int64) error {
	del, err := work.Deliveries().GetByOrderID(ctx, orderID)
	if err != nil {
		var notFound *domainerr.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return err
	}

	// The caller already holds the order row lock, so taking the delivery
	// lock here keeps the order-then-delivery sequence.
	del, err = work.Deliveries().GetByIDForUpdate(ctx, del.ID)
	if err != nil {
		return err
	}
	if del.Status.Terminal() {
		return nil
	}

	del.Status = delivery.StatusCancelled
	del.UpdatedAt = time.Now()

	return work.Deliveries().Update(ctx, del)
}

func validateCreate(model order.CreateOrderModel, knownMethod func(string) bool) error {
	if len(model.Items) == 0 {
		return &domainerr.ValidationError{Field: "items", Reason: "order must contain at least one line"}
	}
	if model.DeliveryAddress == "" {
		return &domainerr.ValidationError{Field: "deliveryAddress", Reason: "delivery address is required"}
	}
	for _, line := range model.Items {
		if line.ProductID <= 0 {
			return &domainerr.ValidationError{Field: "items", Reason: "product id must be positive"}
		}
		if line.Quantity <= 0 {
			return &domainerr.ValidationError{
				Field:  "items",
				Reason: fmt.Sprintf("quantity for product %d must be positive", line.ProductID),
			}
		}
	}
	if model.PaymentMethod != payment.MethodWallet &&
		model.PaymentMethod != payment.MethodCashOnDelivery &&
		!knownMethod(model.PaymentMethod) {
		return &domainerr.ValidationError{
			Field:  "paymentMethod",
			Reason: fmt.Sprintf("unknown payment method %q", model.PaymentMethod),
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
