package deliverysvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/dal/uow"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/outbox"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"go.opentelemetry.io/otel"
)

// DeliveryService owns the one delivery record per order and feeds its status
// back into the order state machine: the courier's progress moves the order
// through preparing and shipping, and delivered finalizes it.
type DeliveryService struct {
	uowFactory func() uow.UnitOfWork
}

// option is a function that configures the DeliveryService.
type option func(*DeliveryService)

// MustNewDeliveryService creates a new DeliveryService.
func MustNewDeliveryService(opts ...option) *DeliveryService {
	s := &DeliveryService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.uowFactory == nil {
		panic("deliverysvc: no unit of work source configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the DeliveryService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *DeliveryService) {
		s.uowFactory = func() uow.UnitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory overrides the unit of work source, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() uow.UnitOfWork) option {
	return func(s *DeliveryService) {
		s.uowFactory = factory
	}
}

// GetByOrderID loads the delivery of an order, scoped by caller role.
func (s *DeliveryService) GetByOrderID(
	ctx context.Context,
	p principal.Principal,
	orderID int64,
) (*delivery.Delivery, error) {
	ctx, span := otel.Tracer("deliverysvc").Start(ctx, "DeliveryService.GetByOrderID")
	defer span.End()

	work := s.uowFactory()

	ord, err := work.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !p.IsStaff() && ord.CustomerID != p.UserID {
		return nil, &domainerr.ForbiddenError{Reason: "order belongs to another customer"}
	}

	return work.Deliveries().GetByOrderID(ctx, orderID)
}

// UpdateModel carries a staff delivery update.
type UpdateModel struct {
	Status         delivery.Status
	TrackingNumber string
	Carrier        string
	EstimatedAt    *time.Time
}

// UpdateStatus applies a staff transition to a delivery and propagates it into
// the order: preparing and in_transit advance the order's fulfillment status,
// delivered finalizes the order and settles a still-pending payment (cash on
// delivery).
func (s *DeliveryService) UpdateStatus(
	ctx context.Context,
	p principal.Principal,
	deliveryID int64,
	model UpdateModel,
) (*delivery.Delivery, error) {
	ctx, span := otel.Tracer("deliverysvc").Start(ctx, "DeliveryService.UpdateStatus")
	defer span.End()

	if !p.IsStaff() {
		return nil, &domainerr.ForbiddenError{Reason: "only staff may update deliveries"}
	}

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer work.Rollback(ctx)

	// Lock the order row before the delivery row. Cancellation takes the
	// same two locks in that sequence.
	del, err := work.Deliveries().GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := work.Orders().GetByIDForUpdate(ctx, del.OrderID); err != nil {
		return nil, err
	}

	del, err = work.Deliveries().GetByIDForUpdate(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !del.Status.CanTransitionTo(model.Status) {
		return nil, &domainerr.InvalidTransitionError{
			Entity: "delivery",
			From:   del.Status.String(),
			To:     model.Status.String(),
		}
	}

	now := time.Now()
	del.Status = model.Status
	del.UpdatedAt = now
	if model.TrackingNumber != "" {
		del.TrackingNumber = model.TrackingNumber
	}
	if model.Carrier != "" {
		del.Carrier = model.Carrier
	}
	if model.EstimatedAt != nil {
		del.EstimatedAt = model.EstimatedAt
	}
	if model.Status == delivery.StatusDelivered {
		del.DeliveredAt = &now
	}

	if err := work.Deliveries().Update(ctx, del); err != nil {
		return nil, err
	}

	if err := s.propagate(ctx, work, del, now); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Delivery status updated",
		"delivery_id", del.ID,
		"order_id", del.OrderID,
		"status", del.Status,
		"staff_id", p.UserID,
	)

	return del, nil
}

// propagate rolls a delivery change back into the order state machine.
func (s *DeliveryService) propagate(
	ctx context.Context,
	work uow.UnitOfWork,
	del *delivery.Delivery,
	now time.Time,
) error {
	var next order.Status
	switch del.Status {
	case delivery.StatusPreparing:
		next = order.StatusPreparing
	case delivery.StatusInTransit:
		next = order.StatusShipping
	case delivery.StatusDelivered:
		next = order.StatusDelivered
	default:
		return nil
	}

	ord, err := work.Orders().GetByIDForUpdate(ctx, del.OrderID)
	if err != nil {
		return err
	}

	paymentChanged := false
	if del.Status == delivery.StatusDelivered {
		ord.Status = order.StatusDelivered
		// Cash on delivery settles at the doorstep.
		if ord.PaymentStatus == order.PaymentPending {
			ord.PaymentStatus = order.PaymentPaid
			paymentChanged = true
		}
	} else {
		if !ord.Status.CanTransitionTo(next) {
			// The order already advanced past this point, e.g. staff
			// moved it manually. Nothing to propagate.
			return nil
		}
		ord.Status = next
	}
	ord.UpdatedAt = now

	if err := work.Orders().Update(ctx, ord); err != nil {
		return err
	}

	if err := work.Outbox().Insert(ctx, outbox.NewOrderEventMessage(
		outbox.RoutingKeyOrderStatusChanged,
		outbox.OrderEvent{
			OrderID:       ord.ID,
			CustomerID:    ord.CustomerID,
			Status:        ord.Status.String(),
			PaymentStatus: ord.PaymentStatus.String(),
			OccurredAt:    now,
		},
	)); err != nil {
		return err
	}
	if paymentChanged {
		return work.Outbox().Insert(ctx, outbox.NewOrderEventMessage(
			outbox.RoutingKeyOrderPaymentChanged,
			outbox.OrderEvent{
				OrderID:       ord.ID,
				CustomerID:    ord.CustomerID,
				Status:        ord.Status.String(),
				PaymentStatus: ord.PaymentStatus.String(),
				OccurredAt:    now,
			},
		))
	}

	return nil
}
