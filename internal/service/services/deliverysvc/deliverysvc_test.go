package deliverysvc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/outbox"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/service/services/deliverysvc"
	"github.com/joel710/agriflow/internal/service/services/ordersvc"
	"github.com/joel710/agriflow/internal/service/services/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customer = principal.Principal{UserID: 1, Role: principal.RoleCustomer}
	staff    = principal.Principal{UserID: 100, Role: principal.RoleProducer}
)

func newService(store *servicetest.Store) *deliverysvc.DeliveryService {
	return deliverysvc.MustNewDeliveryService(
		deliverysvc.WithUnitOfWorkFactory(store.Factory()),
	)
}

func seed(store *servicetest.Store, orderStatus order.Status, deliveryStatus delivery.Status) (order.Order, delivery.Delivery) {
	ord := store.SeedOrder(order.Order{
		CustomerID:    1,
		Status:        orderStatus,
		PaymentStatus: order.PaymentPaid,
	})
	del := store.SeedDelivery(delivery.Delivery{
		OrderID:   ord.ID,
		Status:    deliveryStatus,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})

	return ord, del
}

func TestDeliveryService_GetByOrderID(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	ord, del := seed(store, order.StatusConfirmed, delivery.StatusPending)

	got, err := svc.GetByOrderID(context.Background(), customer, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, del.ID, got.ID)

	_, err = svc.GetByOrderID(
		context.Background(),
		principal.Principal{UserID: 2, Role: principal.RoleCustomer},
		ord.ID,
	)
	var forbidden *domainerr.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	_, err = svc.GetByOrderID(context.Background(), staff, ord.ID)
	assert.NoError(t, err)
}

func TestDeliveryService_UpdateStatus_StaffOnly(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	_, del := seed(store, order.StatusConfirmed, delivery.StatusPending)

	_, err := svc.UpdateStatus(context.Background(), customer, del.ID, deliverysvc.UpdateModel{
		Status: delivery.StatusPreparing,
	})
	var forbidden *domainerr.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestDeliveryService_UpdateStatus_PropagatesToOrder(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	ord, del := seed(store, order.StatusConfirmed, delivery.StatusPending)

	got, err := svc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
		Status:         delivery.StatusPreparing,
		TrackingNumber: "TRK-42",
		Carrier:        "gozem",
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPreparing, got.Status)
	assert.Equal(t, "TRK-42", got.TrackingNumber)
	assert.Equal(t, order.StatusPreparing, store.Orders[ord.ID].Status)

	_, err = svc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
		Status: delivery.StatusInTransit,
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipping, store.Orders[ord.ID].Status)
}

func TestDeliveryService_UpdateStatus_ConcurrentWithCancel(t *testing.T) {
	store := servicetest.NewStore()
	deliverySvc := newService(store)
	orderSvc := ordersvc.MustNewOrderService(ordersvc.WithUnitOfWorkFactory(store.Factory()))
	ord, del := seed(store, order.StatusConfirmed, delivery.StatusPending)

	var wg sync.WaitGroup
	wg.Add(2)
	var cancelErr, updateErr error
	go func() {
		defer wg.Done()
		_, cancelErr = orderSvc.Cancel(context.Background(), staff, ord.ID)
	}()
	go func() {
		defer wg.Done()
		_, updateErr = deliverySvc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
			Status: delivery.StatusPreparing,
		})
	}()
	wg.Wait()

	// Both paths lock the order row before the delivery row, so whichever
	// transaction lands second waits on the first instead of deadlocking.
	// Cancellation always wins the end state.
	require.NoError(t, cancelErr)
	if updateErr != nil {
		var transition *domainerr.InvalidTransitionError
		assert.ErrorAs(t, updateErr, &transition)
	}
	assert.Equal(t, order.StatusCancelled, store.Orders[ord.ID].Status)
	assert.Equal(t, delivery.StatusCancelled, store.Deliveries[del.ID].Status)
}

func TestDeliveryService_UpdateStatus_InvalidTransition(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	ord, del := seed(store, order.StatusConfirmed, delivery.StatusPending)

	_, err := svc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
		Status: delivery.StatusDelivered,
	})
	var transition *domainerr.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "delivery", transition.Entity)

	assert.Equal(t, delivery.StatusPending, store.Deliveries[del.ID].Status)
	assert.Equal(t, order.StatusConfirmed, store.Orders[ord.ID].Status)
}

func TestDeliveryService_Delivered_FinalizesOrder(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	ord, del := seed(store, order.StatusShipping, delivery.StatusInTransit)

	got, err := svc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
		Status: delivery.StatusDelivered,
	})
	require.NoError(t, err)
	require.NotNil(t, got.DeliveredAt)

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusDelivered, stored.Status)
	assert.Equal(t, order.PaymentPaid, stored.PaymentStatus)
}

func TestDeliveryService_Delivered_SettlesCashOnDelivery(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	ord := store.SeedOrder(order.Order{
		CustomerID:    1,
		Status:        order.StatusShipping,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: payment.MethodCashOnDelivery,
	})
	del := store.SeedDelivery(delivery.Delivery{
		OrderID: ord.ID,
		Status:  delivery.StatusInTransit,
	})

	_, err := svc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
		Status: delivery.StatusDelivered,
	})
	require.NoError(t, err)

	stored := store.Orders[ord.ID]
	assert.Equal(t, order.StatusDelivered, stored.Status)
	assert.Equal(t, order.PaymentPaid, stored.PaymentStatus)

	routingKeys := make([]string, 0, len(store.Outbox))
	for _, msg := range store.Outbox {
		routingKeys = append(routingKeys, msg.RoutingKey)
	}
	assert.Contains(t, routingKeys, outbox.RoutingKeyOrderStatusChanged)
	assert.Contains(t, routingKeys, outbox.RoutingKeyOrderPaymentChanged)
}

func TestDeliveryService_UpdateStatus_SkipsPropagationWhenOrderAhead(t *testing.T) {
	store := servicetest.NewStore()
	svc := newService(store)
	// Staff already moved the order to shipping; the courier only now
	// reports preparing. The delivery advances, the order stays put.
	ord, del := seed(store, order.StatusShipping, delivery.StatusPending)

	_, err := svc.UpdateStatus(context.Background(), staff, del.ID, deliverysvc.UpdateModel{
		Status: delivery.StatusPreparing,
	})
	require.NoError(t, err)

	assert.Equal(t, delivery.StatusPreparing, store.Deliveries[del.ID].Status)
	assert.Equal(t, order.StatusShipping, store.Orders[ord.ID].Status)
}
