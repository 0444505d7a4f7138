package order_test

import (
	"testing"

	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from order.Status
		to   order.Status
		want bool
	}{
		{name: "pending_to_confirmed", from: order.StatusPending, to: order.StatusConfirmed, want: true},
		{name: "pending_to_cancelled", from: order.StatusPending, to: order.StatusCancelled, want: true},
		{name: "pending_skips_preparing", from: order.StatusPending, to: order.StatusPreparing, want: false},
		{name: "confirmed_to_preparing", from: order.StatusConfirmed, to: order.StatusPreparing, want: true},
		{name: "preparing_to_shipping", from: order.StatusPreparing, to: order.StatusShipping, want: true},
		{name: "shipping_to_delivered", from: order.StatusShipping, to: order.StatusDelivered, want: true},
		{name: "shipping_to_cancelled", from: order.StatusShipping, to: order.StatusCancelled, want: true},
		{name: "no_backwards_move", from: order.StatusShipping, to: order.StatusConfirmed, want: false},
		{name: "delivered_is_terminal", from: order.StatusDelivered, to: order.StatusCancelled, want: false},
		{name: "cancelled_is_terminal", from: order.StatusCancelled, to: order.StatusConfirmed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, order.StatusDelivered.Terminal())
	assert.True(t, order.StatusCancelled.Terminal())
	assert.False(t, order.StatusPending.Terminal())
	assert.False(t, order.StatusShipping.Terminal())
}

func TestStatus_CustomerCancellable(t *testing.T) {
	assert.True(t, order.StatusPending.CustomerCancellable())
	assert.True(t, order.StatusConfirmed.CustomerCancellable())
	assert.False(t, order.StatusPreparing.CustomerCancellable())
	assert.False(t, order.StatusShipping.CustomerCancellable())
	assert.False(t, order.StatusDelivered.CustomerCancellable())
}

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from order.PaymentStatus
		to   order.PaymentStatus
		want bool
	}{
		{name: "pending_to_paid", from: order.PaymentPending, to: order.PaymentPaid, want: true},
		{name: "pending_to_failed", from: order.PaymentPending, to: order.PaymentFailed, want: true},
		{name: "failed_retries_to_paid", from: order.PaymentFailed, to: order.PaymentPaid, want: true},
		{name: "failed_fails_again", from: order.PaymentFailed, to: order.PaymentFailed, want: true},
		{name: "paid_never_fails", from: order.PaymentPaid, to: order.PaymentFailed, want: false},
		{name: "paid_never_pending", from: order.PaymentPaid, to: order.PaymentPending, want: false},
		{name: "paid_to_refunded", from: order.PaymentPaid, to: order.PaymentRefunded, want: true},
		{name: "refunded_is_terminal", from: order.PaymentRefunded, to: order.PaymentPaid, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	got, err := order.ParseStatus("shipping")
	assert.NoError(t, err)
	assert.Equal(t, order.StatusShipping, got)

	_, err = order.ParseStatus("unknown")
	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}
