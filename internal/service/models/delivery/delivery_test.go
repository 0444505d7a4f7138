package delivery_test

import (
	"testing"
	"time"

	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from delivery.Status
		to   delivery.Status
		want bool
	}{
		{name: "pending_to_preparing", from: delivery.StatusPending, to: delivery.StatusPreparing, want: true},
		{name: "pending_to_cancelled", from: delivery.StatusPending, to: delivery.StatusCancelled, want: true},
		{name: "pending_skips_transit", from: delivery.StatusPending, to: delivery.StatusInTransit, want: false},
		{name: "preparing_to_in_transit", from: delivery.StatusPreparing, to: delivery.StatusInTransit, want: true},
		{name: "in_transit_to_delivered", from: delivery.StatusInTransit, to: delivery.StatusDelivered, want: true},
		{name: "in_transit_to_failed", from: delivery.StatusInTransit, to: delivery.StatusFailed, want: true},
		{name: "in_transit_not_cancellable", from: delivery.StatusInTransit, to: delivery.StatusCancelled, want: false},
		{name: "delivered_is_terminal", from: delivery.StatusDelivered, to: delivery.StatusFailed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNew(t *testing.T) {
	now := time.Now()
	d := delivery.New(42, now)

	assert.Equal(t, int64(42), d.OrderID)
	assert.Equal(t, delivery.StatusPending, d.Status)
	assert.Equal(t, now, d.CreatedAt)
	assert.Nil(t, d.DeliveredAt)
}
