package outbox

import (
	"encoding/json"
	"time"
)

// Routing keys of the notification events emitted by this service. Events go
// through the agriflow.events topic exchange into the agriflow.order.events
// queue.
const (
	ExchangeName = "agriflow.events"
	QueueName    = "agriflow.order.events"

	RoutingKeyOrderStatusChanged  = "order.status_changed"
	RoutingKeyOrderPaymentChanged = "order.payment_changed"
)

// OutboxMessage is a notification event written in the same transaction as the
// state change it announces, published to RabbitMQ by the outbox worker.
type OutboxMessage struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// OrderEvent is the payload of both order notification events.
type OrderEvent struct {
	OrderID       int64     `json:"orderId"`
	CustomerID    int64     `json:"customerId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewOrderEventMessage builds an outbox row for an order status or payment
// change. Marshalling OrderEvent cannot fail, so the error is swallowed here
// rather than pushed onto every caller.
func NewOrderEventMessage(routingKey string, event OrderEvent) OutboxMessage {
	payload, _ := json.Marshal(event)
	now := time.Now()

	return OutboxMessage{
		QueueName:    QueueName,
		ExchangeName: ExchangeName,
		RoutingKey:   routingKey,
		Payload:      payload,
		ContentType:  "application/json",
		MaxRetries:   10,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}
}
