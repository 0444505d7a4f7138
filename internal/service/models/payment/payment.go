package payment

// Built-in payment method tags. Any other tag must match a registered gateway
// adapter name (e.g. "tmoney", "flooz").
const (
	MethodWallet         = "wallet"
	MethodCashOnDelivery = "cash_on_delivery"
)

// InitiateModel is the input of a payment initiation. Method may be empty to
// reuse the method chosen at checkout; a retry after a failed attempt may name
// a different one. Details carries provider-specific fields (phone number,
// return URL) passed through to the gateway adapter untouched.
type InitiateModel struct {
	OrderID int64
	Method  string
	Details map[string]string
}

// InitiationResult is what the caller gets back from a payment initiation.
// Synchronous methods (wallet, cash on delivery) settle before returning;
// gateway methods return a redirect reference and settle later via webhook.
type InitiationResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TransactionID     string `json:"transactionId,omitempty"`
	RedirectReference string `json:"redirectReference,omitempty"`
}

// GatewaySession is the provisional state returned by a gateway adapter when
// an asynchronous payment is initiated.
type GatewaySession struct {
	TransactionID     string
	RedirectReference string
	Message           string
}

// WebhookEvent is the provider-agnostic content of an authenticated payment
// notification. TransactionID is the idempotency key: providers may deliver
// the same notification more than once and out of order.
type WebhookEvent struct {
	OrderID       int64
	TransactionID string
	Succeeded     bool
	Reason        string
}
