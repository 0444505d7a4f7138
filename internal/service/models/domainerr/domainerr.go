package domainerr

import (
	"errors"
	"fmt"
)

// ErrReconciliationConflict marks a webhook that tried to downgrade an order
// already settled as paid. Callers log it and report success to the provider so
// it stops retrying.
var ErrReconciliationConflict = errors.New("webhook conflicts with settled payment state")

// ValidationError rejects malformed input before any storage is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InsufficientStockError identifies the order line that could not be reserved.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available,
	)
}

// InsufficientBalanceError is returned by the wallet payment path only.
type InsufficientBalanceError struct {
	RequiredCents  int64
	AvailableCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient wallet balance: required %d, available %d",
		e.RequiredCents, e.AvailableCents,
	)
}

// InvalidTransitionError rejects a status change not allowed from the current state.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

// ForbiddenError means the caller lacks rights over the target entity.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// NotFoundError identifies a missing entity by kind and id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError rejects an operation that would violate a uniqueness rule,
// e.g. a second delivery for the same order.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// GatewayInitiationError wraps a failed call to an external payment gateway.
// The order stays pending so the customer can retry with another method.
type GatewayInitiationError struct {
	Provider string
	Err      error
}

func (e *GatewayInitiationError) Error() string {
	return fmt.Sprintf("payment gateway %s initiation failed: %v", e.Provider, e.Err)
}

func (e *GatewayInitiationError) Unwrap() error {
	return e.Err
}
