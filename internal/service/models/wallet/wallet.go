package wallet

import (
	"errors"
	"time"

	"github.com/joel710/agriflow/internal/service/models/currency"
)

// TransactionKind tags a ledger entry as money in or money out.
type TransactionKind string

const (
	KindCredit TransactionKind = "credit"
	KindDebit  TransactionKind = "debit"
)

var ErrInvalidTransactionKind = errors.New("invalid wallet transaction kind")

func (k TransactionKind) String() string { return string(k) }

func ParseTransactionKind(s string) (TransactionKind, error) {
	switch TransactionKind(s) {
	case KindCredit, KindDebit:
		return TransactionKind(s), nil
	default:
		return "", ErrInvalidTransactionKind
	}
}

// Wallet is a customer-owned internal balance. The balance is a cached
// projection of the transaction ledger and must be updated in the same
// database transaction as the ledger insert.
type Wallet struct {
	ID           int64             `json:"id"`
	CustomerID   int64             `json:"customerId"`
	BalanceCents int64             `json:"balanceCents"`
	Currency     currency.Currency `json:"currency"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Transaction is one append-only ledger row; the ledger is the audit trail.
type Transaction struct {
	ID          int64           `json:"id"`
	WalletID    int64           `json:"walletId"`
	Kind        TransactionKind `json:"kind"`
	AmountCents int64           `json:"amountCents"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}
