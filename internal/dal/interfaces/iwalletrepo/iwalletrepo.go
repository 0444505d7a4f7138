package iwalletrepo

import (
	"context"

	"github.com/joel710/agriflow/internal/service/models/wallet"
)

// IWalletRepository is an interface for wallet postgres repository. The
// balance column is a projection of the transaction ledger; Debit and
// InsertTransaction are always paired inside one unit of work.
type IWalletRepository interface {
	GetByCustomerID(ctx context.Context, customerID int64) (*wallet.Wallet, error)

	// GetByCustomerIDForUpdate locks the wallet row for the balance
	// check-then-debit. Must be called inside a unit of work.
	GetByCustomerIDForUpdate(ctx context.Context, customerID int64) (*wallet.Wallet, error)

	// Debit decrements the cached balance, guarded against going negative.
	Debit(ctx context.Context, walletID int64, amountCents int64) error

	// InsertTransaction appends a ledger row.
	InsertTransaction(ctx context.Context, t wallet.Transaction) (*wallet.Transaction, error)

	ListTransactions(ctx context.Context, walletID int64, limit, offset int) ([]wallet.Transaction, error)
}
