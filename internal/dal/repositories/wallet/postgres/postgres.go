package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/service/models/currency"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/wallet"
)

// WalletDal represents wallet data access layer model.
type WalletDal struct {
	Id           int64     `db:"id"`
	CustomerId   int64     `db:"customer_id"`
	BalanceCents int64     `db:"balance_cents"`
	Currency     string    `db:"currency"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ToModel converts WalletDal to service layer Wallet model.
func (w *WalletDal) ToModel() (*wallet.Wallet, error) {
	cur, err := currency.ParseCurrency(w.Currency)
	if err != nil {
		return nil, err
	}

	return &wallet.Wallet{
		ID:           w.Id,
		CustomerID:   w.CustomerId,
		BalanceCents: w.BalanceCents,
		Currency:     cur,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}, nil
}

type PostgresWalletRepository struct {
	conn postgres.Querier
}

func NewPostgresWalletRepository(conn postgres.Querier) *PostgresWalletRepository {
	return &PostgresWalletRepository{
		conn: conn,
	}
}

func (r *PostgresWalletRepository) GetByCustomerID(ctx context.Context, customerID int64) (*wallet.Wallet, error) {
	return r.getByCustomerID(ctx, customerID, false)
}

// GetByCustomerIDForUpdate locks the wallet row for the balance
// check-then-debit sequence.
func (r *PostgresWalletRepository) GetByCustomerIDForUpdate(
	ctx context.Context,
	customerID int64,
) (*wallet.Wallet, error) {
	return r.getByCustomerID(ctx, customerID, true)
}

func (r *PostgresWalletRepository) getByCustomerID(
	ctx context.Context,
	customerID int64,
	forUpdate bool,
) (*wallet.Wallet, error) {
	builder := sq.Select(
		"id",
		"customer_id",
		"balance_cents",
		"currency",
		"created_at",
		"updated_at",
	).
		From("wallets").
		Where(sq.Eq{"customer_id": customerID}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal WalletDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.CustomerId,
		&dal.BalanceCents,
		&dal.Currency,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domainerr.NotFoundError{Entity: "wallet", ID: customerID}
		}

		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return dal.ToModel()
}

// Debit decrements the cached balance. The guard against going negative is
// kept in SQL even though callers check under a row lock first.
func (r *PostgresWalletRepository) Debit(ctx context.Context, walletID int64, amountCents int64) error {
	query, args, err := sq.Update("wallets").
		Set("balance_cents", sq.Expr("balance_cents - ?", amountCents)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": walletID}).
		Where(sq.GtOrEq{"balance_cents": amountCents}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build debit query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domainerr.InsufficientBalanceError{RequiredCents: amountCents}
	}

	return nil
}

// InsertTransaction appends a ledger row.
func (r *PostgresWalletRepository) InsertTransaction(
	ctx context.Context,
	t wallet.Transaction,
) (*wallet.Transaction, error) {
	query, args, err := sq.Insert("wallet_transactions").
		Columns(
			"wallet_id",
			"kind",
			"amount_cents",
			"reference",
			"description",
			"created_at",
		).
		Values(
			t.WalletID,
			t.Kind.String(),
			t.AmountCents,
			t.Reference,
			t.Description,
			t.CreatedAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&t.ID); err != nil {
		return nil, fmt.Errorf("failed to insert wallet transaction: %w", err)
	}

	return &t, nil
}

func (r *PostgresWalletRepository) ListTransactions(
	ctx context.Context,
	walletID int64,
	limit, offset int,
) ([]wallet.Transaction, error) {
	builder := sq.Select(
		"id",
		"wallet_id",
		"kind",
		"amount_cents",
		"reference",
		"description",
		"created_at",
	).
		From("wallet_transactions").
		Where(sq.Eq{"wallet_id": walletID}).
		OrderBy("id DESC").
		PlaceholderFormat(sq.Dollar)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	var result []wallet.Transaction
	for rows.Next() {
		var t wallet.Transaction
		var kind string
		err := rows.Scan(
			&t.ID,
			&t.WalletID,
			&kind,
			&t.AmountCents,
			&t.Reference,
			&t.Description,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		t.Kind, err = wallet.ParseTransactionKind(kind)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
