package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/service/models/currency"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/product"
)

var productColumns = []string{
	"id",
	"producer_id",
	"title",
	"price_cents",
	"price_currency",
	"stock_quantity",
	"is_available",
	"created_at",
	"updated_at",
}

// ProductDal represents product data access layer model.
type ProductDal struct {
	Id            int64     `db:"id"`
	ProducerId    int64     `db:"producer_id"`
	Title         string    `db:"title"`
	PriceCents    int64     `db:"price_cents"`
	PriceCurrency string    `db:"price_currency"`
	StockQuantity int       `db:"stock_quantity"`
	IsAvailable   bool      `db:"is_available"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ToModel converts ProductDal to service layer Product model.
func (p *ProductDal) ToModel() (*product.Product, error) {
	cur, err := currency.ParseCurrency(p.PriceCurrency)
	if err != nil {
		return nil, err
	}

	return &product.Product{
		ID:            p.Id,
		ProducerID:    p.ProducerId,
		Title:         p.Title,
		PriceCents:    p.PriceCents,
		PriceCurrency: cur,
		StockQuantity: p.StockQuantity,
		IsAvailable:   p.IsAvailable,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

type PostgresProductRepository struct {
	conn postgres.Querier
}

func NewPostgresProductRepository(conn postgres.Querier) *PostgresProductRepository {
	return &PostgresProductRepository{
		conn: conn,
	}
}

// GetByID loads a product row.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	query, args, err := sq.Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	dal, err := r.scanOne(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domainerr.NotFoundError{Entity: "product", ID: id}
		}

		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return dal.ToModel()
}

// Reserve decrements stock_quantity by qty in a single conditional UPDATE, so
// two concurrent reservations can never both pass a stale availability check.
// The updated row doubles as the price snapshot for the order line.
func (r *PostgresProductRepository) Reserve(
	ctx context.Context,
	productID int64,
	qty int,
) (*product.Product, error) {
	query, args, err := sq.Update("products").
		Set("stock_quantity", sq.Expr("stock_quantity - ?", qty)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": productID, "is_available": true}).
		Where(sq.GtOrEq{"stock_quantity": qty}).
		Suffix("RETURNING " + strings.Join(productColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reserve query: %w", err)
	}

	dal, err := r.scanOne(r.conn.QueryRow(ctx, query, args...))
	if err == nil {
		return dal.ToModel()
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	// Nothing matched: re-read the row to tell a missing or unavailable
	// product apart from plain insufficient stock.
	current, err := r.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !current.IsAvailable {
		return nil, &domainerr.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: 0,
		}
	}

	return nil, &domainerr.InsufficientStockError{
		ProductID: productID,
		Requested: qty,
		Available: current.StockQuantity,
	}
}

// Release increments stock_quantity back. Compensating cancellation path only.
func (r *PostgresProductRepository) Release(ctx context.Context, productID int64, qty int) error {
	query, args, err := sq.Update("products").
		Set("stock_quantity", sq.Expr("stock_quantity + ?", qty)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": productID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build release query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domainerr.NotFoundError{Entity: "product", ID: productID}
	}

	return nil
}

func (r *PostgresProductRepository) scanOne(row pgx.Row) (*ProductDal, error) {
	var dal ProductDal
	err := row.Scan(
		&dal.Id,
		&dal.ProducerId,
		&dal.Title,
		&dal.PriceCents,
		&dal.PriceCurrency,
		&dal.StockQuantity,
		&dal.IsAvailable,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &dal, nil
}
