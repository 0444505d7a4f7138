package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/service/models/currency"
	"github.com/joel710/agriflow/internal/service/models/orderitem"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id             int64     `db:"id"`
	OrderId        int64     `db:"order_id"`
	ProductId      int64     `db:"product_id"`
	ProductTitle   string    `db:"product_title"`
	Quantity       int       `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
	LineTotalCents int64     `db:"line_total_cents"`
	PriceCurrency  string    `db:"price_currency"`
	CreatedAt      time.Time `db:"created_at"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (i *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(i.PriceCurrency)
	if err != nil {
		return nil, err
	}

	return &orderitem.OrderItem{
		ID:             i.Id,
		OrderID:        i.OrderId,
		ProductID:      i.ProductId,
		ProductTitle:   i.ProductTitle,
		Quantity:       i.Quantity,
		UnitPriceCents: i.UnitPriceCents,
		LineTotalCents: i.LineTotalCents,
		PriceCurrency:  cur,
		CreatedAt:      i.CreatedAt,
	}, nil
}

type PostgresOrderItemRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderItemRepository(conn postgres.Querier) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
	}
}

// BulkInsert inserts all lines of an order in one statement and returns them
// with generated ids. Lines are immutable after this point.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	items []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(items) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	builder := sq.Insert("order_items").
		Columns(
			"order_id",
			"product_id",
			"product_title",
			"quantity",
			"unit_price_cents",
			"line_total_cents",
			"price_currency",
			"created_at",
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar)

	for _, item := range items {
		builder = builder.Values(
			item.OrderID,
			item.ProductID,
			item.ProductTitle,
			item.Quantity,
			item.UnitPriceCents,
			item.LineTotalCents,
			item.PriceCurrency,
			item.CreatedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if err := rows.Scan(&items[i].ID); err != nil {
			return nil, fmt.Errorf("failed to scan order item id: %w", err)
		}
		i++
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// QueryByOrderIds retrieves the lines of the given orders.
func (r *PostgresOrderItemRepository) QueryByOrderIds(
	ctx context.Context,
	orderIds []int64,
) ([]orderitem.OrderItem, error) {
	if len(orderIds) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query, args, err := sq.Select(
		"id",
		"order_id",
		"product_id",
		"product_title",
		"quantity",
		"unit_price_cents",
		"line_total_cents",
		"price_currency",
		"created_at",
	).
		From("order_items").
		Where(sq.Eq{"order_id": orderIds}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.ProductTitle,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.LineTotalCents,
			&dal.PriceCurrency,
			&dal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
