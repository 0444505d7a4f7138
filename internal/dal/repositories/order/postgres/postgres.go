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
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/orderitem"
)

var orderColumns = []string{
	"id",
	"customer_id",
	"status",
	"payment_status",
	"payment_method",
	"payment_transaction_id",
	"delivery_address",
	"delivery_notes",
	"total_price_cents",
	"total_price_currency",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id                   int64     `db:"id"`
	CustomerId           int64     `db:"customer_id"`
	Status               string    `db:"status"`
	PaymentStatus        string    `db:"payment_status"`
	PaymentMethod        string    `db:"payment_method"`
	PaymentTransactionId *string   `db:"payment_transaction_id"`
	DeliveryAddress      string    `db:"delivery_address"`
	DeliveryNotes        string    `db:"delivery_notes"`
	TotalPriceCents      int64     `db:"total_price_cents"`
	TotalPriceCurrency   string    `db:"total_price_currency"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.TotalPriceCurrency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := order.ParsePaymentStatus(o.PaymentStatus)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:                   o.Id,
		CustomerID:           o.CustomerId,
		Status:               status,
		PaymentStatus:        paymentStatus,
		PaymentMethod:        o.PaymentMethod,
		PaymentTransactionID: o.PaymentTransactionId,
		DeliveryAddress:      o.DeliveryAddress,
		DeliveryNotes:        o.DeliveryNotes,
		TotalPriceCents:      o.TotalPriceCents,
		TotalPriceCurrency:   cur,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		OrderItems:           []orderitem.OrderItem{}, // Populated separately
	}, nil
}

type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert persists a new order row and returns it with its generated id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (*order.Order, error) {
	query, args, err := sq.Insert("orders").
		Columns(
			"customer_id",
			"status",
			"payment_status",
			"payment_method",
			"payment_transaction_id",
			"delivery_address",
			"delivery_notes",
			"total_price_cents",
			"total_price_currency",
			"created_at",
			"updated_at",
		).
		Values(
			o.CustomerID,
			o.Status,
			o.PaymentStatus,
			o.PaymentMethod,
			o.PaymentTransactionID,
			o.DeliveryAddress,
			o.DeliveryNotes,
			o.TotalPriceCents,
			o.TotalPriceCurrency,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	return &o, nil
}

// GetByID loads an order without its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate loads an order with an exclusive row lock.
func (r *PostgresOrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return r.getByID(ctx, id, true)
}

func (r *PostgresOrderRepository) getByID(ctx context.Context, id int64, forUpdate bool) (*order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.CustomerId,
		&dal.Status,
		&dal.PaymentStatus,
		&dal.PaymentMethod,
		&dal.PaymentTransactionId,
		&dal.DeliveryAddress,
		&dal.DeliveryNotes,
		&dal.TotalPriceCents,
		&dal.TotalPriceCurrency,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domainerr.NotFoundError{Entity: "order", ID: id}
		}

		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return dal.ToModel()
}

// Query retrieves orders based on filter criteria.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		OrderBy("id DESC").
		PlaceholderFormat(sq.Dollar)

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.CustomerIds) > 0 {
		builder = builder.Where(sq.Eq{"customer_id": filter.CustomerIds})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		err := rows.Scan(
			&dal.Id,
			&dal.CustomerId,
			&dal.Status,
			&dal.PaymentStatus,
			&dal.PaymentMethod,
			&dal.PaymentTransactionId,
			&dal.DeliveryAddress,
			&dal.DeliveryNotes,
			&dal.TotalPriceCents,
			&dal.TotalPriceCurrency,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Update persists the mutable fields of an order.
func (r *PostgresOrderRepository) Update(ctx context.Context, o *order.Order) error {
	query, args, err := sq.Update("orders").
		Set("status", o.Status).
		Set("payment_status", o.PaymentStatus).
		Set("payment_method", o.PaymentMethod).
		Set("payment_transaction_id", o.PaymentTransactionID).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domainerr.NotFoundError{Entity: "order", ID: o.ID}
	}

	return nil
}
