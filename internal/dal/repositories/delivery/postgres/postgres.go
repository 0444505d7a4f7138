package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
)

var deliveryColumns = []string{
	"id",
	"order_id",
	"status",
	"tracking_number",
	"carrier",
	"estimated_at",
	"delivered_at",
	"created_at",
	"updated_at",
}

// DeliveryDal represents delivery data access layer model.
type DeliveryDal struct {
	Id             int64      `db:"id"`
	OrderId        int64      `db:"order_id"`
	Status         string     `db:"status"`
	TrackingNumber string     `db:"tracking_number"`
	Carrier        string     `db:"carrier"`
	EstimatedAt    *time.Time `db:"estimated_at"`
	DeliveredAt    *time.Time `db:"delivered_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// ToModel converts DeliveryDal to service layer Delivery model.
func (d *DeliveryDal) ToModel() (*delivery.Delivery, error) {
	status, err := delivery.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}

	return &delivery.Delivery{
		ID:             d.Id,
		OrderID:        d.OrderId,
		Status:         status,
		TrackingNumber: d.TrackingNumber,
		Carrier:        d.Carrier,
		EstimatedAt:    d.EstimatedAt,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

type PostgresDeliveryRepository struct {
	conn postgres.Querier
}

func NewPostgresDeliveryRepository(conn postgres.Querier) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{
		conn: conn,
	}
}

// Insert creates the single delivery row of an order. The unique index on
// order_id turns a second insert into a domainerr.ConflictError.
func (r *PostgresDeliveryRepository) Insert(
	ctx context.Context,
	d delivery.Delivery,
) (*delivery.Delivery, error) {
	query, args, err := sq.Insert("deliveries").
		Columns(
			"order_id",
			"status",
			"tracking_number",
			"carrier",
			"estimated_at",
			"delivered_at",
			"created_at",
			"updated_at",
		).
		Values(
			d.OrderID,
			d.Status,
			d.TrackingNumber,
			d.Carrier,
			d.EstimatedAt,
			d.DeliveredAt,
			d.CreatedAt,
			d.UpdatedAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&d.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, &domainerr.ConflictError{
				Reason: fmt.Sprintf("order %d already has a delivery", d.OrderID),
			}
		}

		return nil, fmt.Errorf("failed to insert delivery: %w", err)
	}

	return &d, nil
}

func (r *PostgresDeliveryRepository) GetByID(ctx context.Context, id int64) (*delivery.Delivery, error) {
	return r.getOne(ctx, sq.Eq{"id": id}, false, id)
}

// GetByIDForUpdate loads a delivery with an exclusive row lock.
func (r *PostgresDeliveryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*delivery.Delivery, error) {
	return r.getOne(ctx, sq.Eq{"id": id}, true, id)
}

func (r *PostgresDeliveryRepository) GetByOrderID(ctx context.Context, orderID int64) (*delivery.Delivery, error) {
	return r.getOne(ctx, sq.Eq{"order_id": orderID}, false, orderID)
}

func (r *PostgresDeliveryRepository) getOne(
	ctx context.Context,
	where sq.Eq,
	forUpdate bool,
	id int64,
) (*delivery.Delivery, error) {
	builder := sq.Select(deliveryColumns...).
		From("deliveries").
		Where(where).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal DeliveryDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.OrderId,
		&dal.Status,
		&dal.TrackingNumber,
		&dal.Carrier,
		&dal.EstimatedAt,
		&dal.DeliveredAt,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domainerr.NotFoundError{Entity: "delivery", ID: id}
		}

		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return dal.ToModel()
}

// Update persists status, tracking fields and timestamps.
func (r *PostgresDeliveryRepository) Update(ctx context.Context, d *delivery.Delivery) error {
	query, args, err := sq.Update("deliveries").
		Set("status", d.Status).
		Set("tracking_number", d.TrackingNumber).
		Set("carrier", d.Carrier).
		Set("estimated_at", d.EstimatedAt).
		Set("delivered_at", d.DeliveredAt).
		Set("updated_at", d.UpdatedAt).
		Where(sq.Eq{"id": d.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domainerr.NotFoundError{Entity: "delivery", ID: d.ID}
	}

	return nil
}
