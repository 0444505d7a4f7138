package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/joel710/agriflow/internal/dal/interfaces/ideliveryrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iorderitemrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iorderrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/ioutboxrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iproductrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iwalletrepo"
	"github.com/joel710/agriflow/internal/dal/postgres"
	deliveryrepo "github.com/joel710/agriflow/internal/dal/repositories/delivery/postgres"
	orderrepo "github.com/joel710/agriflow/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/joel710/agriflow/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/joel710/agriflow/internal/dal/repositories/outbox/postgres"
	productrepo "github.com/joel710/agriflow/internal/dal/repositories/product/postgres"
	walletrepo "github.com/joel710/agriflow/internal/dal/repositories/wallet/postgres"
)

// UnitOfWork scopes repository operations to one database transaction. Before
// Begin the repositories run against the pool; after Begin they are rebound to
// the transaction, so every mutation between Begin and Commit is atomic.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Orders() iorderrepo.IOrderRepository
	OrderItems() iorderitemrepo.IOrderItemRepository
	Products() iproductrepo.IProductRepository
	Deliveries() ideliveryrepo.IDeliveryRepository
	Wallets() iwalletrepo.IWalletRepository
	Outbox() ioutboxrepo.IOutboxRepository
}

type unitOfWork struct {
	client *postgres.Client
	tx     pgx.Tx

	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	productRepo   iproductrepo.IProductRepository
	deliveryRepo  ideliveryrepo.IDeliveryRepository
	walletRepo    iwalletrepo.IWalletRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work bound to the pool until Begin is called.
func NewUnitOfWork(client *postgres.Client) UnitOfWork {
	u := &unitOfWork{client: client}
	u.bind(client.Pool())

	return u
}

func (u *unitOfWork) bind(conn postgres.Querier) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.productRepo = productrepo.NewPostgresProductRepository(conn)
	u.deliveryRepo = deliveryrepo.NewPostgresDeliveryRepository(conn)
	u.walletRepo = walletrepo.NewPostgresWalletRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Commit(ctx)
	u.tx = nil
	u.bind(u.client.Pool())

	return err
}

// Rollback is a no-op after Commit, so callers can defer it unconditionally.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(ctx)
	u.tx = nil
	u.bind(u.client.Pool())

	return err
}

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItems() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) Products() iproductrepo.IProductRepository {
	return u.productRepo
}

func (u *unitOfWork) Deliveries() ideliveryrepo.IDeliveryRepository {
	return u.deliveryRepo
}

func (u *unitOfWork) Wallets() iwalletrepo.IWalletRepository {
	return u.walletRepo
}

func (u *unitOfWork) Outbox() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}
