// Package servicetest provides an in-memory uow.UnitOfWork for service tests.
// Begin takes the store lock, so concurrent units of work serialize exactly
// like row-locking transactions do, and Rollback restores a snapshot taken at
// Begin.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joel710/agriflow/internal/dal/interfaces/ideliveryrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iorderitemrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iorderrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/ioutboxrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iproductrepo"
	"github.com/joel710/agriflow/internal/dal/interfaces/iwalletrepo"
	"github.com/joel710/agriflow/internal/dal/uow"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/domainerr"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/orderitem"
	"github.com/joel710/agriflow/internal/service/models/outbox"
	"github.com/joel710/agriflow/internal/service/models/product"
	"github.com/joel710/agriflow/internal/service/models/wallet"
)

// Store is the shared state behind fake units of work.
type Store struct {
	mu sync.Mutex

	Orders     map[int64]order.Order
	Items      []orderitem.OrderItem
	Products   map[int64]product.Product
	Deliveries map[int64]delivery.Delivery
	Wallets    map[int64]wallet.Wallet
	WalletTxs  []wallet.Transaction
	Outbox     []outbox.OutboxMessage

	nextID int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Orders:     make(map[int64]order.Order),
		Products:   make(map[int64]product.Product),
		Deliveries: make(map[int64]delivery.Delivery),
		Wallets:    make(map[int64]wallet.Wallet),
	}
}

// Factory returns a uow factory for the service options.
func (s *Store) Factory() func() uow.UnitOfWork {
	return func() uow.UnitOfWork {
		return &fakeUnitOfWork{store: s}
	}
}

// SeedProduct stores a product and returns it.
func (s *Store) SeedProduct(p product.Product) product.Product {
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.Products[p.ID] = p

	return p
}

// SeedOrder stores an order and returns it.
func (s *Store) SeedOrder(o order.Order) order.Order {
	if o.ID == 0 {
		o.ID = s.id()
	}
	s.Orders[o.ID] = o

	return o
}

// SeedItem stores an order line and returns it.
func (s *Store) SeedItem(item orderitem.OrderItem) orderitem.OrderItem {
	if item.ID == 0 {
		item.ID = s.id()
	}
	s.Items = append(s.Items, item)

	return item
}

// SeedDelivery stores a delivery and returns it.
func (s *Store) SeedDelivery(d delivery.Delivery) delivery.Delivery {
	if d.ID == 0 {
		d.ID = s.id()
	}
	s.Deliveries[d.ID] = d

	return d
}

// SeedWallet stores a wallet and returns it.
func (s *Store) SeedWallet(w wallet.Wallet) wallet.Wallet {
	if w.ID == 0 {
		w.ID = s.id()
	}
	s.Wallets[w.ID] = w

	return w
}

func (s *Store) id() int64 {
	s.nextID++

	return s.nextID
}

type snapshot struct {
	orders     map[int64]order.Order
	items      []orderitem.OrderItem
	products   map[int64]product.Product
	deliveries map[int64]delivery.Delivery
	wallets    map[int64]wallet.Wallet
	walletTxs  []wallet.Transaction
	outbox     []outbox.OutboxMessage
	nextID     int64
}

func (s *Store) snapshot() *snapshot {
	snap := &snapshot{
		orders:     make(map[int64]order.Order, len(s.Orders)),
		products:   make(map[int64]product.Product, len(s.Products)),
		deliveries: make(map[int64]delivery.Delivery, len(s.Deliveries)),
		wallets:    make(map[int64]wallet.Wallet, len(s.Wallets)),
		items:      append([]orderitem.OrderItem(nil), s.Items...),
		walletTxs:  append([]wallet.Transaction(nil), s.WalletTxs...),
		outbox:     append([]outbox.OutboxMessage(nil), s.Outbox...),
		nextID:     s.nextID,
	}
	for k, v := range s.Orders {
		snap.orders[k] = v
	}
	for k, v := range s.Products {
		snap.products[k] = v
	}
	for k, v := range s.Deliveries {
		snap.deliveries[k] = v
	}
	for k, v := range s.Wallets {
		snap.wallets[k] = v
	}

	return snap
}

func (s *Store) restore(snap *snapshot) {
	s.Orders = snap.orders
	s.Items = snap.items
	s.Products = snap.products
	s.Deliveries = snap.deliveries
	s.Wallets = snap.wallets
	s.WalletTxs = snap.walletTxs
	s.Outbox = snap.outbox
	s.nextID = snap.nextID
}

type fakeUnitOfWork struct {
	store *Store
	inTx  bool
	snap  *snapshot
}

func (u *fakeUnitOfWork) Begin(context.Context) error {
	u.store.mu.Lock()
	u.snap = u.store.snapshot()
	u.inTx = true

	return nil
}

func (u *fakeUnitOfWork) Commit(context.Context) error {
	if !u.inTx {
		return nil
	}
	u.inTx = false
	u.snap = nil
	u.store.mu.Unlock()

	return nil
}

func (u *fakeUnitOfWork) Rollback(context.Context) error {
	if !u.inTx {
		return nil
	}
	u.store.restore(u.snap)
	u.inTx = false
	u.snap = nil
	u.store.mu.Unlock()

	return nil
}

// lock serializes repo calls made outside a transaction.
func (u *fakeUnitOfWork) lock() func() {
	if u.inTx {
		return func() {}
	}
	u.store.mu.Lock()

	return u.store.mu.Unlock
}

func (u *fakeUnitOfWork) Orders() iorderrepo.IOrderRepository { return orderRepo{u} }

func (u *fakeUnitOfWork) OrderItems() iorderitemrepo.IOrderItemRepository {
	return orderItemRepo{u}
}

func (u *fakeUnitOfWork) Products() iproductrepo.IProductRepository { return productRepo{u} }

func (u *fakeUnitOfWork) Deliveries() ideliveryrepo.IDeliveryRepository { return deliveryRepo{u} }

func (u *fakeUnitOfWork) Wallets() iwalletrepo.IWalletRepository { return walletRepo{u} }

func (u *fakeUnitOfWork) Outbox() ioutboxrepo.IOutboxRepository { return outboxRepo{u} }

type orderRepo struct{ u *fakeUnitOfWork }

func (r orderRepo) Insert(_ context.Context, o order.Order) (*order.Order, error) {
	defer r.u.lock()()
	o.ID = r.u.store.id()
	o.OrderItems = nil
	r.u.store.Orders[o.ID] = o

	return &o, nil
}

func (r orderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	defer r.u.lock()()

	return r.get(id)
}

func (r orderRepo) GetByIDForUpdate(_ context.Context, id int64) (*order.Order, error) {
	defer r.u.lock()()

	return r.get(id)
}

func (r orderRepo) get(id int64) (*order.Order, error) {
	o, ok := r.u.store.Orders[id]
	if !ok {
		return nil, &domainerr.NotFoundError{Entity: "order", ID: id}
	}
	o.OrderItems = nil

	return &o, nil
}

func (r orderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	defer r.u.lock()()

	ids := make([]int64, 0, len(r.u.store.Orders))
	for id := range r.u.store.Orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	matched := make([]order.Order, 0)
	for _, id := range ids {
		o := r.u.store.Orders[id]
		if len(filter.Ids) > 0 && !containsInt64(filter.Ids, o.ID) {
			continue
		}
		if len(filter.CustomerIds) > 0 && !containsInt64(filter.CustomerIds, o.CustomerID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, o.Status.String()) {
			continue
		}
		matched = append(matched, o)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []order.Order{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (r orderRepo) Update(_ context.Context, o *order.Order) error {
	defer r.u.lock()()
	stored, ok := r.u.store.Orders[o.ID]
	if !ok {
		return &domainerr.NotFoundError{Entity: "order", ID: o.ID}
	}

	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.PaymentMethod = o.PaymentMethod
	stored.PaymentTransactionID = o.PaymentTransactionID
	stored.UpdatedAt = o.UpdatedAt
	r.u.store.Orders[o.ID] = stored

	return nil
}

type orderItemRepo struct{ u *fakeUnitOfWork }

func (r orderItemRepo) BulkInsert(
	_ context.Context,
	items []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	defer r.u.lock()()
	out := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		item.ID = r.u.store.id()
		r.u.store.Items = append(r.u.store.Items, item)
		out = append(out, item)
	}

	return out, nil
}

func (r orderItemRepo) QueryByOrderIds(
	_ context.Context,
	orderIds []int64,
) ([]orderitem.OrderItem, error) {
	defer r.u.lock()()
	out := make([]orderitem.OrderItem, 0)
	for _, item := range r.u.store.Items {
		if containsInt64(orderIds, item.OrderID) {
			out = append(out, item)
		}
	}

	return out, nil
}

type productRepo struct{ u *fakeUnitOfWork }

func (r productRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	defer r.u.lock()()

	return r.get(id)
}

func (r productRepo) get(id int64) (*product.Product, error) {
	p, ok := r.u.store.Products[id]
	if !ok {
		return nil, &domainerr.NotFoundError{Entity: "product", ID: id}
	}

	return &p, nil
}

func (r productRepo) Reserve(_ context.Context, productID int64, qty int) (*product.Product, error) {
	defer r.u.lock()()
	p, ok := r.u.store.Products[productID]
	if !ok {
		return nil, &domainerr.NotFoundError{Entity: "product", ID: productID}
	}
	if !p.IsAvailable {
		return nil, &domainerr.InsufficientStockError{ProductID: productID, Requested: qty, Available: 0}
	}
	if p.StockQuantity < qty {
		return nil, &domainerr.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: p.StockQuantity,
		}
	}

	p.StockQuantity -= qty
	p.UpdatedAt = time.Now()
	r.u.store.Products[productID] = p

	return &p, nil
}

func (r productRepo) Release(_ context.Context, productID int64, qty int) error {
	defer r.u.lock()()
	p, ok := r.u.store.Products[productID]
	if !ok {
		return &domainerr.NotFoundError{Entity: "product", ID: productID}
	}

	p.StockQuantity += qty
	p.UpdatedAt = time.Now()
	r.u.store.Products[productID] = p

	return nil
}

type deliveryRepo struct{ u *fakeUnitOfWork }

func (r deliveryRepo) Insert(_ context.Context, d delivery.Delivery) (*delivery.Delivery, error) {
	defer r.u.lock()()
	for _, existing := range r.u.store.Deliveries {
		if existing.OrderID == d.OrderID {
			return nil, &domainerr.ConflictError{Reason: "order already has a delivery"}
		}
	}

	d.ID = r.u.store.id()
	r.u.store.Deliveries[d.ID] = d

	return &d, nil
}

func (r deliveryRepo) GetByID(_ context.Context, id int64) (*delivery.Delivery, error) {
	defer r.u.lock()()

	return r.get(id)
}

func (r deliveryRepo) GetByIDForUpdate(_ context.Context, id int64) (*delivery.Delivery, error) {
	defer r.u.lock()()

	return r.get(id)
}

func (r deliveryRepo) get(id int64) (*delivery.Delivery, error) {
	d, ok := r.u.store.Deliveries[id]
	if !ok {
		return nil, &domainerr.NotFoundError{Entity: "delivery", ID: id}
	}

	return &d, nil
}

func (r deliveryRepo) GetByOrderID(_ context.Context, orderID int64) (*delivery.Delivery, error) {
	defer r.u.lock()()
	for _, d := range r.u.store.Deliveries {
		if d.OrderID == orderID {
			return &d, nil
		}
	}

	return nil, &domainerr.NotFoundError{Entity: "delivery", ID: orderID}
}

func (r deliveryRepo) Update(_ context.Context, d *delivery.Delivery) error {
	defer r.u.lock()()
	if _, ok := r.u.store.Deliveries[d.ID]; !ok {
		return &domainerr.NotFoundError{Entity: "delivery", ID: d.ID}
	}
	r.u.store.Deliveries[d.ID] = *d

	return nil
}

type walletRepo struct{ u *fakeUnitOfWork }

func (r walletRepo) GetByCustomerID(_ context.Context, customerID int64) (*wallet.Wallet, error) {
	defer r.u.lock()()

	return r.getByCustomer(customerID)
}

func (r walletRepo) GetByCustomerIDForUpdate(
	_ context.Context,
	customerID int64,
) (*wallet.Wallet, error) {
	defer r.u.lock()()

	return r.getByCustomer(customerID)
}

func (r walletRepo) getByCustomer(customerID int64) (*wallet.Wallet, error) {
	for _, w := range r.u.store.Wallets {
		if w.CustomerID == customerID {
			return &w, nil
		}
	}

	return nil, &domainerr.NotFoundError{Entity: "wallet", ID: customerID}
}

func (r walletRepo) Debit(_ context.Context, walletID int64, amountCents int64) error {
	defer r.u.lock()()
	w, ok := r.u.store.Wallets[walletID]
	if !ok {
		return &domainerr.NotFoundError{Entity: "wallet", ID: walletID}
	}
	if w.BalanceCents < amountCents {
		return &domainerr.InsufficientBalanceError{
			RequiredCents:  amountCents,
			AvailableCents: w.BalanceCents,
		}
	}

	w.BalanceCents -= amountCents
	w.UpdatedAt = time.Now()
	r.u.store.Wallets[walletID] = w

	return nil
}

func (r walletRepo) InsertTransaction(
	_ context.Context,
	t wallet.Transaction,
) (*wallet.Transaction, error) {
	defer r.u.lock()()
	t.ID = r.u.store.id()
	r.u.store.WalletTxs = append(r.u.store.WalletTxs, t)

	return &t, nil
}

func (r walletRepo) ListTransactions(
	_ context.Context,
	walletID int64,
	limit, offset int,
) ([]wallet.Transaction, error) {
	defer r.u.lock()()
	out := make([]wallet.Transaction, 0)
	for i := len(r.u.store.WalletTxs) - 1; i >= 0; i-- {
		if r.u.store.WalletTxs[i].WalletID == walletID {
			out = append(out, r.u.store.WalletTxs[i])
		}
	}

	if offset > 0 {
		if offset >= len(out) {
			return []wallet.Transaction{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	return out, nil
}

type outboxRepo struct{ u *fakeUnitOfWork }

func (r outboxRepo) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	defer r.u.lock()()
	msg.ID = r.u.store.id()
	r.u.store.Outbox = append(r.u.store.Outbox, msg)

	return nil
}

func (r outboxRepo) GetPendingMessages(
	_ context.Context,
	limit int,
) ([]outbox.OutboxMessage, error) {
	defer r.u.lock()()
	now := time.Now()
	out := make([]outbox.OutboxMessage, 0)
	for _, msg := range r.u.store.Outbox {
		if msg.RetryCount < msg.MaxRetries && !msg.NextRetryAt.After(now) {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (r outboxRepo) Delete(_ context.Context, id int64) error {
	defer r.u.lock()()
	for i, msg := range r.u.store.Outbox {
		if msg.ID == id {
			r.u.store.Outbox = append(r.u.store.Outbox[:i], r.u.store.Outbox[i+1:]...)

			return nil
		}
	}

	return nil
}

func (r outboxRepo) UpdateRetry(
	_ context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	defer r.u.lock()()
	for i := range r.u.store.Outbox {
		if r.u.store.Outbox[i].ID == id {
			r.u.store.Outbox[i].RetryCount = retryCount
			r.u.store.Outbox[i].LastError = lastError
			r.u.store.Outbox[i].NextRetryAt = nextRetryAt
			r.u.store.Outbox[i].UpdatedAt = time.Now()

			return nil
		}
	}

	return nil
}

func containsInt64(haystack []int64, needle int64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}
