// Package memory is an in-process implementation of the repository
// interfaces. Row locks block like SELECT ... FOR UPDATE and every write is
// undone on rollback. Reads are not isolated from other open transactions.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// Store holds all rows and the lock table
type Store struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	coupons   map[uuid.UUID]*domain.Coupon
	addresses map[uuid.UUID]*domain.Address
	orders    map[uuid.UUID]*domain.Order
	items     map[uuid.UUID][]*domain.OrderItem
	movements []*domain.InventoryMovement
	events    []*domain.OrderEvent
	locks     map[string]chan struct{}

	failOn map[string]error // injected one-shot faults by op name
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		products:  make(map[uuid.UUID]*domain.Product),
		coupons:   make(map[uuid.UUID]*domain.Coupon),
		addresses: make(map[uuid.UUID]*domain.Address),
		orders:    make(map[uuid.UUID]*domain.Order),
		items:     make(map[uuid.UUID][]*domain.OrderItem),
		locks:     make(map[string]chan struct{}),
		failOn:    make(map[string]error),
	}
}

// AddProduct seeds a product
func (s *Store) AddProduct(p *domain.Product) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.products[p.ID] = copyProduct(p)
	return p
}

// AddCoupon seeds a coupon
func (s *Store) AddCoupon(c *domain.Coupon) *domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	s.coupons[c.ID] = &cp
	return c
}

// AddOrder seeds an order, e.g. a past completed order using a coupon
func (s *Store) AddOrder(o *domain.Order) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	cp := *o
	s.orders[o.ID] = &cp
	return o
}

// FailNext makes the next call of op fail with err.
// Ops are named "<Repository>.<Method>", e.g. "OrderItem.CreateBatch".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

// Product returns the committed-or-current state of a product
func (s *Store) Product(id uuid.UUID) (*domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	return copyProduct(p), true
}

// Coupon returns the current state of a coupon by code
func (s *Store) Coupon(code string) (*domain.Coupon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.couponByCode(code)
	if c == nil {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Order returns the current state of an order
func (s *Store) Order(id uuid.UUID) (*domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// Events returns the audit events of an order in insertion order
func (s *Store) Events(orderID uuid.UUID) []domain.OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OrderEvent
	for _, e := range s.events {
		if e.OrderID == orderID {
			out = append(out, *e)
		}
	}
	return out
}

// Counts reports how many rows of each kind exist
func (s *Store) Counts() (orders, items, movements, addresses, events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, its := range s.items {
		items += len(its)
	}
	return len(s.orders), items, len(s.movements), len(s.addresses), len(s.events)
}

// Movements returns every movement of a product in insertion order
func (s *Store) Movements(productID uuid.UUID) []domain.InventoryMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InventoryMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, *m)
		}
	}
	return out
}

// BeginTx opens a transaction
func (s *Store) BeginTx(ctx context.Context) (repository.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx := &memTx{store: s, held: make(map[string]bool)}
	tx.repos = &repository.Repositories{
		Product:   &productRepo{tx},
		Coupon:    &couponRepo{tx},
		Address:   &addressRepo{tx},
		Order:     &orderRepo{tx},
		OrderItem: &orderItemRepo{tx},
		Movement:  &movementRepo{tx},
		Event:     &eventRepo{tx},
	}
	return tx, nil
}

func (s *Store) couponByCode(code string) *domain.Coupon {
	for _, c := range s.coupons {
		if strings.EqualFold(c.Code, code) {
			return c
		}
	}
	return nil
}

type memTx struct {
	store *Store
	repos *repository.Repositories
	held  map[string]bool
	order []string
	undo  []func()
	done  bool
}

func (tx *memTx) Repos() *repository.Repositories { return tx.repos }

func (tx *memTx) Commit() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.undo = nil
	tx.releaseLocks()
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.store.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.store.mu.Unlock()
	tx.undo = nil
	tx.releaseLocks()
	return nil
}

// lock blocks until the row identified by key is free or ctx ends.
// Locks are re-entrant within a transaction.
func (tx *memTx) lock(ctx context.Context, key string) error {
	if tx.done {
		return sql.ErrTxDone
	}
	if tx.held[key] {
		return nil
	}
	tx.store.mu.Lock()
	ch, ok := tx.store.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		tx.store.locks[key] = ch
	}
	tx.store.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	tx.held[key] = true
	tx.order = append(tx.order, key)
	return nil
}

func (tx *memTx) releaseLocks() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, key := range tx.order {
		<-tx.store.locks[key]
	}
	tx.held = make(map[string]bool)
	tx.order = nil
}

// begin checks the transaction state and injected faults, then takes the
// store mutex. Callers must call tx.store.mu.Unlock.
func (tx *memTx) begin(ctx context.Context, op string) error {
	if tx.done {
		return sql.ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.store.mu.Lock()
	if err, ok := tx.store.failOn[op]; ok {
		delete(tx.store.failOn, op)
		tx.store.mu.Unlock()
		return err
	}
	return nil
}

func copyProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Discounts = append([]domain.Discount(nil), p.Discounts...)
	sort.SliceStable(cp.Discounts, func(i, j int) bool {
		return strings.Compare(cp.Discounts[i].ID.String(), cp.Discounts[j].ID.String()) < 0
	})
	return &cp
}

type productRepo struct{ tx *memTx }

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if err := r.tx.begin(ctx, "Product.GetByID"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	p, ok := r.tx.store.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return copyProduct(p), nil
}

func (r *productRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if err := r.tx.lock(ctx, "product:"+id.String()); err != nil {
		return nil, err
	}
	if err := r.tx.begin(ctx, "Product.LockForUpdate"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	p, ok := r.tx.store.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return copyProduct(p), nil
}

func (r *productRepo) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	if err := r.tx.begin(ctx, "Product.UpdateStock"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	p, ok := r.tx.store.products[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	prevStock, prevUpdated := p.Stock, p.UpdatedAt
	p.Stock = stock
	p.UpdatedAt = time.Now()
	r.tx.undo = append(r.tx.undo, func() {
		p.Stock = prevStock
		p.UpdatedAt = prevUpdated
	})
	return nil
}

type couponRepo struct{ tx *memTx }

func (r *couponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	if err := r.tx.begin(ctx, "Coupon.GetByCode"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	c := r.tx.store.couponByCode(code)
	if c == nil {
		return nil, &errors.ErrNotFound{Resource: "coupon", ID: code}
	}
	cp := *c
	return &cp, nil
}

func (r *couponRepo) LockByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	if err := r.tx.lock(ctx, "coupon:"+strings.ToUpper(code)); err != nil {
		return nil, err
	}
	return r.GetByCode(ctx, code)
}

func (r *couponRepo) IncrementUses(ctx context.Context, id uuid.UUID) error {
	if err := r.tx.begin(ctx, "Coupon.IncrementUses"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	c, ok := r.tx.store.coupons[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "coupon", ID: id.String()}
	}
	c.CurrentUses++
	r.tx.undo = append(r.tx.undo, func() { c.CurrentUses-- })
	return nil
}

func (r *couponRepo) ReleaseUse(ctx context.Context, id uuid.UUID) error {
	r.tx.store.mu.Lock()
	c, ok := r.tx.store.coupons[id]
	r.tx.store.mu.Unlock()
	if !ok {
		return &errors.ErrNotFound{Resource: "coupon", ID: id.String()}
	}
	if err := r.tx.lock(ctx, "coupon:"+strings.ToUpper(c.Code)); err != nil {
		return err
	}
	if err := r.tx.begin(ctx, "Coupon.ReleaseUse"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	if c.CurrentUses == 0 {
		return nil
	}
	c.CurrentUses--
	r.tx.undo = append(r.tx.undo, func() { c.CurrentUses++ })
	return nil
}

type addressRepo struct{ tx *memTx }

func (r *addressRepo) FindMatch(ctx context.Context, match *domain.Address) (*domain.Address, error) {
	if err := r.tx.begin(ctx, "Address.FindMatch"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	for _, a := range r.tx.store.addresses {
		if a.UserID == match.UserID && a.Kind == match.Kind && a.Line1 == match.Line1 &&
			a.City == match.City && a.PostalCode == match.PostalCode && a.Country == match.Country {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "address", ID: match.Line1}
}

func (r *addressRepo) Create(ctx context.Context, address *domain.Address) error {
	if err := r.tx.begin(ctx, "Address.Create"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	now := time.Now()
	if address.ID == uuid.Nil {
		address.ID = uuid.New()
	}
	address.CreatedAt, address.UpdatedAt = now, now
	cp := *address
	r.tx.store.addresses[cp.ID] = &cp
	r.tx.undo = append(r.tx.undo, func() { delete(r.tx.store.addresses, cp.ID) })
	return nil
}

type orderRepo struct{ tx *memTx }

// Create enforces one order per payment reference. Like a unique index, a
// second insert of the same reference waits for the first transaction to
// finish and fails only if it committed.
func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	if order.PaymentReference != nil {
		if err := r.tx.lock(ctx, "payment_reference:"+*order.PaymentReference); err != nil {
			return err
		}
	}
	if err := r.tx.begin(ctx, "Order.Create"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	if order.PaymentReference != nil {
		for _, o := range r.tx.store.orders {
			if o.PaymentReference != nil && *o.PaymentReference == *order.PaymentReference {
				return &errors.ErrPaymentReferenceInUse{Reference: *order.PaymentReference}
			}
		}
	}
	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt, order.UpdatedAt = now, now
	cp := *order
	r.tx.store.orders[cp.ID] = &cp
	r.tx.undo = append(r.tx.undo, func() { delete(r.tx.store.orders, cp.ID) })
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if err := r.tx.begin(ctx, "Order.GetByID"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	o, ok := r.tx.store.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	cp := *o
	return &cp, nil
}

func (r *orderRepo) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	if err := r.tx.begin(ctx, "Order.GetByPaymentReference"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	var found *domain.Order
	for _, o := range r.tx.store.orders {
		if o.PaymentReference == nil || *o.PaymentReference != reference {
			continue
		}
		if found == nil || o.CreatedAt.After(found.CreatedAt) {
			found = o
		}
	}
	if found == nil {
		return nil, &errors.ErrNotFound{Resource: "order", ID: reference}
	}
	cp := *found
	return &cp, nil
}

func (r *orderRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if err := r.tx.lock(ctx, "order:"+id.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *orderRepo) UpdateTotals(ctx context.Context, order *domain.Order) error {
	if err := r.tx.begin(ctx, "Order.UpdateTotals"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	o, ok := r.tx.store.orders[order.ID]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: order.ID.String()}
	}
	prev := *o
	o.AmountWithoutVAT = order.AmountWithoutVAT
	o.VATAmount = order.VATAmount
	o.ShippingAmount = order.ShippingAmount
	o.TotalDiscount = order.TotalDiscount
	o.TotalAmount = order.TotalAmount
	o.CouponID = order.CouponID
	o.CouponDiscountAmount = order.CouponDiscountAmount
	o.UpdatedAt = time.Now()
	r.tx.undo = append(r.tx.undo, func() { *o = prev })
	return nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	if err := r.tx.begin(ctx, "Order.UpdateStatus"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	o, ok := r.tx.store.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	prevStatus, prevUpdated := o.Status, o.UpdatedAt
	o.Status = status
	o.UpdatedAt = time.Now()
	r.tx.undo = append(r.tx.undo, func() {
		o.Status = prevStatus
		o.UpdatedAt = prevUpdated
	})
	return nil
}

func (r *orderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	if err := r.tx.begin(ctx, "Order.List"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.tx.store.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if filter.CreatedFrom != nil && o.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedBefore != nil && !o.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Offset >= len(out) {
		return []*domain.Order{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *orderRepo) CountByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID, statuses []domain.OrderStatus) (int, error) {
	if err := r.tx.begin(ctx, "Order.CountByUserAndCoupon"); err != nil {
		return 0, err
	}
	defer r.tx.store.mu.Unlock()
	count := 0
	for _, o := range r.tx.store.orders {
		if o.UserID != userID || o.CouponID == nil || *o.CouponID != couponID {
			continue
		}
		for _, s := range statuses {
			if o.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

type orderItemRepo struct{ tx *memTx }

func (r *orderItemRepo) CreateBatch(ctx context.Context, items []*domain.OrderItem) error {
	if err := r.tx.begin(ctx, "OrderItem.CreateBatch"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	now := time.Now()
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.CreatedAt = now
		cp := *item
		orderID := cp.OrderID
		prev := r.tx.store.items[orderID]
		r.tx.store.items[orderID] = append(append([]*domain.OrderItem(nil), prev...), &cp)
		r.tx.undo = append(r.tx.undo, func() {
			if len(prev) == 0 {
				delete(r.tx.store.items, orderID)
				return
			}
			r.tx.store.items[orderID] = prev
		})
	}
	return nil
}

func (r *orderItemRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	if err := r.tx.begin(ctx, "OrderItem.GetByOrderID"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	out := make([]*domain.OrderItem, 0, len(r.tx.store.items[orderID]))
	for _, item := range r.tx.store.items[orderID] {
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

type movementRepo struct{ tx *memTx }

func (r *movementRepo) Create(ctx context.Context, movement *domain.InventoryMovement) error {
	if err := r.tx.begin(ctx, "Movement.Create"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	movement.CreatedAt = time.Now()
	cp := *movement
	r.tx.store.movements = append(r.tx.store.movements, &cp)
	r.tx.undo = append(r.tx.undo, func() { r.tx.store.removeMovement(cp.ID) })
	return nil
}

func (r *movementRepo) ListByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.InventoryMovement, error) {
	if err := r.tx.begin(ctx, "Movement.ListByProductID"); err != nil {
		return nil, err
	}
	defer r.tx.store.mu.Unlock()
	out := []*domain.InventoryMovement{}
	for i := len(r.tx.store.movements) - 1; i >= 0; i-- {
		m := r.tx.store.movements[i]
		if m.ProductID != productID {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// removeMovement is called with s.mu held
func (s *Store) removeMovement(id uuid.UUID) {
	for i, m := range s.movements {
		if m.ID == id {
			s.movements = append(s.movements[:i], s.movements[i+1:]...)
			return
		}
	}
}

type eventRepo struct{ tx *memTx }

func (r *eventRepo) Create(ctx context.Context, event *domain.OrderEvent) error {
	if err := r.tx.begin(ctx, "Event.Create"); err != nil {
		return err
	}
	defer r.tx.store.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	cp := *event
	r.tx.store.events = append(r.tx.store.events, &cp)
	r.tx.undo = append(r.tx.undo, func() {
		for i, e := range r.tx.store.events {
			if e.ID == cp.ID {
				r.tx.store.events = append(r.tx.store.events[:i], r.tx.store.events[i+1:]...)
				return
			}
		}
	})
	return nil
}
