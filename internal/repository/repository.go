package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

// Repositories bundles every repository bound to one connection or transaction
type Repositories struct {
	Product   ProductRepository
	Coupon    CouponRepository
	Address   AddressRepository
	Order     OrderRepository
	OrderItem OrderItemRepository
	Movement  InventoryMovementRepository
	Event     OrderEventRepository
}

type ProductRepository interface {
	// GetByID loads the product with its discounts, ordered by discount id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// LockForUpdate loads the product with its discounts and holds a row lock
	// on it until the enclosing transaction ends
	LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
}

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	LockByCode(ctx context.Context, code string) (*domain.Coupon, error)
	IncrementUses(ctx context.Context, id uuid.UUID) error
	// ReleaseUse gives back one use, never going below zero
	ReleaseUse(ctx context.Context, id uuid.UUID) error
}

type AddressRepository interface {
	FindMatch(ctx context.Context, match *domain.Address) (*domain.Address, error)
	Create(ctx context.Context, address *domain.Address) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateTotals(ctx context.Context, order *domain.Order) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	CountByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID, statuses []domain.OrderStatus) (int, error)
}

type OrderItemRepository interface {
	CreateBatch(ctx context.Context, items []*domain.OrderItem) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error)
}

type InventoryMovementRepository interface {
	Create(ctx context.Context, movement *domain.InventoryMovement) error
	ListByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.InventoryMovement, error)
}

type OrderEventRepository interface {
	Create(ctx context.Context, event *domain.OrderEvent) error
}

// OrderFilter narrows an order listing. Nil fields match everything.
type OrderFilter struct {
	Status        *domain.OrderStatus
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Tx is an open transaction. Exactly one of Commit or Rollback must be called.
type Tx interface {
	Repos() *Repositories
	Commit() error
	Rollback() error
}

// Transactor opens transactions against the backing store
type Transactor interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// RunInTx runs fn inside a new transaction. The transaction is committed when
// fn returns nil and rolled back otherwise, including when fn panics.
func RunInTx(ctx context.Context, t Transactor, fn func(ctx context.Context, repos *Repositories) error) (err error) {
	tx, err := t.BeginTx(ctx)
	if err != nil {
		return &errors.ErrStorage{Op: "begin transaction", Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(ctx, tx.Repos()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		committed = true // a failed commit has already ended the transaction
		return &errors.ErrStorage{Op: "commit transaction", Err: err}
	}
	committed = true
	return nil
}
