// Package inventory owns product stock. Every change goes through
// AdjustStock, which locks the product row, refuses to go below zero and
// appends a movement to the audit trail.
package inventory

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// Metadata records who or what caused a stock change
type Metadata struct {
	UserID  *uuid.UUID
	OrderID *uuid.UUID
	Reason  *string
}

type Ledger struct {
	tx     repository.Transactor
	logger *zap.Logger
}

// NewLedger creates a ledger that opens its own transactions on tx
func NewLedger(tx repository.Transactor, logger *zap.Logger) *Ledger {
	return &Ledger{tx: tx, logger: logger}
}

// AdjustStock applies delta in a transaction of its own
func (l *Ledger) AdjustStock(ctx context.Context, productID uuid.UUID, delta int, kind domain.MovementKind, meta Metadata) (*domain.Product, error) {
	var product *domain.Product
	err := repository.RunInTx(ctx, l.tx, func(ctx context.Context, repos *repository.Repositories) error {
		p, err := l.AdjustStockTx(ctx, repos, productID, delta, kind, meta)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// AdjustStockTx applies delta using repos bound to the caller's transaction.
// The product row stays locked until that transaction ends.
func (l *Ledger) AdjustStockTx(ctx context.Context, repos *repository.Repositories, productID uuid.UUID, delta int, kind domain.MovementKind, meta Metadata) (*domain.Product, error) {
	if delta == 0 {
		return nil, errors.NewValidation("delta", "must not be zero")
	}
	if !kind.IsValid() {
		return nil, errors.NewValidation("kind", "unknown movement kind "+string(kind))
	}

	product, err := repos.Product.LockForUpdate(ctx, productID)
	if err != nil {
		return nil, storageErr("lock product", err)
	}
	// archived products can still be corrected by hand but not sold
	if kind == domain.MovementKindSale && product.Status != domain.ProductStatusActive {
		return nil, &errors.ErrNotFound{Resource: "product", ID: productID.String()}
	}

	newStock := product.Stock + delta
	if newStock < 0 {
		return nil, &errors.ErrInsufficientStock{
			ProductID:   product.ID.String(),
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   -delta,
		}
	}

	if err := repos.Product.UpdateStock(ctx, productID, newStock); err != nil {
		return nil, storageErr("update stock", err)
	}
	product.Stock = newStock

	movement := &domain.InventoryMovement{
		ProductID:  productID,
		UserID:     meta.UserID,
		OrderID:    meta.OrderID,
		Quantity:   delta,
		Kind:       kind,
		Reason:     meta.Reason,
		StockAfter: newStock,
	}
	if err := repos.Movement.Create(ctx, movement); err != nil {
		return nil, storageErr("record movement", err)
	}

	l.logger.Debug("Stock adjusted",
		zap.String("product_id", productID.String()),
		zap.Int("delta", delta),
		zap.String("kind", string(kind)),
		zap.Int("stock_after", newStock),
	)

	return product, nil
}

// Movements lists a product's audit trail, newest first
func (l *Ledger) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.InventoryMovement, error) {
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	var movements []*domain.InventoryMovement
	err := repository.RunInTx(ctx, l.tx, func(ctx context.Context, repos *repository.Repositories) error {
		if _, err := repos.Product.GetByID(ctx, productID); err != nil {
			return storageErr("get product", err)
		}
		m, err := repos.Movement.ListByProductID(ctx, productID, limit)
		if err != nil {
			return storageErr("list movements", err)
		}
		movements = m
		return nil
	})
	return movements, err
}

// storageErr passes not-found errors through and wraps everything else
func storageErr(op string, err error) error {
	var nf *errors.ErrNotFound
	if stderrors.As(err, &nf) {
		return err
	}
	return &errors.ErrStorage{Op: op, Err: err}
}
