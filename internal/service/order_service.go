package service

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/coupon"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/inventory"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	eventOrderCreated = "order_created"
	eventStatusChange = "status_change"

	defaultOrderLimit = 50
	maxOrderLimit     = 200
)

const reasonUnknownCoupon = "coupon code does not exist"

// Checkout is a persisted order together with its item snapshots
type Checkout struct {
	Order *domain.Order
	Items []*domain.OrderItem
}

type OrderService struct {
	tx        repository.Transactor
	ledger    *inventory.Ledger
	addresses *AddressService
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderService creates a new order service. A zero timeout leaves the
// caller's deadline in charge.
func NewOrderService(tx repository.Transactor, ledger *inventory.Ledger, addresses *AddressService, timeout time.Duration, logger *zap.Logger) *OrderService {
	return &OrderService{
		tx:        tx,
		ledger:    ledger,
		addresses: addresses,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateOrder turns a cart into an order in a single transaction: stock is
// reserved, every line is priced and snapshotted, the coupon is redeemed and
// the total is reconciled against the amount the payment gateway confirmed.
// Any failure rolls the whole checkout back. confirmedMinor may be nil when
// the payment has not been confirmed yet.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput, confirmedMinor *int64) (*Checkout, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	at := s.now()
	var checkout *Checkout

	err := repository.RunInTx(ctx, s.tx, func(ctx context.Context, repos *repository.Repositories) error {
		shippingID, err := s.addresses.FindOrCreate(ctx, repos, userID, in.ShippingAddress, domain.AddressKindShipping)
		if err != nil {
			return err
		}
		billingID, err := s.addresses.FindOrCreate(ctx, repos, userID, in.BillingAddress, domain.AddressKindBilling)
		if err != nil {
			return err
		}

		// one confirmed payment backs exactly one order
		reference := in.PaymentReference
		_, err = repos.Order.GetByPaymentReference(ctx, reference)
		var nf *errors.ErrNotFound
		switch {
		case err == nil:
			return &errors.ErrPaymentReferenceInUse{Reference: reference}
		case !stderrors.As(err, &nf):
			return storageErr("check payment reference", err)
		}

		order := &domain.Order{
			UserID:            userID,
			ShippingAddressID: shippingID,
			BillingAddressID:  billingID,
			Status:            domain.OrderStatusCreated,
			PaymentReference:  &reference,
		}
		if err := repos.Order.Create(ctx, order); err != nil {
			return storageErr("create order", err)
		}

		// Lock order is ascending product id so two carts touching the same
		// products can never wait on each other in a cycle.
		products := make(map[uuid.UUID]*domain.Product, len(in.Items))
		for _, item := range sortedByProduct(in.Items) {
			p, err := s.ledger.AdjustStockTx(ctx, repos, item.ProductID, -item.Quantity, domain.MovementKindSale, inventory.Metadata{
				UserID:  &userID,
				OrderID: &order.ID,
			})
			if err != nil {
				return err
			}
			products[item.ProductID] = p
		}

		items, totals := priceLines(in.Items, products, at)

		couponDiscount := decimal.Zero
		if in.CouponCode != nil {
			c, discount, err := s.redeemCoupon(ctx, repos, *in.CouponCode, userID, totals.Gross)
			if err != nil {
				return err
			}
			order.CouponID = &c.ID
			couponDiscount = discount
		}

		order.AmountWithoutVAT = totals.Net
		order.VATAmount = totals.VAT
		order.ShippingAmount = in.ShippingCost.Round(2)
		order.CouponDiscountAmount = couponDiscount
		order.TotalDiscount = totals.Discount.Add(couponDiscount)
		order.TotalAmount = orderTotal(totals.Gross, couponDiscount, order.ShippingAmount)

		if confirmedMinor != nil {
			if err := payment.Reconcile(order.TotalAmount, *confirmedMinor); err != nil {
				s.logger.Warn("Payment amount does not match order total",
					zap.String("payment_reference", reference),
					zap.Int64("calculated_minor", payment.ToMinorUnits(order.TotalAmount)),
					zap.Int64("confirmed_minor", *confirmedMinor),
				)
				return err
			}
		}

		for _, item := range items {
			item.OrderID = order.ID
		}
		if err := repos.OrderItem.CreateBatch(ctx, items); err != nil {
			return storageErr("create order items", err)
		}
		if err := repos.Order.UpdateTotals(ctx, order); err != nil {
			return storageErr("update order totals", err)
		}

		event := &domain.OrderEvent{
			OrderID:   order.ID,
			EventType: eventOrderCreated,
			EventData: map[string]interface{}{
				"payment_reference": reference,
				"status":            order.Status,
				"total_amount":      order.TotalAmount.StringFixed(2),
				"items":             len(items),
			},
		}
		if err := repos.Event.Create(ctx, event); err != nil {
			return storageErr("record order event", err)
		}

		checkout = &Checkout{Order: order, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", checkout.Order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total_amount", checkout.Order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(checkout.Items)),
	)

	return checkout, nil
}

// redeemCoupon locks the coupon row, validates it against the subtotal and
// counts the use. The lock keeps concurrent checkouts from overrunning
// the usage limit.
func (s *OrderService) redeemCoupon(ctx context.Context, repos *repository.Repositories, code string, userID uuid.UUID, subtotal decimal.Decimal) (*domain.Coupon, decimal.Decimal, error) {
	c, err := repos.Coupon.LockByCode(ctx, code)
	if err != nil {
		var nf *errors.ErrNotFound
		if stderrors.As(err, &nf) {
			return nil, decimal.Zero, &errors.ErrCouponInvalid{Code: code, Reason: reasonUnknownCoupon}
		}
		return nil, decimal.Zero, storageErr("lock coupon", err)
	}

	result, err := coupon.NewValidator(repos.Order, s.now).IsValidFor(ctx, c, &userID, subtotal)
	if err != nil {
		return nil, decimal.Zero, storageErr("count coupon usage", err)
	}
	if !result.Valid {
		return nil, decimal.Zero, &errors.ErrCouponInvalid{Code: c.Code, Reason: result.Reason}
	}

	discount := coupon.CalculateDiscount(c, subtotal)
	if err := repos.Coupon.IncrementUses(ctx, c.ID); err != nil {
		return nil, decimal.Zero, storageErr("redeem coupon", err)
	}

	return c, discount, nil
}

// GetOrder loads an order with its items. When userID is set the order must
// belong to that user; someone else's order is reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*Checkout, error) {
	var checkout *Checkout
	err := repository.RunInTx(ctx, s.tx, func(ctx context.Context, repos *repository.Repositories) error {
		order, err := repos.Order.GetByID(ctx, orderID)
		if err != nil {
			return storageErr("get order", err)
		}
		if userID != nil && order.UserID != *userID {
			return &errors.ErrNotFound{Resource: "order", ID: orderID.String()}
		}
		items, err := repos.OrderItem.GetByOrderID(ctx, orderID)
		if err != nil {
			return storageErr("get order items", err)
		}
		checkout = &Checkout{Order: order, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkout, nil
}

// ListOrders returns orders newest first
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, errors.NewValidation("status", "unknown order status "+string(*filter.Status))
	}
	if filter.CreatedFrom != nil && filter.CreatedBefore != nil && !filter.CreatedFrom.Before(*filter.CreatedBefore) {
		return nil, errors.NewValidation("from", "must be before to")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultOrderLimit
	}
	if filter.Limit > maxOrderLimit {
		filter.Limit = maxOrderLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var orders []*domain.Order
	err := repository.RunInTx(ctx, s.tx, func(ctx context.Context, repos *repository.Repositories) error {
		o, err := repos.Order.List(ctx, filter)
		if err != nil {
			return storageErr("list orders", err)
		}
		orders = o
		return nil
	})
	return orders, err
}

// UpdateStatus moves an order along the status table. Canceling an order
// that never shipped puts its stock back.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, reason *string) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, errors.NewValidation("status", "unknown order status "+string(status))
	}

	var updated *domain.Order
	err := repository.RunInTx(ctx, s.tx, func(ctx context.Context, repos *repository.Repositories) error {
		order, err := repos.Order.LockForUpdate(ctx, orderID)
		if err != nil {
			return storageErr("lock order", err)
		}
		if err := s.transition(ctx, repos, order, status, "admin", reason); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyPaymentStatus records a status reported by the payment gateway for
// the order paid with reference. It reports false when the order already
// has that status or the table does not allow the move, which happens when
// gateway notifications arrive out of order.
func (s *OrderService) ApplyPaymentStatus(ctx context.Context, reference string, status domain.OrderStatus) (bool, error) {
	if !status.IsValid() {
		return false, errors.NewValidation("status", "unknown order status "+string(status))
	}

	applied := false
	err := repository.RunInTx(ctx, s.tx, func(ctx context.Context, repos *repository.Repositories) error {
		found, err := repos.Order.GetByPaymentReference(ctx, reference)
		if err != nil {
			return storageErr("find order by payment reference", err)
		}
		order, err := repos.Order.LockForUpdate(ctx, found.ID)
		if err != nil {
			return storageErr("lock order", err)
		}
		if order.Status == status || !order.Status.CanTransitionTo(status) {
			s.logger.Info("Ignoring payment status",
				zap.String("order_id", order.ID.String()),
				zap.String("from", string(order.Status)),
				zap.String("to", string(status)),
			)
			return nil
		}
		if err := s.transition(ctx, repos, order, status, "payment_gateway", nil); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *OrderService) transition(ctx context.Context, repos *repository.Repositories, order *domain.Order, to domain.OrderStatus, source string, reason *string) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return &errors.ErrInvalidStateTransition{From: from, To: to}
	}

	if err := repos.Order.UpdateStatus(ctx, order.ID, to); err != nil {
		return storageErr("update order status", err)
	}

	if to == domain.OrderStatusCanceled {
		if err := s.restock(ctx, repos, order.ID); err != nil {
			return err
		}
		if order.CouponID != nil {
			if err := repos.Coupon.ReleaseUse(ctx, *order.CouponID); err != nil {
				return storageErr("release coupon use", err)
			}
		}
	}

	event := &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: eventStatusChange,
		EventData: map[string]interface{}{
			"from":   from,
			"to":     to,
			"source": source,
		},
	}
	if reason != nil {
		event.EventData["reason"] = *reason
	}
	if err := repos.Event.Create(ctx, event); err != nil {
		return storageErr("record order event", err)
	}

	order.Status = to
	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("source", source),
	)
	return nil
}

// restock returns every item of a canceled order to stock. Products deleted
// since the order was placed are skipped.
func (s *OrderService) restock(ctx context.Context, repos *repository.Repositories, orderID uuid.UUID) error {
	items, err := repos.OrderItem.GetByOrderID(ctx, orderID)
	if err != nil {
		return storageErr("get order items", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return productKey(items[i]) < productKey(items[j])
	})

	reason := "order canceled"
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		_, err := s.ledger.AdjustStockTx(ctx, repos, *item.ProductID, item.Quantity, domain.MovementKindReturn, inventory.Metadata{
			OrderID: &orderID,
			Reason:  &reason,
		})
		var nf *errors.ErrNotFound
		if stderrors.As(err, &nf) {
			s.logger.Warn("Skipping restock of missing product",
				zap.String("order_id", orderID.String()),
				zap.String("product_id", item.ProductID.String()),
			)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func productKey(item *domain.OrderItem) string {
	if item.ProductID == nil {
		return ""
	}
	return item.ProductID.String()
}

func sortedByProduct(items []CartItem) []CartItem {
	sorted := make([]CartItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})
	return sorted
}

// storageErr passes the typed errors of this package's callers through and
// wraps driver failures
func storageErr(op string, err error) error {
	var (
		nf       *errors.ErrNotFound
		verr     *errors.ErrValidation
		stock    *errors.ErrInsufficientStock
		invalid  *errors.ErrCouponInvalid
		mismatch *errors.ErrSecurityMismatch
		storage  *errors.ErrStorage
		state    *errors.ErrInvalidStateTransition
		inUse    *errors.ErrPaymentReferenceInUse
	)
	switch {
	case stderrors.As(err, &nf), stderrors.As(err, &verr), stderrors.As(err, &stock),
		stderrors.As(err, &invalid), stderrors.As(err, &mismatch), stderrors.As(err, &storage),
		stderrors.As(err, &state), stderrors.As(err, &inUse):
		return err
	}
	return &errors.ErrStorage{Op: op, Err: err}
}
