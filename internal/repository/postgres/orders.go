package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// uniquePaymentReference is the unique index on orders.payment_intent_id
const uniquePaymentReference = "idx_orders_payment_intent"

const orderColumns = `id, user_id, shipping_address_id, billing_address_id, status, amount_without_vat, vat_amount,
	shipping_amount, total_discount, total_amount, payment_intent_id, coupon_id, coupon_discount_amount, created_at, updated_at`

type orderRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db DBTX, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusCreated
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.ShippingAddressID,
		order.BillingAddressID,
		order.Status,
		order.AmountWithoutVAT,
		order.VATAmount,
		order.ShippingAmount,
		order.TotalDiscount,
		order.TotalAmount,
		order.PaymentReference,
		order.CouponID,
		order.CouponDiscountAmount,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == uniquePaymentReference {
			inUse := &errors.ErrPaymentReferenceInUse{}
			if order.PaymentReference != nil {
				inUse.Reference = *order.PaymentReference
			}
			return inUse
		}
		r.logger.Error("Failed to create order", zap.Error(err))
		return err
	}

	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *orderRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = $1 ORDER BY created_at DESC LIMIT 1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, reference))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: reference}
	}
	if err != nil {
		r.logger.Error("Failed to get order by payment reference", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *orderRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var paymentRef sql.NullString
	var couponID uuid.NullUUID

	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.ShippingAddressID,
		&o.BillingAddressID,
		&o.Status,
		&o.AmountWithoutVAT,
		&o.VATAmount,
		&o.ShippingAmount,
		&o.TotalDiscount,
		&o.TotalAmount,
		&paymentRef,
		&couponID,
		&o.CouponDiscountAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	o.PaymentReference = stringPtr(paymentRef)
	o.CouponID = uuidPtr(couponID)
	return &o, nil
}

func (r *orderRepository) UpdateTotals(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET amount_without_vat = $2, vat_amount = $3, shipping_amount = $4, total_discount = $5,
			total_amount = $6, coupon_id = $7, coupon_discount_amount = $8, updated_at = $9
		WHERE id = $1
	`

	order.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.AmountWithoutVAT,
		order.VATAmount,
		order.ShippingAmount,
		order.TotalDiscount,
		order.TotalAmount,
		order.CouponID,
		order.CouponDiscountAmount,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update order totals", zap.Error(err))
		return err
	}

	return requireRow(result, "order", order.ID.String())
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Error(err))
		return err
	}

	return requireRow(result, "order", id.String())
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan order", zap.Error(err))
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate orders", zap.Error(err))
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) CountByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID, statuses []domain.OrderStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE user_id = $1 AND coupon_id = $2 AND status = ANY($3)
	`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, couponID, pq.Array(names)).Scan(&count); err != nil {
		r.logger.Error("Failed to count coupon usage", zap.Error(err))
		return 0, err
	}

	return count, nil
}

type orderItemRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewOrderItemRepository creates a new order item repository
func NewOrderItemRepository(db DBTX, logger *zap.Logger) *orderItemRepository {
	return &orderItemRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderItemRepository) CreateBatch(ctx context.Context, items []*domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, price_net, vat_rate,
			vat_amount, total_price, discount_amount, discount_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now()
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.CreatedAt = now

		_, err := r.db.ExecContext(ctx, query,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			item.UnitPriceNet,
			item.VATRate,
			item.VATAmount,
			item.TotalPrice,
			item.DiscountAmount,
			item.DiscountDescription,
			item.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create order item", zap.String("order_id", item.OrderID.String()), zap.Error(err))
			return err
		}
	}

	return nil
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, price, price_net, vat_rate,
			vat_amount, total_price, discount_amount, discount_description, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to query order items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		var productID uuid.NullUUID
		var description sql.NullString

		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&productID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.UnitPriceNet,
			&item.VATRate,
			&item.VATAmount,
			&item.TotalPrice,
			&item.DiscountAmount,
			&description,
			&item.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan order item", zap.Error(err))
			return nil, err
		}

		item.ProductID = uuidPtr(productID)
		item.DiscountDescription = stringPtr(description)
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate order items", zap.Error(err))
		return nil, err
	}

	return items, nil
}
