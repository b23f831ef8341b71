package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

const productColumns = `id, name, status, price, vat_rate, stock, weight, length, width, height, created_at, updated_at`

type productRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db DBTX, logger *zap.Logger) *productRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.get(ctx, query, id)
}

// LockForUpdate must run inside a transaction; the lock is held until it ends
func (r *productRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *productRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Status,
		&p.Price,
		&p.VATRate,
		&p.Stock,
		&p.Weight,
		&p.Length,
		&p.Width,
		&p.Height,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.String("product_id", id.String()), zap.Error(err))
		return nil, err
	}

	discounts, err := r.discounts(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Discounts = discounts

	return &p, nil
}

func (r *productRepository) discounts(ctx context.Context, productID uuid.UUID) ([]domain.Discount, error) {
	query := `
		SELECT d.id, d.name, d.type, d.value, d.is_active, d.starts_at, d.ends_at, d.created_at, d.updated_at
		FROM discounts d
		JOIN product_discounts pd ON pd.discount_id = d.id
		WHERE pd.product_id = $1
		ORDER BY d.id
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		r.logger.Error("Failed to query product discounts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var discounts []domain.Discount
	for rows.Next() {
		var d domain.Discount
		var startsAt, endsAt sql.NullTime

		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Kind,
			&d.Value,
			&d.Active,
			&startsAt,
			&endsAt,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan discount", zap.Error(err))
			return nil, err
		}

		d.StartsAt = timePtr(startsAt)
		d.EndsAt = timePtr(endsAt)
		discounts = append(discounts, d)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate discounts", zap.Error(err))
		return nil, err
	}

	return discounts, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	query := `
		UPDATE products
		SET stock = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, stock, time.Now())
	if err != nil {
		r.logger.Error("Failed to update product stock", zap.String("product_id", id.String()), zap.Error(err))
		return err
	}

	return requireRow(result, "product", id.String())
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func uuidPtr(u uuid.NullUUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	return &u.UUID
}

// requireRow turns an update that matched nothing into ErrNotFound
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &errors.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}
