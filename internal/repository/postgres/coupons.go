package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

const couponColumns = `id, code, description, type, value, min_order_amount, max_uses, max_uses_per_user,
	current_uses, is_active, starts_at, ends_at, created_at, updated_at`

type couponRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db DBTX, logger *zap.Logger) *couponRepository {
	return &couponRepository{
		db:     db,
		logger: logger,
	}
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	return r.get(ctx, query, code)
}

// LockByCode holds the coupon row until the transaction ends, so the usage
// check and the increment cannot interleave with another checkout
func (r *couponRepository) LockByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`
	return r.get(ctx, query, code)
}

func (r *couponRepository) get(ctx context.Context, query, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	var description sql.NullString
	var maxUses sql.NullInt64
	var startsAt, endsAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&description,
		&c.Kind,
		&c.Value,
		&c.MinOrderAmount,
		&maxUses,
		&c.MaxUsesPerUser,
		&c.CurrentUses,
		&c.Active,
		&startsAt,
		&endsAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "coupon", ID: code}
	}
	if err != nil {
		r.logger.Error("Failed to get coupon", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	c.Description = stringPtr(description)
	if maxUses.Valid {
		n := int(maxUses.Int64)
		c.MaxUses = &n
	}
	c.StartsAt = timePtr(startsAt)
	c.EndsAt = timePtr(endsAt)

	return &c, nil
}

func (r *couponRepository) IncrementUses(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE coupons
		SET current_uses = current_uses + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to increment coupon uses", zap.String("coupon_id", id.String()), zap.Error(err))
		return err
	}

	return requireRow(result, "coupon", id.String())
}

func (r *couponRepository) ReleaseUse(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE coupons
		SET current_uses = GREATEST(current_uses - 1, 0), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to release coupon use", zap.String("coupon_id", id.String()), zap.Error(err))
		return err
	}

	return requireRow(result, "coupon", id.String())
}
