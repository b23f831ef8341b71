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

type addressRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db DBTX, logger *zap.Logger) *addressRepository {
	return &addressRepository{
		db:     db,
		logger: logger,
	}
}

// FindMatch looks up an existing address of the same user and kind with the
// same line1, city, postal code and country
func (r *addressRepository) FindMatch(ctx context.Context, match *domain.Address) (*domain.Address, error) {
	query := `
		SELECT id, user_id, type, recipient_name, line1, line2, city, postal_code, country, created_at, updated_at
		FROM addresses
		WHERE user_id = $1 AND type = $2 AND line1 = $3 AND city = $4 AND postal_code = $5 AND country = $6
		ORDER BY created_at
		LIMIT 1
	`

	var a domain.Address
	var recipient, line2 sql.NullString

	err := r.db.QueryRowContext(ctx, query,
		match.UserID,
		match.Kind,
		match.Line1,
		match.City,
		match.PostalCode,
		match.Country,
	).Scan(
		&a.ID,
		&a.UserID,
		&a.Kind,
		&recipient,
		&a.Line1,
		&line2,
		&a.City,
		&a.PostalCode,
		&a.Country,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "address", ID: match.Line1}
	}
	if err != nil {
		r.logger.Error("Failed to find address", zap.Error(err))
		return nil, err
	}

	a.RecipientName = stringPtr(recipient)
	a.Line2 = stringPtr(line2)

	return &a, nil
}

func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	query := `
		INSERT INTO addresses (id, user_id, type, recipient_name, line1, line2, city, postal_code, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	if address.ID == uuid.Nil {
		address.ID = uuid.New()
	}
	address.CreatedAt = now
	address.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		address.ID,
		address.UserID,
		address.Kind,
		address.RecipientName,
		address.Line1,
		address.Line2,
		address.City,
		address.PostalCode,
		address.Country,
		address.CreatedAt,
		address.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create address", zap.Error(err))
		return err
	}

	return nil
}
