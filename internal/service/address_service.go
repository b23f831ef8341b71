package service

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

type AddressService struct {
	logger *zap.Logger
}

// NewAddressService creates a new address service
func NewAddressService(logger *zap.Logger) *AddressService {
	return &AddressService{logger: logger}
}

// FindOrCreate reuses the user's saved address when line1, city, postal code
// and country match, and saves a new one otherwise. It runs on the caller's
// transaction so a failed checkout leaves no address behind.
func (s *AddressService) FindOrCreate(ctx context.Context, repos *repository.Repositories, userID uuid.UUID, in AddressInput, kind domain.AddressKind) (uuid.UUID, error) {
	candidate := &domain.Address{
		UserID:        userID,
		Kind:          kind,
		RecipientName: in.RecipientName,
		Line1:         in.Line1,
		Line2:         in.Line2,
		City:          in.City,
		PostalCode:    in.PostalCode,
		Country:       in.Country,
	}

	existing, err := repos.Address.FindMatch(ctx, candidate)
	if err == nil {
		return existing.ID, nil
	}
	var nf *errors.ErrNotFound
	if !stderrors.As(err, &nf) {
		return uuid.Nil, storageErr("find address", err)
	}

	if err := repos.Address.Create(ctx, candidate); err != nil {
		return uuid.Nil, storageErr("create address", err)
	}

	s.logger.Debug("Address saved",
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
	)
	return candidate.ID, nil
}
