package service

import (
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/inventory"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
)

// Services wires the application services to one store
type Services struct {
	Orders    *OrderService
	Coupons   *CouponService
	Inventory *inventory.Ledger
	Shipping  ShippingRater
	// Payments is nil when no gateway is configured; orders are then
	// created without reconciliation.
	Payments payment.Gateway
}

func NewServices(tx repository.Transactor, cfg config.CheckoutConfig, gateway payment.Gateway, logger *zap.Logger) *Services {
	ledger := inventory.NewLedger(tx, logger)
	return &Services{
		Orders:    NewOrderService(tx, ledger, NewAddressService(logger), cfg.Timeout, logger),
		Coupons:   NewCouponService(tx, logger),
		Inventory: ledger,
		Shipping:  FlatRate{Amount: cfg.ShippingRate},
		Payments:  gateway,
	}
}
