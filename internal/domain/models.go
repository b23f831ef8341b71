package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable product. Stock is only changed through the inventory ledger.
type Product struct {
	ID        uuid.UUID
	Name      string
	Status    ProductStatus
	Price     decimal.Decimal // gross, VAT included
	VATRate   decimal.Decimal // percent
	Stock     int
	Weight    decimal.Decimal
	Length    decimal.Decimal
	Width     decimal.Decimal
	Height    decimal.Decimal
	Discounts []Discount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Discount is a product-level, time-bounded price reduction
type Discount struct {
	ID        uuid.UUID
	Name      string
	Kind      DiscountKind
	Value     decimal.Decimal
	Active    bool
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Coupon is a cart-level, code-activated price reduction
type Coupon struct {
	ID             uuid.UUID
	Code           string
	Description    *string
	Kind           DiscountKind
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxUses        *int
	MaxUsesPerUser int
	CurrentUses    int
	Active         bool
	StartsAt       *time.Time
	EndsAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Address is an entry of a user's address book
type Address struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Kind          AddressKind
	RecipientName *string
	Line1         string
	Line2         *string
	City          string
	PostalCode    string
	Country       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Order represents a committed checkout
type Order struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	ShippingAddressID    uuid.UUID
	BillingAddressID     uuid.UUID
	Status               OrderStatus
	AmountWithoutVAT     decimal.Decimal
	VATAmount            decimal.Decimal
	ShippingAmount       decimal.Decimal
	TotalDiscount        decimal.Decimal
	TotalAmount          decimal.Decimal
	PaymentReference     *string
	CouponID             *uuid.UUID
	CouponDiscountAmount decimal.Decimal
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderItem is an immutable pricing snapshot of one order line
type OrderItem struct {
	ID                  uuid.UUID
	OrderID             uuid.UUID
	ProductID           *uuid.UUID
	ProductName         string
	Quantity            int
	UnitPrice           decimal.Decimal // gross
	UnitPriceNet        decimal.Decimal
	VATRate             decimal.Decimal
	VATAmount           decimal.Decimal // whole line
	TotalPrice          decimal.Decimal // whole line, gross
	DiscountAmount      decimal.Decimal // whole line
	DiscountDescription *string
	CreatedAt           time.Time
}

// InventoryMovement is an append-only record of a stock change
type InventoryMovement struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	UserID     *uuid.UUID
	OrderID    *uuid.UUID
	Quantity   int // signed delta
	Kind       MovementKind
	Reason     *string
	StockAfter int
	CreatedAt  time.Time
}

// OrderEvent represents an audit event for an order
type OrderEvent struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	EventType string
	EventData map[string]interface{} // JSONB
	CreatedAt time.Time
}
