package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/coupon"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	maxCartLines    = 100
	maxLineQuantity = 10000
)

// CartItem is one line of a cart as submitted by the client
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// AddressInput is an address as entered at checkout
type AddressInput struct {
	RecipientName *string `json:"recipient_name,omitempty"`
	Line1         string  `json:"line1"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city"`
	PostalCode    string  `json:"postal_code"`
	Country       string  `json:"country"`
}

// CreateOrderInput is the checkout request. ShippingCost is supplied by the
// shipping rater, never by the client.
type CreateOrderInput struct {
	Items            []CartItem      `json:"items"`
	ShippingAddress  AddressInput    `json:"shipping_address"`
	BillingAddress   AddressInput    `json:"billing_address"`
	PaymentReference string          `json:"payment_reference"`
	CouponCode       *string         `json:"coupon_code,omitempty"`
	ShippingCost     decimal.Decimal `json:"-"`
}

// Validate normalises the input in place and reports every invalid field.
// Duplicate product lines are merged into the first occurrence.
func (in *CreateOrderInput) Validate() error {
	verr := &errors.ErrValidation{}

	in.Items = validateItems(in.Items, verr)
	in.ShippingAddress.normalize("shipping_address", verr)
	in.BillingAddress.normalize("billing_address", verr)

	in.PaymentReference = strings.TrimSpace(in.PaymentReference)
	if in.PaymentReference == "" {
		verr.Add("payment_reference", "is required")
	}

	in.CouponCode = normalizeCouponCode(in.CouponCode)

	if in.ShippingCost.IsNegative() {
		verr.Add("shipping_cost", "must not be negative")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// CouponCheckInput asks what a coupon would take off a cart before checkout
type CouponCheckInput struct {
	Code  string     `json:"code"`
	Items []CartItem `json:"items"`
}

func (in *CouponCheckInput) Validate() error {
	verr := &errors.ErrValidation{}
	in.Code = coupon.NormalizeCode(in.Code)
	if in.Code == "" {
		verr.Add("code", "is required")
	}
	in.Items = validateItems(in.Items, verr)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func validateItems(items []CartItem, verr *errors.ErrValidation) []CartItem {
	if len(items) == 0 {
		verr.Add("items", "at least one item is required")
		return items
	}
	if len(items) > maxCartLines {
		verr.Add("items", fmt.Sprintf("at most %d lines are allowed", maxCartLines))
		return items
	}

	merged := make([]CartItem, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			verr.Add(fmt.Sprintf("items[%d].product_id", i), "is required")
			continue
		}
		if item.Quantity <= 0 {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
			continue
		}
		if j, ok := index[item.ProductID]; ok {
			merged[j].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	for _, item := range merged {
		if item.Quantity > maxLineQuantity {
			verr.Add("items", fmt.Sprintf("quantity of product %s exceeds %d", item.ProductID, maxLineQuantity))
		}
	}
	return merged
}

func (a *AddressInput) normalize(prefix string, verr *errors.ErrValidation) {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Line2 = trimOptional(a.Line2)
	a.RecipientName = trimOptional(a.RecipientName)

	required := map[string]string{
		"line1":       a.Line1,
		"city":        a.City,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}
	for field, value := range required {
		if value == "" {
			verr.Add(prefix+"."+field, "is required")
		}
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeCouponCode(code *string) *string {
	if code == nil {
		return nil
	}
	c := coupon.NormalizeCode(*code)
	if c == "" {
		return nil
	}
	return &c
}

// OrderResponse is the public view of an order
type OrderResponse struct {
	ID                   string              `json:"id"`
	UserID               string              `json:"user_id"`
	Status               domain.OrderStatus  `json:"status"`
	ShippingAddressID    string              `json:"shipping_address_id"`
	BillingAddressID     string              `json:"billing_address_id"`
	AmountWithoutVAT     string              `json:"amount_without_vat"`
	VATAmount            string              `json:"vat_amount"`
	ShippingAmount       string              `json:"shipping_amount"`
	TotalDiscount        string              `json:"total_discount"`
	TotalAmount          string              `json:"total_amount"`
	PaymentReference     *string             `json:"payment_reference,omitempty"`
	CouponID             *string             `json:"coupon_id,omitempty"`
	CouponDiscountAmount string              `json:"coupon_discount_amount"`
	Items                []OrderItemResponse `json:"items,omitempty"`
	CreatedAt            string              `json:"created_at"`
	UpdatedAt            string              `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID           *string `json:"product_id,omitempty"`
	ProductName         string  `json:"product_name"`
	Quantity            int     `json:"quantity"`
	UnitPrice           string  `json:"unit_price"`
	UnitPriceNet        string  `json:"unit_price_net"`
	VATRate             string  `json:"vat_rate"`
	VATAmount           string  `json:"vat_amount"`
	TotalPrice          string  `json:"total_price"`
	DiscountAmount      string  `json:"discount_amount"`
	DiscountDescription *string `json:"discount_description,omitempty"`
}

// NewOrderResponse renders money with two decimals
func NewOrderResponse(order *domain.Order, items []*domain.OrderItem) OrderResponse {
	resp := OrderResponse{
		ID:                   order.ID.String(),
		UserID:               order.UserID.String(),
		Status:               order.Status,
		ShippingAddressID:    order.ShippingAddressID.String(),
		BillingAddressID:     order.BillingAddressID.String(),
		AmountWithoutVAT:     money(order.AmountWithoutVAT),
		VATAmount:            money(order.VATAmount),
		ShippingAmount:       money(order.ShippingAmount),
		TotalDiscount:        money(order.TotalDiscount),
		TotalAmount:          money(order.TotalAmount),
		PaymentReference:     order.PaymentReference,
		CouponDiscountAmount: money(order.CouponDiscountAmount),
		CreatedAt:            order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            order.UpdatedAt.Format(time.RFC3339),
	}
	if order.CouponID != nil {
		id := order.CouponID.String()
		resp.CouponID = &id
	}

	for _, item := range items {
		r := OrderItemResponse{
			ProductName:         item.ProductName,
			Quantity:            item.Quantity,
			UnitPrice:           money(item.UnitPrice),
			UnitPriceNet:        money(item.UnitPriceNet),
			VATRate:             item.VATRate.String(),
			VATAmount:           money(item.VATAmount),
			TotalPrice:          money(item.TotalPrice),
			DiscountAmount:      money(item.DiscountAmount),
			DiscountDescription: item.DiscountDescription,
		}
		if item.ProductID != nil {
			id := item.ProductID.String()
			r.ProductID = &id
		}
		resp.Items = append(resp.Items, r)
	}

	return resp
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
