package domain

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusRequiresAction  OrderStatus = "requires_action"
	OrderStatusPartiallyFunded OrderStatus = "partially_funded"
	OrderStatusSucceeded       OrderStatus = "succeeded"
	OrderStatusFailed          OrderStatus = "failed"
	OrderStatusReadyToShip     OrderStatus = "ready_to_ship"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusCanceled        OrderStatus = "canceled"
)

// CompletedOrderStatuses are the statuses that count as a redeemed coupon
var CompletedOrderStatuses = []OrderStatus{
	OrderStatusSucceeded,
	OrderStatusReadyToShip,
	OrderStatusShipped,
}

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated,
		OrderStatusProcessing,
		OrderStatusRequiresAction,
		OrderStatusPartiallyFunded,
		OrderStatusSucceeded,
		OrderStatusFailed,
		OrderStatusReadyToShip,
		OrderStatusShipped,
		OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return newStatus == OrderStatusProcessing ||
			newStatus == OrderStatusRequiresAction ||
			newStatus == OrderStatusSucceeded ||
			newStatus == OrderStatusFailed ||
			newStatus == OrderStatusCanceled
	case OrderStatusProcessing:
		return newStatus == OrderStatusRequiresAction ||
			newStatus == OrderStatusPartiallyFunded ||
			newStatus == OrderStatusSucceeded ||
			newStatus == OrderStatusFailed ||
			newStatus == OrderStatusCanceled
	case OrderStatusRequiresAction, OrderStatusPartiallyFunded:
		return newStatus == OrderStatusProcessing ||
			newStatus == OrderStatusSucceeded ||
			newStatus == OrderStatusFailed ||
			newStatus == OrderStatusCanceled
	case OrderStatusSucceeded:
		return newStatus == OrderStatusReadyToShip ||
			newStatus == OrderStatusCanceled
	case OrderStatusReadyToShip:
		return newStatus == OrderStatusShipped ||
			newStatus == OrderStatusCanceled
	case OrderStatusFailed:
		return newStatus == OrderStatusCanceled
	case OrderStatusShipped, OrderStatusCanceled:
		return false // Terminal states
	default:
		return false
	}
}

// DiscountKind is shared by product discounts and coupons
type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "PERCENTAGE"
	DiscountKindFixed      DiscountKind = "FIXED"
)

// IsValid checks if the discount kind is valid
func (k DiscountKind) IsValid() bool {
	return k == DiscountKindPercentage || k == DiscountKindFixed
}

// MovementKind classifies an inventory movement
type MovementKind string

const (
	MovementKindSale             MovementKind = "SALE"
	MovementKindRestock          MovementKind = "RESTOCK"
	MovementKindManualAdjustment MovementKind = "MANUAL_ADJUSTMENT"
	MovementKindReturn           MovementKind = "RETURN"
	MovementKindDamaged          MovementKind = "DAMAGED"
)

// IsValid checks if the movement kind is valid
func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindSale,
		MovementKindRestock,
		MovementKindManualAdjustment,
		MovementKindReturn,
		MovementKindDamaged:
		return true
	default:
		return false
	}
}

// AddressKind distinguishes shipping from billing addresses
type AddressKind string

const (
	AddressKindShipping AddressKind = "SHIPPING"
	AddressKindBilling  AddressKind = "BILLING"
)

// ProductStatus represents whether a product is listed
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)
