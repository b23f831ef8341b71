package service

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/coupon"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/inventory"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/memory"
	"github.com/jafarshop/storefront/pkg/errors"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	orders  *OrderService
	coupons *CouponService
	user    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()

	orders := NewOrderService(store, inventory.NewLedger(store, logger), NewAddressService(logger), 5*time.Second, logger)
	orders.now = func() time.Time { return testNow }
	coupons := NewCouponService(store, logger)
	coupons.now = func() time.Time { return testNow }

	return &fixture{store: store, orders: orders, coupons: coupons, user: uuid.New()}
}

func (f *fixture) product(name, price string, stock int, discounts ...domain.Discount) *domain.Product {
	return f.store.AddProduct(&domain.Product{
		Name:      name,
		Status:    domain.ProductStatusActive,
		Price:     decimal.RequireFromString(price),
		VATRate:   decimal.NewFromInt(20),
		Stock:     stock,
		Discounts: discounts,
	})
}

func (f *fixture) coupon(code string, kind domain.DiscountKind, value, minOrder string, maxUses *int) *domain.Coupon {
	return f.store.AddCoupon(&domain.Coupon{
		Code:           code,
		Kind:           kind,
		Value:          decimal.RequireFromString(value),
		MinOrderAmount: decimal.RequireFromString(minOrder),
		MaxUses:        maxUses,
		MaxUsesPerUser: 1,
		Active:         true,
	})
}

func checkoutInput(items ...CartItem) CreateOrderInput {
	return CreateOrderInput{
		Items: items,
		ShippingAddress: AddressInput{
			Line1:      "12 Rue de Rivoli",
			City:       "Paris",
			PostalCode: "75001",
			Country:    "fr",
		},
		BillingAddress: AddressInput{
			Line1:      "12 Rue de Rivoli",
			City:       "Paris",
			PostalCode: "75001",
			Country:    "FR",
		},
		PaymentReference: "pi_test",
		ShippingCost:     decimal.RequireFromString("15.00"),
	}
}

func percentOff(name, value string) domain.Discount {
	return domain.Discount{
		ID:     uuid.New(),
		Name:   name,
		Kind:   domain.DiscountKindPercentage,
		Value:  decimal.RequireFromString(value),
		Active: true,
	}
}

func minor(v int64) *int64 { return &v }

func TestCreateOrder_TotalsAndReconciliation(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "30.00", 10)

	checkout, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 2}), minor(7500))
	require.NoError(t, err)

	order := checkout.Order
	assert.Equal(t, "75.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "50.00", order.AmountWithoutVAT.StringFixed(2))
	assert.Equal(t, "10.00", order.VATAmount.StringFixed(2))
	assert.Equal(t, "15.00", order.ShippingAmount.StringFixed(2))
	assert.True(t, order.TotalDiscount.IsZero())
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, "pi_test", *order.PaymentReference)

	require.Len(t, checkout.Items, 1)
	item := checkout.Items[0]
	assert.Equal(t, "Mug", item.ProductName)
	assert.Equal(t, "30.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "25.00", item.UnitPriceNet.StringFixed(2))
	assert.Equal(t, "60.00", item.TotalPrice.StringFixed(2))
	assert.Nil(t, item.DiscountDescription)

	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 8, current.Stock)

	movements := f.store.Movements(p.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementKindSale, movements[0].Kind)
	assert.Equal(t, -2, movements[0].Quantity)
	assert.Equal(t, order.ID, *movements[0].OrderID)

	events := f.store.Events(order.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "order_created", events[0].EventType)

	// same street twice: one shipping and one billing address
	_, _, _, addresses, _ := f.store.Counts()
	assert.Equal(t, 2, addresses)
}

func TestCreateOrder_SecurityMismatchRollsBack(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "30.00", 10)

	_, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 2}), minor(7000))

	var mismatch *errors.ErrSecurityMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(7500), mismatch.CalculatedMinor)
	assert.Equal(t, int64(7000), mismatch.ConfirmedMinor)

	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 10, current.Stock)
	orders, items, movements, addresses, events := f.store.Counts()
	assert.Zero(t, orders+items+movements+addresses+events)
}

func TestCreateOrder_CouponBelowMinimumRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	a := f.product("Product A", "28.00", 5)
	b := f.product("Product B", "34.00", 5, percentOff("Spring sale", "15"))
	f.coupon("SAVE20", domain.DiscountKindFixed, "20.00", "100.00", nil)

	in := checkoutInput(CartItem{ProductID: a.ID, Quantity: 1}, CartItem{ProductID: b.ID, Quantity: 2})
	code := "save20"
	in.CouponCode = &code

	_, err := f.orders.CreateOrder(context.Background(), f.user, in, nil)

	var couponErr *errors.ErrCouponInvalid
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, "SAVE20", couponErr.Code)
	assert.Contains(t, couponErr.Reason, "100.00")

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		current, _ := f.store.Product(id)
		assert.Equal(t, 5, current.Stock)
	}
	orders, items, movements, addresses, events := f.store.Counts()
	assert.Zero(t, orders, "orders")
	assert.Zero(t, items, "items")
	assert.Zero(t, movements, "movements")
	assert.Zero(t, addresses, "addresses")
	assert.Zero(t, events, "events")

	c, _ := f.store.Coupon("SAVE20")
	assert.Zero(t, c.CurrentUses)
}

func TestCreateOrder_AppliesProductDiscountAndCoupon(t *testing.T) {
	f := newFixture(t)
	a := f.product("Product A", "28.00", 5)
	b := f.product("Product B", "34.00", 5, percentOff("Spring sale", "15"))
	f.coupon("SAVE20", domain.DiscountKindFixed, "20.00", "80.00", nil)

	in := checkoutInput(CartItem{ProductID: b.ID, Quantity: 2}, CartItem{ProductID: a.ID, Quantity: 1})
	code := "SAVE20"
	in.CouponCode = &code

	checkout, err := f.orders.CreateOrder(context.Background(), f.user, in, minor(8080))
	require.NoError(t, err)

	order := checkout.Order
	assert.Equal(t, "80.80", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "20.00", order.CouponDiscountAmount.StringFixed(2))
	assert.Equal(t, "30.20", order.TotalDiscount.StringFixed(2))
	assert.Equal(t, "85.80", order.AmountWithoutVAT.Add(order.VATAmount).StringFixed(2))
	require.NotNil(t, order.CouponID)

	// snapshots keep the cart order
	require.Len(t, checkout.Items, 2)
	assert.Equal(t, "Product B", checkout.Items[0].ProductName)
	assert.Equal(t, "28.90", checkout.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "10.20", checkout.Items[0].DiscountAmount.StringFixed(2))
	require.NotNil(t, checkout.Items[0].DiscountDescription)
	assert.Equal(t, "Spring sale (-15%)", *checkout.Items[0].DiscountDescription)
	assert.Equal(t, "Product A", checkout.Items[1].ProductName)

	c, _ := f.store.Coupon("SAVE20")
	assert.Equal(t, 1, c.CurrentUses)
}

func TestCreateOrder_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)

	checkout, err := f.orders.CreateOrder(context.Background(), f.user,
		checkoutInput(CartItem{ProductID: p.ID, Quantity: 2}, CartItem{ProductID: p.ID, Quantity: 3}), nil)
	require.NoError(t, err)

	require.Len(t, checkout.Items, 1)
	assert.Equal(t, 5, checkout.Items[0].Quantity)
	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 5, current.Stock)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	a := f.product("Plenty", "10.00", 50)
	b := f.product("Scarce", "10.00", 1)

	_, err := f.orders.CreateOrder(context.Background(), f.user,
		checkoutInput(CartItem{ProductID: a.ID, Quantity: 3}, CartItem{ProductID: b.ID, Quantity: 2}), nil)

	var stockErr *errors.ErrInsufficientStock
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Scarce", stockErr.ProductName)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)

	current, _ := f.store.Product(a.ID)
	assert.Equal(t, 50, current.Stock)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: uuid.New(), Quantity: 1}), nil)

	var nf *errors.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestCreateOrder_ArchivedProduct(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "30.00", 10)
	f.store.AddProduct(&domain.Product{ID: p.ID, Name: p.Name, Status: domain.ProductStatusArchived, Price: p.Price, VATRate: p.VATRate, Stock: 10})

	_, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 1}), nil)
	var nf *errors.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Resource)

	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 10, current.Stock)
	orders, _, movements, _, _ := f.store.Counts()
	assert.Zero(t, orders)
	assert.Zero(t, movements)
}

func TestCreateOrder_RejectsReusedPaymentReference(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "30.00", 10)
	in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 2})

	first, err := f.orders.CreateOrder(context.Background(), f.user, in, minor(7500))
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(context.Background(), f.user, in, minor(7500))
	var inUse *errors.ErrPaymentReferenceInUse
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "pi_test", inUse.Reference)

	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 8, current.Stock)
	orders, items, movements, _, _ := f.store.Counts()
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, items)
	assert.Equal(t, 1, movements)

	applied, err := f.orders.ApplyPaymentStatus(context.Background(), "pi_test", domain.OrderStatusSucceeded)
	require.NoError(t, err)
	assert.True(t, applied)
	order, _ := f.store.Order(first.Order.ID)
	assert.Equal(t, domain.OrderStatusSucceeded, order.Status)
}

func TestCreateOrder_FailedCheckoutFreesPaymentReference(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "30.00", 10)
	in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 2})

	_, err := f.orders.CreateOrder(context.Background(), f.user, in, minor(7000))
	var mismatch *errors.ErrSecurityMismatch
	require.ErrorAs(t, err, &mismatch)

	_, err = f.orders.CreateOrder(context.Background(), f.user, in, minor(7500))
	assert.NoError(t, err)
}

func TestCreateOrder_ValidationFailsBeforeTransaction(t *testing.T) {
	f := newFixture(t)

	in := checkoutInput(CartItem{ProductID: uuid.New(), Quantity: 0})
	in.ShippingAddress.City = "  "
	in.PaymentReference = ""

	_, err := f.orders.CreateOrder(context.Background(), f.user, in, nil)

	var verr *errors.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].quantity")
	assert.Contains(t, verr.Fields, "shipping_address.city")
	assert.Contains(t, verr.Fields, "payment_reference")
}

func TestCreateOrder_UnknownCoupon(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)

	in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 1})
	code := "NOPE"
	in.CouponCode = &code

	_, err := f.orders.CreateOrder(context.Background(), f.user, in, nil)

	var couponErr *errors.ErrCouponInvalid
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, "coupon code does not exist", couponErr.Reason)
}

func TestCreateOrder_PerUserCouponCap(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "50.00", 10)
	c := f.coupon("WELCOME", domain.DiscountKindPercentage, "10", "0", nil)

	in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 1})
	code := "WELCOME"
	in.CouponCode = &code

	first, err := f.orders.CreateOrder(context.Background(), f.user, in, nil)
	require.NoError(t, err)
	assert.Equal(t, *first.Order.CouponID, c.ID)

	// still pending: not counted yet
	in.PaymentReference = "pi_second"
	_, err = f.orders.CreateOrder(context.Background(), f.user, in, nil)
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(context.Background(), first.Order.ID, domain.OrderStatusSucceeded, nil)
	require.NoError(t, err)

	in.PaymentReference = "pi_third"
	_, err = f.orders.CreateOrder(context.Background(), f.user, in, nil)
	var couponErr *errors.ErrCouponInvalid
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, coupon.ReasonAlreadyUsed, couponErr.Reason)

	// another user is unaffected
	_, err = f.orders.CreateOrder(context.Background(), uuid.New(), in, nil)
	assert.NoError(t, err)
}

func TestCreateOrder_StorageFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)
	f.store.FailNext("OrderItem.CreateBatch", stderrors.New("connection reset"))

	_, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 4}), nil)

	var storage *errors.ErrStorage
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "create order items", storage.Op)

	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 10, current.Stock)
	orders, _, movements, _, _ := f.store.Counts()
	assert.Zero(t, orders)
	assert.Zero(t, movements)
}

func TestCreateOrder_TimesOutOnHeldLock(t *testing.T) {
	f := newFixture(t)
	f.orders.timeout = 50 * time.Millisecond
	p := f.product("Mug", "10.00", 10)

	tx, err := f.store.BeginTx(context.Background())
	require.NoError(t, err)
	_, err = tx.Repos().Product.LockForUpdate(context.Background(), p.ID)
	require.NoError(t, err)

	start := time.Now()
	_, err = f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 1}), nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NoError(t, tx.Rollback())
	orders, _, _, _, _ := f.store.Counts()
	assert.Zero(t, orders)
}

func TestCreateOrder_ConcurrentCouponCap(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "50.00", 100)
	maxUses := 5
	f.coupon("FIRST5", domain.DiscountKindFixed, "5.00", "0", &maxUses)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		capped    atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 1})
			in.PaymentReference = "pi_" + uuid.NewString()
			code := "FIRST5"
			in.CouponCode = &code
			_, err := f.orders.CreateOrder(context.Background(), uuid.New(), in, nil)
			var couponErr *errors.ErrCouponInvalid
			switch {
			case err == nil:
				succeeded.Add(1)
			case stderrors.As(err, &couponErr) && couponErr.Reason == coupon.ReasonUsageLimit:
				capped.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(15), capped.Load())
	c, _ := f.store.Coupon("FIRST5")
	assert.Equal(t, 5, c.CurrentUses)
	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 95, current.Stock)
}

func TestCreateOrder_OpposingCartsDoNotDeadlock(t *testing.T) {
	f := newFixture(t)
	f.orders.timeout = 3 * time.Second
	a := f.product("A", "10.00", 100)
	b := f.product("B", "10.00", 100)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 40; i++ {
		first, second := a.ID, b.ID
		if i%2 == 1 {
			first, second = b.ID, a.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := checkoutInput(CartItem{ProductID: first, Quantity: 1}, CartItem{ProductID: second, Quantity: 1})
			in.PaymentReference = "pi_" + uuid.NewString()
			if _, err := f.orders.CreateOrder(context.Background(), uuid.New(), in, nil); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		current, _ := f.store.Product(id)
		assert.Equal(t, 60, current.Stock)
	}
}

func TestUpdateStatus_CancelRestocks(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)
	checkout, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 4}), nil)
	require.NoError(t, err)

	reason := "customer request"
	order, err := f.orders.UpdateStatus(context.Background(), checkout.Order.ID, domain.OrderStatusCanceled, &reason)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, order.Status)

	current, _ := f.store.Product(p.ID)
	assert.Equal(t, 10, current.Stock)

	movements := f.store.Movements(p.ID)
	require.Len(t, movements, 2)
	assert.Equal(t, domain.MovementKindReturn, movements[1].Kind)
	assert.Equal(t, 4, movements[1].Quantity)

	events := f.store.Events(checkout.Order.ID)
	require.Len(t, events, 2)
	assert.Equal(t, "status_change", events[1].EventType)
	assert.Equal(t, "customer request", events[1].EventData["reason"])

	_, err = f.orders.UpdateStatus(context.Background(), checkout.Order.ID, domain.OrderStatusProcessing, nil)
	var transition *errors.ErrInvalidStateTransition
	assert.ErrorAs(t, err, &transition)
}

func TestUpdateStatus_CancelReleasesCouponUse(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "50.00", 10)
	maxUses := 1
	f.coupon("ONCE", domain.DiscountKindFixed, "5.00", "0", &maxUses)

	in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 1})
	code := "ONCE"
	in.CouponCode = &code
	checkout, err := f.orders.CreateOrder(context.Background(), f.user, in, nil)
	require.NoError(t, err)

	c, _ := f.store.Coupon("ONCE")
	assert.Equal(t, 1, c.CurrentUses)

	_, err = f.orders.UpdateStatus(context.Background(), checkout.Order.ID, domain.OrderStatusCanceled, nil)
	require.NoError(t, err)
	c, _ = f.store.Coupon("ONCE")
	assert.Equal(t, 0, c.CurrentUses)

	in.PaymentReference = "pi_retry"
	_, err = f.orders.CreateOrder(context.Background(), uuid.New(), in, nil)
	require.NoError(t, err)
	c, _ = f.store.Coupon("ONCE")
	assert.Equal(t, 1, c.CurrentUses)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)
	checkout, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 1}), nil)
	require.NoError(t, err)
	id := checkout.Order.ID

	_, err = f.orders.UpdateStatus(context.Background(), id, domain.OrderStatusShipped, nil)
	var transition *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, domain.OrderStatusCreated, transition.From)

	for _, to := range []domain.OrderStatus{domain.OrderStatusSucceeded, domain.OrderStatusReadyToShip, domain.OrderStatusShipped} {
		_, err := f.orders.UpdateStatus(context.Background(), id, to, nil)
		require.NoError(t, err, to)
	}

	_, err = f.orders.UpdateStatus(context.Background(), id, domain.OrderStatus("lost"), nil)
	var verr *errors.ErrValidation
	assert.ErrorAs(t, err, &verr)

	_, err = f.orders.UpdateStatus(context.Background(), uuid.New(), domain.OrderStatusCanceled, nil)
	var nf *errors.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestApplyPaymentStatus(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)
	checkout, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 1}), nil)
	require.NoError(t, err)

	applied, err := f.orders.ApplyPaymentStatus(context.Background(), "pi_test", domain.OrderStatusSucceeded)
	require.NoError(t, err)
	assert.True(t, applied)

	// redelivery and a late processing notification are both ignored
	applied, err = f.orders.ApplyPaymentStatus(context.Background(), "pi_test", domain.OrderStatusSucceeded)
	require.NoError(t, err)
	assert.False(t, applied)
	applied, err = f.orders.ApplyPaymentStatus(context.Background(), "pi_test", domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.False(t, applied)

	order, _ := f.store.Order(checkout.Order.ID)
	assert.Equal(t, domain.OrderStatusSucceeded, order.Status)

	_, err = f.orders.ApplyPaymentStatus(context.Background(), "pi_unknown", domain.OrderStatusSucceeded)
	var nf *errors.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestGetOrder_Ownership(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)
	checkout, err := f.orders.CreateOrder(context.Background(), f.user, checkoutInput(CartItem{ProductID: p.ID, Quantity: 1}), nil)
	require.NoError(t, err)

	got, err := f.orders.GetOrder(context.Background(), checkout.Order.ID, &f.user)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	stranger := uuid.New()
	_, err = f.orders.GetOrder(context.Background(), checkout.Order.ID, &stranger)
	var nf *errors.ErrNotFound
	assert.ErrorAs(t, err, &nf)

	_, err = f.orders.GetOrder(context.Background(), checkout.Order.ID, nil)
	assert.NoError(t, err)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 10)
	for _, ref := range []string{"pi_1", "pi_2", "pi_3"} {
		in := checkoutInput(CartItem{ProductID: p.ID, Quantity: 1})
		in.PaymentReference = ref
		_, err := f.orders.CreateOrder(context.Background(), f.user, in, nil)
		require.NoError(t, err)
	}
	_, err := f.orders.ApplyPaymentStatus(context.Background(), "pi_2", domain.OrderStatusFailed)
	require.NoError(t, err)

	all, err := f.orders.ListOrders(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed := domain.OrderStatusFailed
	only, err := f.orders.ListOrders(context.Background(), repository.OrderFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "pi_2", *only[0].PaymentReference)

	bogus := domain.OrderStatus("lost")
	_, err = f.orders.ListOrders(context.Background(), repository.OrderFilter{Status: &bogus})
	var verr *errors.ErrValidation
	assert.ErrorAs(t, err, &verr)
}
