package shop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliveryInput(items ...CheckoutItem) *CheckoutInput {
	return &CheckoutInput{
		Items:           items,
		Name:            "Jeanne Martin",
		Email:           " Jeanne@Example.com ",
		ShippingMethod:  models.ShippingDelivery,
		ShippingAddress: "3 place Bellecour, 69002 Lyon",
	}
}

func TestCheckout_PricesCartFromCatalog(t *testing.T) {
	f := newFixture(t)
	f.setShipping(t, "5.00", "50.00", true)
	p := f.seedProduct(t, "9.99", 5, true)

	res, err := f.checkout.Checkout(context.Background(), deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/"+res.OrderID, res.URL)

	order, err := f.orders.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "19.98", order.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", order.ShippingCost.StringFixed(2))
	assert.Equal(t, "0.00", order.DiscountAmount.StringFixed(2))
	assert.Equal(t, "24.98", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "jeanne@example.com", order.CustomerEmail)
	require.NotNil(t, order.PaymentSessionID)
	assert.Equal(t, "cs_"+res.OrderID, *order.PaymentSessionID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "9.99", order.Items[0].UnitPrice.StringFixed(2))

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, res.OrderID, req.OrderID)
	assert.Equal(t, "5.00", req.Shipping.StringFixed(2))
	assert.Equal(t, 2, req.Lines[0].Quantity)

	assert.Equal(t, 5, f.stockOf(t, &models.Product{}, p.ID), "stock is only taken at payment")
}

func TestCheckout_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.setShipping(t, "5.00", "50.00", true)
	p := f.seedProduct(t, "9.99", 1, true)

	_, err := f.checkout.Checkout(context.Background(), deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 2}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), p.ID)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items[0].quantity", verr.Field)

	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.gateway.requests)
}

func TestCheckout_StockDemandAddsUpAcrossLines(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "4.00", 5, true)

	_, err := f.checkout.Quote(context.Background(), deliveryInput(
		CheckoutItem{ProductID: p.ID, Quantity: 3},
		CheckoutItem{ProductID: p.ID, Quantity: 3},
	))
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCheckout_RejectsUnavailableProducts(t *testing.T) {
	f := newFixture(t)
	inactive := f.seedProduct(t, "9.99", 5, false)
	active := f.seedProduct(t, "9.99", 5, true)

	tests := []struct {
		name  string
		items []CheckoutItem
	}{
		{"inactive product", []CheckoutItem{{ProductID: inactive.ID, Quantity: 1}}},
		{"unknown product", []CheckoutItem{{ProductID: "nope", Quantity: 1}}},
		{"zero quantity", []CheckoutItem{{ProductID: active.ID, Quantity: 0}}},
		{"negative quantity", []CheckoutItem{{ProductID: active.ID, Quantity: -2}}},
		{"empty cart", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkout.Checkout(context.Background(), deliveryInput(tt.items...))
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Zero(t, f.orderCount(t))
		})
	}
}

func TestCheckout_Variants(t *testing.T) {
	f := newFixture(t)
	f.setShipping(t, "0", "", true)
	p := f.seedProduct(t, "10.00", 0, true)
	override := "12.50"
	large := f.seedVariant(t, p, "Grand", &override, 3, true)
	small := f.seedVariant(t, p, "Petit", nil, 3, true)
	retired := f.seedVariant(t, p, "Ancien", nil, 3, false)

	q, err := f.checkout.Quote(context.Background(), deliveryInput(
		CheckoutItem{ProductID: p.ID, VariantID: &large.ID, Quantity: 2},
		CheckoutItem{ProductID: p.ID, VariantID: &small.ID, Quantity: 1},
	))
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, "12.50", q.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "Grand", q.Lines[0].VariantName)
	assert.Equal(t, "10.00", q.Lines[1].UnitPrice.StringFixed(2))
	assert.Equal(t, "35.00", q.Subtotal.StringFixed(2))

	_, err = f.checkout.Quote(context.Background(), deliveryInput(
		CheckoutItem{ProductID: p.ID, VariantID: &large.ID, Quantity: 4}))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = f.checkout.Quote(context.Background(), deliveryInput(
		CheckoutItem{ProductID: p.ID, VariantID: &retired.ID, Quantity: 1}))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items[0].variantId", verr.Field)
}

func TestCheckout_Shipping(t *testing.T) {
	f := newFixture(t)
	f.setShipping(t, "5.00", "50.00", true)
	p := f.seedProduct(t, "30.00", 10, true)
	ctx := context.Background()

	q, err := f.checkout.Quote(ctx, deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	assert.True(t, q.Shipping.IsZero(), "free above threshold")
	assert.Equal(t, "60.00", q.Total.StringFixed(2))

	pickup := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	pickup.ShippingMethod = models.ShippingPickup
	q, err = f.checkout.Quote(ctx, pickup)
	require.NoError(t, err)
	assert.True(t, q.Shipping.IsZero())

	noAddress := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	noAddress.ShippingAddress = "  "
	_, err = f.checkout.Quote(ctx, noAddress)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shippingAddress", verr.Field)

	badMethod := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	badMethod.ShippingMethod = "DRONE"
	_, err = f.checkout.Quote(ctx, badMethod)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shippingMethod", verr.Field)

	f.setShipping(t, "5.00", "", false)
	_, err = f.checkout.Quote(ctx, pickup)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shippingMethod", verr.Field)

	q, err = f.checkout.Quote(ctx, deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, "5.00", q.Shipping.StringFixed(2), "no threshold means never free")
}

func TestCheckout_Coupons(t *testing.T) {
	f := newFixture(t)
	f.setShipping(t, "0", "", true)
	p := f.seedProduct(t, "50.00", 10, true)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.checkout.now = func() time.Time { return now }

	yesterday := now.Add(-24 * time.Hour)
	one := 1
	min := decimal.NewFromInt(200)
	f.seedCoupon(t, models.Coupon{Code: "DIX", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(10), Active: true})
	f.seedCoupon(t, models.Coupon{Code: "QUINZE", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(15), Active: true})
	f.seedCoupon(t, models.Coupon{Code: "GEANT", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(500), Active: true})
	f.seedCoupon(t, models.Coupon{Code: "VIEUX", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5), ExpiresAt: &yesterday, Active: true})
	f.seedCoupon(t, models.Coupon{Code: "OFF", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5)})
	f.seedCoupon(t, models.Coupon{Code: "UNIQUE", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5), MaxUses: &one, CurrentUses: 1, Active: true})
	f.seedCoupon(t, models.Coupon{Code: "MINI", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5), MinAmount: &min, Active: true})

	quote := func(code string) (*Quote, error) {
		in := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 2})
		in.CouponCode = code
		return f.checkout.Quote(context.Background(), in)
	}

	q, err := quote("dix")
	require.NoError(t, err)
	assert.Equal(t, "10.00", q.Discount.StringFixed(2))
	assert.Equal(t, "90.00", q.Total.StringFixed(2))

	q, err = quote("QUINZE")
	require.NoError(t, err)
	assert.Equal(t, "15.00", q.Discount.StringFixed(2))

	q, err = quote("GEANT")
	require.NoError(t, err)
	assert.Equal(t, "100.00", q.Discount.StringFixed(2), "capped at subtotal")
	assert.True(t, q.Total.IsZero())

	for _, code := range []string{"INCONNU", "VIEUX", "OFF", "UNIQUE", "MINI"} {
		_, err := quote(code)
		var verr *ValidationError
		if assert.ErrorAs(t, err, &verr, code) {
			assert.Equal(t, "couponCode", verr.Field, code)
		}
	}
}

func TestCheckout_CouponUseIsCounted(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "20.00", 10, true)
	two := 2
	c := f.seedCoupon(t, models.Coupon{Code: "DEUX", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5), MaxUses: &two, Active: true})

	for i := 0; i < 2; i++ {
		in := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
		in.CouponCode = "DEUX"
		_, err := f.checkout.Checkout(context.Background(), in)
		require.NoError(t, err)
	}

	in := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	in.CouponCode = "DEUX"
	_, err := f.checkout.Checkout(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "couponCode", verr.Field)

	var got models.Coupon
	require.NoError(t, f.db.First(&got, "id = ?", c.ID).Error)
	assert.Equal(t, 2, got.CurrentUses)
	assert.EqualValues(t, 2, f.orderCount(t))
}

func TestCheckout_PaymentFailureCancelsOrder(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "20.00", 10, true)
	c := f.seedCoupon(t, models.Coupon{Code: "PROMO", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5), Active: true})
	f.gateway.err = errors.New("provider unavailable")

	in := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	in.CouponCode = "PROMO"
	_, err := f.checkout.Checkout(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPayment)
	assert.Equal(t, "Le paiement n'a pas pu être initialisé, veuillez réessayer", UserMessage(err))

	var orders []models.Order
	require.NoError(t, f.db.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)

	var got models.Coupon
	require.NoError(t, f.db.First(&got, "id = ?", c.ID).Error)
	assert.Zero(t, got.CurrentUses)
}

func TestCheckout_InputValidation(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "20.00", 10, true)

	in := deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	in.Email = "pas-un-email"
	_, err := f.checkout.Quote(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	in = deliveryInput(CheckoutItem{ProductID: p.ID, Quantity: 1})
	in.Name = ""
	_, err = f.checkout.Quote(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, "Le champ name est requis", verr.Message)
}
