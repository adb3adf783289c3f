package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// discountTTL bounds how long an unused checkout discount stays redeemable.
const discountTTL = 24 * time.Hour

type StripeGateway struct {
	api           *client.API
	currency      string
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, currency: currency, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := g.sessionParams(req)
	params.Context = ctx

	// Stripe has no negative line items; the discount becomes a one-shot coupon.
	var couponID string
	if req.Discount.IsPositive() {
		cp := g.discountParams(req.Discount, time.Now())
		cp.Context = ctx
		coupon, err := g.api.Coupons.New(cp)
		if err != nil {
			return nil, fmt.Errorf("failed to create discount: %w", err)
		}
		couponID = coupon.ID
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(couponID)}}
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		if couponID != "" {
			dp := &stripe.CouponParams{}
			dp.Context = context.WithoutCancel(ctx)
			if _, derr := g.api.Coupons.Del(couponID, dp); derr != nil {
				return nil, fmt.Errorf("failed to create checkout session: %w (discount %s left: %v)", err, couponID, derr)
			}
		}
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// discountParams describes a coupon redeemable once, until discountTTL after now.
func (g *StripeGateway) discountParams(amount decimal.Decimal, now time.Time) *stripe.CouponParams {
	return &stripe.CouponParams{
		AmountOff:      stripe.Int64(Cents(amount)),
		Currency:       stripe.String(g.currency),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		Name:           stripe.String("Réduction"),
		MaxRedemptions: stripe.Int64(1),
		RedeemBy:       stripe.Int64(now.Add(discountTTL).Unix()),
	}
}

func (g *StripeGateway) sessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.AddMetadata("order_id", req.OrderID)

	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, g.lineItem(line.Name, Cents(line.UnitPrice), int64(line.Quantity)))
	}
	if req.Shipping.IsPositive() {
		params.LineItems = append(params.LineItems, g.lineItem("Livraison", Cents(req.Shipping), 1))
	}
	return params
}

func (g *StripeGateway) lineItem(name string, unitAmount, qty int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(g.currency),
			UnitAmount: stripe.Int64(unitAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
		Quantity: stripe.Int64(qty),
	}
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	evt, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{Type: string(evt.Type)}
	if evt.Type != EventCheckoutCompleted {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	out.SessionID = s.ID
	out.OrderID = s.ClientReferenceID
	if out.OrderID == "" {
		out.OrderID = s.Metadata["order_id"]
	}
	out.Paid = s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	return out, nil
}
