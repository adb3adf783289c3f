package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutItem struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
}

// CheckoutInput is the cart as posted by the storefront. Prices are never
// read from the client.
type CheckoutInput struct {
	Items           []CheckoutItem        `json:"items"`
	Name            string                `json:"name" validate:"required,max=200"`
	Email           string                `json:"email" validate:"required,email,max=200"`
	Phone           string                `json:"phone,omitempty" validate:"max=40"`
	ShippingMethod  models.ShippingMethod `json:"shippingMethod" validate:"required,oneof=DELIVERY PICKUP"`
	ShippingAddress string                `json:"shippingAddress,omitempty" validate:"max=500"`
	CouponCode      string                `json:"couponCode,omitempty" validate:"max=50"`

	// UserID is set from the session, never from the body.
	UserID *string `json:"-"`
}

func (in *CheckoutInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.CouponCode = strings.ToUpper(strings.TrimSpace(in.CouponCode))
}

// Quote is the server-side pricing of a cart.
type Quote struct {
	Lines    []models.OrderItem `json:"lines"`
	Subtotal decimal.Decimal    `json:"subtotal"`
	Shipping decimal.Decimal    `json:"shipping"`
	Discount decimal.Decimal    `json:"discount"`
	Total    decimal.Decimal    `json:"total"`

	coupon *models.Coupon
}

type CheckoutResult struct {
	OrderID string `json:"orderId"`
	URL     string `json:"url"`
}

type CheckoutService struct {
	catalog  CatalogRepository
	orders   OrderRepository
	coupons  CouponRepository
	settings SettingsRepository
	gateway  payment.Gateway
	baseURL  string
	now      clock
	logger   *zap.Logger
}

func NewCheckoutService(
	catalog CatalogRepository,
	orders OrderRepository,
	coupons CouponRepository,
	settings SettingsRepository,
	gateway payment.Gateway,
	baseURL string,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		catalog:  catalog,
		orders:   orders,
		coupons:  coupons,
		settings: settings,
		gateway:  gateway,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		logger:   logger.Named("checkout"),
	}
}

// Quote prices the cart from the catalog and settings without writing
// anything.
func (s *CheckoutService) Quote(ctx context.Context, in *CheckoutInput) (*Quote, error) {
	in.normalize()
	if len(in.Items) == 0 {
		return nil, invalid("items", "Votre panier est vide")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	q := &Quote{Subtotal: decimal.Zero}
	demand := make(map[string]int, len(in.Items))
	for i, item := range in.Items {
		line, stockKey, stock, err := priceLine(i, item, products)
		if err != nil {
			return nil, err
		}
		demand[stockKey] += item.Quantity
		if demand[stockKey] > stock {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("Stock insuffisant pour le produit %s (%s)", item.ProductID, line.ProductName),
				Err:     ErrInsufficientStock,
			}
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal = q.Subtotal.Add(line.LineTotal())
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop settings: %w", err)
	}
	switch in.ShippingMethod {
	case models.ShippingPickup:
		if !settings.PickupEnabled {
			return nil, invalid("shippingMethod", "Le retrait en boutique n'est pas disponible")
		}
	case models.ShippingDelivery:
		if in.ShippingAddress == "" {
			return nil, invalid("shippingAddress", "L'adresse de livraison est requise")
		}
	}
	q.Shipping = settings.ShippingCost(in.ShippingMethod, q.Subtotal)

	q.Discount = decimal.Zero
	if in.CouponCode != "" {
		c, err := s.checkCoupon(ctx, in.CouponCode, q.Subtotal)
		if err != nil {
			return nil, err
		}
		q.coupon = c
		q.Discount = c.Discount(q.Subtotal)
	}

	q.Total = q.Subtotal.Add(q.Shipping).Sub(q.Discount)
	return q, nil
}

func (s *CheckoutService) loadProducts(ctx context.Context, items []CheckoutItem) (map[string]*models.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	found, err := s.catalog.FindActiveProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := make(map[string]*models.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	return byID, nil
}

// priceLine resolves one cart line. It returns the frozen order line, the key
// of the stock counter it draws from and that counter's level.
func priceLine(i int, item CheckoutItem, products map[string]*models.Product) (models.OrderItem, string, int, error) {
	field := fmt.Sprintf("items[%d]", i)

	p, ok := products[item.ProductID]
	if !ok {
		return models.OrderItem{}, "", 0, invalid(field, "Le produit %s n'est plus disponible", item.ProductID)
	}
	if item.Quantity <= 0 {
		return models.OrderItem{}, "", 0, invalid(field+".quantity", "Quantité invalide pour le produit %s", item.ProductID)
	}

	line := models.OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    item.Quantity,
		UnitPrice:   p.Price,
	}
	if item.VariantID == nil || *item.VariantID == "" {
		return line, "product:" + p.ID, p.Stock, nil
	}

	v := p.Variant(*item.VariantID)
	if v == nil || !v.Active {
		return models.OrderItem{}, "", 0, invalid(field+".variantId",
			"La variante %s du produit %s n'est plus disponible", *item.VariantID, item.ProductID)
	}
	variantID := v.ID
	line.VariantID = &variantID
	line.VariantName = v.Name
	line.UnitPrice = v.UnitPrice(p.Price)
	return line, "variant:" + v.ID, v.Stock, nil
}

func (s *CheckoutService) checkCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Coupon, error) {
	c, err := s.coupons.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid("couponCode", "Code promo invalide")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon %s: %w", code, err)
	}

	switch {
	case !c.Active:
		return nil, invalid("couponCode", "Code promo invalide")
	case c.ExpiresAt != nil && !s.now().Before(*c.ExpiresAt):
		return nil, invalid("couponCode", "Ce code promo a expiré")
	case c.MaxUses != nil && c.CurrentUses >= *c.MaxUses:
		return nil, invalid("couponCode", "Ce code promo n'est plus disponible")
	case c.MinAmount != nil && subtotal.LessThan(*c.MinAmount):
		return nil, invalid("couponCode", "Ce code promo nécessite un minimum d'achat de %s €",
			strings.Replace(c.MinAmount.StringFixed(2), ".", ",", 1))
	}
	return c, nil
}

// Checkout prices the cart, records a PENDING order and opens the hosted
// payment session. Validation failures write nothing. When the session
// cannot be opened the order is cancelled again.
func (s *CheckoutService) Checkout(ctx context.Context, in *CheckoutInput) (*CheckoutResult, error) {
	q, err := s.Quote(ctx, in)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		CustomerName:    in.Name,
		CustomerEmail:   in.Email,
		CustomerPhone:   in.Phone,
		ShippingMethod:  in.ShippingMethod,
		ShippingAddress: in.ShippingAddress,
		Status:          models.OrderStatusPending,
		Subtotal:        q.Subtotal,
		ShippingCost:    q.Shipping,
		DiscountAmount:  q.Discount,
		TotalAmount:     q.Total,
		Items:           q.Lines,
	}
	if in.ShippingMethod == models.ShippingPickup {
		order.ShippingAddress = ""
	}

	var couponID *string
	if q.coupon != nil {
		couponID = &q.coupon.ID
		order.CouponCode = &q.coupon.Code
	}

	if err := s.orders.Create(ctx, order, couponID); err != nil {
		if errors.Is(err, repository.ErrCouponExhausted) {
			return nil, invalid("couponCode", "Ce code promo n'est plus disponible")
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	session, err := s.gateway.CreateSession(ctx, s.sessionRequest(order))
	if err != nil {
		s.logger.Error("Failed to open payment session",
			zap.String("order_id", order.ID),
			zap.Error(err))
		if aerr := s.orders.Abandon(context.WithoutCancel(ctx), order.ID, order.CouponCode); aerr != nil {
			s.logger.Error("Failed to cancel order after payment failure",
				zap.String("order_id", order.ID),
				zap.Error(aerr))
		}
		return nil, fmt.Errorf("%w: %w", ErrPayment, err)
	}

	if err := s.orders.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		// The webhook still carries the order id, so payment can be matched.
		s.logger.Warn("Failed to store payment session id",
			zap.String("order_id", order.ID),
			zap.String("session_id", session.ID),
			zap.Error(err))
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	return &CheckoutResult{OrderID: order.ID, URL: session.URL}, nil
}

func (s *CheckoutService) sessionRequest(order *models.Order) payment.SessionRequest {
	lines := make([]payment.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductName
		if item.VariantName != "" {
			name += " - " + item.VariantName
		}
		lines = append(lines, payment.LineItem{Name: name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return payment.SessionRequest{
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		Lines:         lines,
		Shipping:      order.ShippingCost,
		Discount:      order.DiscountAmount,
		SuccessURL:    fmt.Sprintf("%s/commande/confirmation?commande=%s", s.baseURL, order.ID),
		CancelURL:     s.baseURL + "/panier",
	}
}

// TrackURL is the customer-facing tracking page of an order.
func TrackURL(baseURL, orderID string) string {
	return fmt.Sprintf("%s/suivi?commande=%s", strings.TrimRight(baseURL, "/"), orderID)
}
