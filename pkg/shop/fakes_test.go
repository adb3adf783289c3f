package shop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/example/storefront/pkg/mail"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/repository/repotest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []payment.SessionRequest
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Session{ID: "cs_" + req.OrderID, URL: "https://pay.example.com/" + req.OrderID}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*payment.Event, error) {
	return nil, payment.ErrInvalidSignature
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (n *fakeNotifier) Notify(msg mail.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) sent() []mail.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]mail.Message(nil), n.msgs...)
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []*repository.AuditLog
}

func (a *fakeAudit) CreateAuditLog(_ context.Context, log *repository.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *fakeAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.logs)
}

type fakeImages struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeImages() *fakeImages {
	return &fakeImages{blobs: map[string][]byte{}}
}

func (s *fakeImages) Upload(_ context.Context, _, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := uuid.NewString()
	s.blobs[key] = buf.Bytes()
	return key, nil
}

func (s *fakeImages) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return errors.New("no such blob")
	}
	delete(s.blobs, key)
	return nil
}

func (s *fakeImages) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	notifier *fakeNotifier
	audit    *fakeAudit
	images   *fakeImages

	checkout  *CheckoutService
	orders    *OrderService
	catalog   *CatalogService
	coupons   *CouponService
	content   *ContentService
	community *CommunityService
}

const testBaseURL = "https://boutique.example.com"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.NewDB(t)
	logger := zap.NewNop()

	catalogRepo := repository.NewCatalogRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, nil)
	reviewRepo := repository.NewReviewRepository(db)

	f := &fixture{
		db:       db,
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		audit:    &fakeAudit{},
		images:   newFakeImages(),
	}
	f.checkout = NewCheckoutService(catalogRepo, orderRepo, couponRepo, settingsRepo, f.gateway, testBaseURL, logger)
	f.orders = NewOrderService(orderRepo, f.notifier, f.audit, testBaseURL, logger)
	f.catalog = NewCatalogService(catalogRepo, reviewRepo, f.images, logger)
	f.coupons = NewCouponService(couponRepo)
	f.content = NewContentService(repository.NewContentRepository(db), settingsRepo)
	f.community = NewCommunityService(
		repository.NewWishlistRepository(db), reviewRepo, repository.NewNewsletterRepository(db), logger)
	return f
}

func (f *fixture) setShipping(t *testing.T, fee string, threshold string, pickup bool) {
	t.Helper()
	s := models.ShopSettings{
		ID:            models.ShopSettingsID,
		ShippingFee:   decimal.RequireFromString(fee),
		PickupEnabled: pickup,
		PickupAddress: "12 rue des Lilas, Lyon",
	}
	if threshold != "" {
		th := decimal.RequireFromString(threshold)
		s.FreeShippingThreshold = &th
	}
	require.NoError(t, f.db.Save(&s).Error)
}

func (f *fixture) seedProduct(t *testing.T, price string, stock int, active bool) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:     uuid.NewString(),
		Name:   "Savon " + uuid.NewString()[:6],
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: active,
	}
	p.Slug = Slugify(p.Name)
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) seedVariant(t *testing.T, p *models.Product, name string, price *string, stock int, active bool) *models.Variant {
	t.Helper()
	v := &models.Variant{ID: uuid.NewString(), ProductID: p.ID, Name: name, Stock: stock, Active: active}
	if price != nil {
		d := decimal.RequireFromString(*price)
		v.Price = &d
	}
	require.NoError(t, f.db.Create(v).Error)
	return v
}

func (f *fixture) seedCoupon(t *testing.T, c models.Coupon) *models.Coupon {
	t.Helper()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	require.NoError(t, f.db.Create(&c).Error)
	return &c
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) stockOf(t *testing.T, model interface{}, id string) int {
	t.Helper()
	var stock int
	require.NoError(t, f.db.Model(model).Select("stock").Where("id = ?", id).Row().Scan(&stock))
	return stock
}

func (f *fixture) setStatus(t *testing.T, orderID string, status models.OrderStatus) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", orderID).Update("status", status).Error)
}

func (f *fixture) statusOf(t *testing.T, orderID string) models.OrderStatus {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.Select("status").Where("id = ?", orderID).First(&o).Error)
	return o.Status
}

// placeOrder checks out qty units of p for pickup and returns the order id.
func (f *fixture) placeOrder(t *testing.T, p *models.Product, qty int) string {
	t.Helper()
	res, err := f.checkout.Checkout(context.Background(), &CheckoutInput{
		Items:          []CheckoutItem{{ProductID: p.ID, Quantity: qty}},
		Name:           "Jeanne Martin",
		Email:          "jeanne@example.com",
		ShippingMethod: models.ShippingPickup,
	})
	require.NoError(t, err, fmt.Sprintf("checkout of %s", p.ID))
	return res.OrderID
}
