package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/mail"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/repository/repotest"
	"github.com/example/storefront/pkg/shop"
	"github.com/example/storefront/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jwtSecret      = "gateway-test-secret"
	validSignature = "t=1,v1=ok"
)

type stubPayments struct {
	err   error
	event *payment.Event
}

func (p *stubPayments) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &payment.Session{ID: "cs_" + req.OrderID, URL: "https://pay.example.com/" + req.OrderID}, nil
}

func (p *stubPayments) ParseWebhook(_ []byte, signature string) (*payment.Event, error) {
	if signature != validSignature {
		return nil, payment.ErrInvalidSignature
	}
	return p.event, nil
}

type discardNotifier struct{}

func (discardNotifier) Notify(mail.Message) {}

type memoryImages struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string
}

func (m *memoryImages) Upload(_ context.Context, _, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := uuid.NewString()
	m.blobs[key] = data
	m.types[key] = contentType
	return key, nil
}

func (m *memoryImages) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryImages) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, "", storage.ErrImageNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.types[key], nil
}

type testServer struct {
	db       *gorm.DB
	payments *stubPayments
	handler  http.Handler
	healthy  error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := repotest.NewDB(t)
	logger := zap.NewNop()

	catalogRepo := repository.NewCatalogRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, nil)
	reviewRepo := repository.NewReviewRepository(db)
	images := &memoryImages{blobs: map[string][]byte{}, types: map[string]string{}}

	ts := &testServer{db: db, payments: &stubPayments{}}
	services := &Services{
		Checkout:  shop.NewCheckoutService(catalogRepo, orderRepo, couponRepo, settingsRepo, ts.payments, "https://boutique.test", logger),
		Orders:    shop.NewOrderService(orderRepo, discardNotifier{}, nil, "https://boutique.test", logger),
		Catalog:   shop.NewCatalogService(catalogRepo, reviewRepo, images, logger),
		Coupons:   shop.NewCouponService(couponRepo),
		Content:   shop.NewContentService(repository.NewContentRepository(db), settingsRepo),
		Community: shop.NewCommunityService(repository.NewWishlistRepository(db), reviewRepo, repository.NewNewsletterRepository(db), logger),
		Payments:  ts.payments,
		Images:    images,
		Verifier:  auth.NewVerifier(jwtSecret, "", "role"),
		Users:     repository.NewUserRepository(db),
		Health: map[string]HealthCheck{
			"database": func(context.Context) error { return ts.healthy },
		},
	}

	g := NewGateway(&config.ServerConfig{Host: "127.0.0.1", Port: 0}, services, logger)
	g.SetupRoutes()
	ts.handler = g.Handler()

	require.NoError(t, db.Save(&models.ShopSettings{
		ID:            models.ShopSettingsID,
		ShippingFee:   decimal.RequireFromString("5.00"),
		PickupEnabled: true,
		PickupAddress: "12 rue des Lilas, Lyon",
	}).Error)
	return ts
}

func token(t *testing.T, sub string, admin bool) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "email": sub + "@example.com", "name": "Jeanne"}
	if admin {
		claims["role"] = "admin"
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return raw
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) seedProduct(t *testing.T, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:     uuid.NewString(),
		Name:   "Savon lavande",
		Slug:   "savon-lavande-" + uuid.NewString()[:6],
		Price:  decimal.RequireFromString("9.99"),
		Stock:  stock,
		Active: true,
	}
	require.NoError(t, ts.db.Create(p).Error)
	return p
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func cart(productID string, qty int) gin.H {
	return gin.H{
		"items":          []gin.H{{"productId": productID, "quantity": qty}},
		"name":           "Jeanne Martin",
		"email":          "Jeanne@Example.com",
		"shippingMethod": "PICKUP",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	ts.healthy = errors.New("connection refused")
	w = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database")
}

func TestCheckoutAndWebhook(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProduct(t, 5)

	w := ts.do(t, http.MethodPost, "/api/checkout/quote", "", cart(p.ID, 2))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "19.98", decode(t, w)["total"])

	w = ts.do(t, http.MethodPost, "/api/checkout", "", cart(p.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, "https://pay.example.com/"+orderID, body["url"])

	ts.payments.event = &payment.Event{
		Type:      payment.EventCheckoutCompleted,
		SessionID: "cs_" + orderID,
		OrderID:   orderID,
		Paid:      true,
	}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "forged")
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", strings.NewReader("{}"))
		req.Header.Set("Stripe-Signature", validSignature)
		w = httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "delivery %d", i+1)
	}

	var order models.Order
	require.NoError(t, ts.db.Where("id = ?", orderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	var stock int
	require.NoError(t, ts.db.Model(&models.Product{}).Select("stock").Where("id = ?", p.ID).Row().Scan(&stock))
	assert.Equal(t, 3, stock, "stock is decremented once")

	w = ts.do(t, http.MethodGet, "/api/orders/track?id="+orderID+"&email=jeanne@example.com", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/orders/track?id="+orderID+"&email=paul@example.com", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutErrors(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProduct(t, 1)

	w := ts.do(t, http.MethodPost, "/api/checkout", "", cart(p.ID, 2))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Stock insuffisant")

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, badRequestMessage, decode(t, w)["error"])

	ts.payments.err = errors.New("stripe unavailable")
	w = ts.do(t, http.MethodPost, "/api/checkout", "", cart(p.ID, 1))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "stripe unavailable")
}

func TestAdminAccess(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/admin/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/orders", token(t, "user_1", false), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/orders", token(t, "admin_1", true), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
}

func TestAdminActions(t *testing.T) {
	ts := newTestServer(t)
	admin := token(t, "admin_1", true)

	w := ts.do(t, http.MethodPost, "/api/admin/categories", admin, gin.H{"name": "Savons"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["success"])

	w = ts.do(t, http.MethodPost, "/api/admin/categories", admin, gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	w = ts.do(t, http.MethodDelete, "/api/admin/coupons/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	p := ts.seedProduct(t, 3)
	w = ts.do(t, http.MethodPost, "/api/checkout", "", cart(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := decode(t, w)["orderId"].(string)

	w = ts.do(t, http.MethodPut, "/api/admin/orders/"+orderID+"/status", admin, gin.H{"status": "SHIPPED"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPut, "/api/admin/orders/"+orderID+"/status", admin, gin.H{"status": "CANCELLED"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/admin/orders/export?status=CANCELLED", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "commandes-")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), orderID)

	w = ts.do(t, http.MethodGet, "/api/admin/orders/export?from=hier", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemberRoutes(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProduct(t, 3)

	w := ts.do(t, http.MethodPost, "/api/wishlist", "", gin.H{"productId": p.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	member := token(t, "user_1", false)
	w = ts.do(t, http.MethodPost, "/api/wishlist", member, gin.H{"productId": p.ID})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/api/wishlist", member, gin.H{"productId": p.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/reviews", member, gin.H{"productId": p.ID, "rating": 5, "comment": "Parfait"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodDelete, "/api/wishlist/"+p.ID, member, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	u, err := repository.NewUserRepository(ts.db).Get(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1@example.com", u.Email)
	assert.False(t, u.IsAdmin)
}

func TestImages(t *testing.T) {
	ts := newTestServer(t)
	admin := token(t, "admin_1", true)
	p := ts.seedProduct(t, 3)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="savon.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products/"+p.ID+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decode(t, w)["data"].(map[string]interface{})
	key, _ := data["key"].(string)
	require.NotEmpty(t, key)

	w = ts.do(t, http.MethodGet, "/api/images/"+key, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/images/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
