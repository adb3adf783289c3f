package shop

import (
	"context"
	"io"
	"time"

	"github.com/example/storefront/pkg/mail"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

// CatalogRepository is the catalog as checkout and the admin see it.
type CatalogRepository interface {
	ListProducts(ctx context.Context, f repository.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindActiveProducts(ctx context.Context, ids []string) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ProductSlugTaken(ctx context.Context, slug, excludeID string) (bool, error)

	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CategorySlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	ReorderCategories(ctx context.Context, ids []string) error

	GetVariant(ctx context.Context, id string) (*models.Variant, error)
	CreateVariant(ctx context.Context, v *models.Variant) error
	UpdateVariant(ctx context.Context, v *models.Variant) error
	DeleteVariant(ctx context.Context, id string) error

	AddProductImage(ctx context.Context, img *models.ProductImage) error
	DeleteProductImage(ctx context.Context, productID, key string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order, couponID *string) error
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]models.Order, int64, error)
	SetPaymentSession(ctx context.Context, id, sessionID string) error
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, restock bool) error
	Abandon(ctx context.Context, id string, couponCode *string) error
	MarkPaid(ctx context.Context, id string) ([]repository.StockShortfall, error)
	UpdateTracking(ctx context.Context, id, number, carrier, url string) error
}

type CouponRepository interface {
	List(ctx context.Context) ([]models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, c *models.Coupon) error
	Delete(ctx context.Context, id string) error
}

type SettingsRepository interface {
	Get(ctx context.Context) (*models.ShopSettings, error)
	Update(ctx context.Context, s *models.ShopSettings) error
}

type ContentRepository interface {
	ListPosts(ctx context.Context, publishedOnly bool) ([]models.BlogPost, error)
	GetPost(ctx context.Context, id string) (*models.BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	CreatePost(ctx context.Context, p *models.BlogPost) error
	UpdatePost(ctx context.Context, p *models.BlogPost) error
	DeletePost(ctx context.Context, id string) error
	PostSlugTaken(ctx context.Context, slug, excludeID string) (bool, error)

	ListFAQ(ctx context.Context) ([]models.FAQ, error)
	CreateFAQ(ctx context.Context, f *models.FAQ) error
	UpdateFAQ(ctx context.Context, f *models.FAQ) error
	DeleteFAQ(ctx context.Context, id string) error
	ReorderFAQ(ctx context.Context, ids []string) error
}

type WishlistRepository interface {
	List(ctx context.Context, userID string) ([]models.WishlistItem, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
}

type ReviewRepository interface {
	ListForProduct(ctx context.Context, productID string, approvedOnly bool) ([]models.Review, error)
	ListPending(ctx context.Context) ([]models.Review, error)
	Create(ctx context.Context, r *models.Review) error
	Approve(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type NewsletterRepository interface {
	Subscribe(ctx context.Context, email string) (bool, error)
	Unsubscribe(ctx context.Context, email string) error
	List(ctx context.Context) ([]models.NewsletterSubscriber, error)
}

// Notifier queues a customer e-mail; it must not block.
type Notifier interface {
	Notify(msg mail.Message)
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// ImageStore is the hosted object storage for uploaded pictures.
type ImageStore interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

type clock func() time.Time
