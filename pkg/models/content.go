package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Review struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProductID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_review_user_product" json:"product_id"`
	UserID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_review_user_product" json:"user_id"`
	AuthorName string    `gorm:"type:varchar(100)" json:"author_name"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	Approved   bool      `gorm:"not null;default:false;index" json:"approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

type WishlistItem struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	ProductID string    `gorm:"primaryKey;type:varchar(36)" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (WishlistItem) TableName() string {
	return "wishlist_items"
}

type BlogPost struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	Slug        string     `gorm:"type:varchar(220);uniqueIndex;not null" json:"slug"`
	Excerpt     string     `gorm:"type:varchar(500)" json:"excerpt"`
	Content     string     `gorm:"type:text" json:"content"`
	CoverImage  string     `gorm:"type:varchar(100)" json:"cover_image,omitempty"`
	Published   bool       `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}

type FAQ struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Question  string    `gorm:"type:varchar(300);not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FAQ) TableName() string {
	return "faqs"
}

type NewsletterSubscriber struct {
	Email     string    `gorm:"primaryKey;type:varchar(200)" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (NewsletterSubscriber) TableName() string {
	return "newsletter_subscribers"
}

// ShopSettingsID is the primary key of the single settings row.
const ShopSettingsID = 1

type ShopSettings struct {
	ID                    uint             `gorm:"primaryKey" json:"-"`
	ShippingFee           decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"shipping_fee"`
	FreeShippingThreshold *decimal.Decimal `gorm:"type:decimal(10,2)" json:"free_shipping_threshold,omitempty"`
	PickupEnabled         bool             `gorm:"not null" json:"pickup_enabled"`
	PickupAddress         string           `gorm:"type:varchar(300)" json:"pickup_address"`
	ContactEmail          string           `gorm:"type:varchar(200)" json:"contact_email"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (ShopSettings) TableName() string {
	return "shop_settings"
}

// ShippingCost is zero for pickup, otherwise the fee unless the subtotal
// reaches the free-shipping threshold. No threshold means never free.
func (s *ShopSettings) ShippingCost(method ShippingMethod, subtotal decimal.Decimal) decimal.Decimal {
	if method == ShippingPickup {
		return decimal.Zero
	}
	if s.FreeShippingThreshold != nil && subtotal.GreaterThanOrEqual(*s.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.ShippingFee
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&User{}, &Category{}, &Product{}, &ProductImage{}, &Variant{},
		&Order{}, &OrderItem{}, &Coupon{}, &Review{}, &WishlistItem{},
		&BlogPost{}, &FAQ{}, &NewsletterSubscriber{}, &ShopSettings{},
	}
}
