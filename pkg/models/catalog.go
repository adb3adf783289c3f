package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

type Product struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string          `gorm:"type:varchar(200);not null" json:"name"`
	Slug        string          `gorm:"type:varchar(220);uniqueIndex;not null" json:"slug"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Active      bool            `gorm:"not null;index" json:"active"`
	CategoryID  *string         `gorm:"type:varchar(36);index" json:"category_id,omitempty"`
	Category    *Category       `json:"category,omitempty"`
	Images      []ProductImage  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Variants    []Variant       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// IsOutOfStock is true when the product has no base stock and no variant
// with stock left.
func (p *Product) IsOutOfStock() bool {
	if p.Stock > 0 {
		return false
	}
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return false
		}
	}
	return true
}

func (p *Product) Variant(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

type Variant struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProductID string           `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Name      string           `gorm:"type:varchar(100);not null" json:"name"`
	Price     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"price,omitempty"`
	Stock     int              `gorm:"not null;default:0" json:"stock"`
	Active    bool             `gorm:"not null" json:"active"`
	Position  int              `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Variant) TableName() string {
	return "variants"
}

// UnitPrice returns the override when set, otherwise base.
func (v *Variant) UnitPrice(base decimal.Decimal) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return base
}

type ProductImage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProductID  string    `gorm:"type:varchar(36);not null;index" json:"product_id"`
	StorageKey string    `gorm:"type:varchar(100);not null" json:"key"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ProductImage) TableName() string {
	return "product_images"
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

func (d DiscountType) IsValid() bool {
	return d == DiscountPercentage || d == DiscountFixed
}

type Coupon struct {
	ID            string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code          string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	DiscountType  DiscountType     `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"discount_value"`
	MinAmount     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"min_amount,omitempty"`
	MaxUses       *int             `json:"max_uses,omitempty"`
	CurrentUses   int              `gorm:"not null;default:0" json:"current_uses"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	Active        bool             `gorm:"not null" json:"active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// Discount computes the reduction for subtotal, rounded to cents. A
// percentage is capped at 100 and a fixed amount at the subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		pct := decimal.Min(c.DiscountValue, decimal.NewFromInt(100))
		d = subtotal.Mul(pct).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		d = decimal.Min(c.DiscountValue, subtotal)
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
