package repository

import (
	"context"
	"strings"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) List(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// GetByCode looks the coupon up case-insensitively; codes are stored upper-cased.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *models.Coupon) error {
	return duplicate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *CouponRepository) Update(ctx context.Context, c *models.Coupon) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Coupon{}, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return duplicate(db.Model(&models.Coupon{}).Where("id = ?", c.ID).
		Select("code", "discount_type", "discount_value", "min_amount", "max_uses", "expires_at", "active").
		Updates(c).Error)
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Coupon{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
