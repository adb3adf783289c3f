package shop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponInput struct {
	Code          string              `json:"code" validate:"required,max=50"`
	DiscountType  models.DiscountType `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	MinAmount     *decimal.Decimal    `json:"minAmount,omitempty"`
	MaxUses       *int                `json:"maxUses,omitempty" validate:"omitempty,gte=1"`
	ExpiresAt     *time.Time          `json:"expiresAt,omitempty"`
	Active        bool                `json:"active"`
}

func (in *CouponInput) check() error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := validateInput(in); err != nil {
		return err
	}
	if strings.ContainsAny(in.Code, " \t") {
		return invalid("code", "Le code ne doit pas contenir d'espace")
	}
	if !in.DiscountValue.IsPositive() {
		return invalid("discountValue", "La valeur de la réduction doit être positive")
	}
	if in.DiscountType == models.DiscountPercentage && in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("discountValue", "Un pourcentage ne peut pas dépasser 100")
	}
	if in.MinAmount != nil && in.MinAmount.IsNegative() {
		return invalid("minAmount", "Le montant minimum ne peut pas être négatif")
	}
	return nil
}

type CouponService struct {
	coupons CouponRepository
}

func NewCouponService(coupons CouponRepository) *CouponService {
	return &CouponService{coupons: coupons}
}

func (s *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.coupons.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

func (s *CouponService) Create(ctx context.Context, in *CouponInput) (*models.Coupon, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	c := &models.Coupon{ID: uuid.NewString()}
	apply(c, in)
	if err := s.coupons.Create(ctx, c); err != nil {
		return nil, storeErr(err, "Code promo", "create coupon")
	}
	return c, nil
}

// Update rewrites the coupon terms. The usage counter is kept.
func (s *CouponService) Update(ctx context.Context, id string, in *CouponInput) (*models.Coupon, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	c := &models.Coupon{ID: id}
	apply(c, in)
	if err := s.coupons.Update(ctx, c); err != nil {
		return nil, storeErr(err, "Code promo", "update coupon")
	}
	return c, nil
}

func (s *CouponService) Delete(ctx context.Context, id string) error {
	return storeErr(s.coupons.Delete(ctx, id), "Code promo", "delete coupon")
}

func apply(c *models.Coupon, in *CouponInput) {
	c.Code = in.Code
	c.DiscountType = in.DiscountType
	c.DiscountValue = in.DiscountValue.Round(2)
	c.MinAmount = in.MinAmount
	c.MaxUses = in.MaxUses
	c.ExpiresAt = in.ExpiresAt
	c.Active = in.Active
}
