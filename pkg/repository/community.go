package repository

import (
	"context"
	"strings"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WishlistRepository struct {
	db *gorm.DB
}

func NewWishlistRepository(db *gorm.DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

func (r *WishlistRepository) List(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Add returns ErrDuplicate when the pair is already present and ErrNotFound
// for an unknown product.
func (r *WishlistRepository) Add(ctx context.Context, userID, productID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Product{}, productID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		var n int64
		if err := tx.Model(&models.WishlistItem{}).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicate
		}
		return duplicate(tx.Omit("Product").Create(&models.WishlistItem{UserID: userID, ProductID: productID}).Error)
	})
}

func (r *WishlistRepository) Remove(ctx context.Context, userID, productID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) ListForProduct(ctx context.Context, productID string, approvedOnly bool) ([]models.Review, error) {
	q := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if approvedOnly {
		q = q.Where("approved = ?", true)
	}
	var reviews []models.Review
	if err := q.Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *ReviewRepository) ListPending(ctx context.Context) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.db.WithContext(ctx).Where("approved = ?", false).Order("created_at").Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *ReviewRepository) Create(ctx context.Context, rev *models.Review) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Product{}, rev.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return duplicate(db.Create(rev).Error)
}

func (r *ReviewRepository) Approve(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Review{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return db.Model(&models.Review{}).Where("id = ?", id).Update("approved", true).Error
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(r.db.WithContext(ctx), &models.Review{}, id)
}

type NewsletterRepository struct {
	db *gorm.DB
}

func NewNewsletterRepository(db *gorm.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

// Subscribe is idempotent. It reports whether the address was new.
func (r *NewsletterRepository) Subscribe(ctx context.Context, email string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.NewsletterSubscriber{Email: strings.ToLower(email)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *NewsletterRepository) Unsubscribe(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Delete(&models.NewsletterSubscriber{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NewsletterRepository) List(ctx context.Context) ([]models.NewsletterSubscriber, error) {
	var subs []models.NewsletterSubscriber
	if err := r.db.WithContext(ctx).Order("created_at").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert records the identity presented by the auth provider.
func (r *UserRepository) Upsert(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "is_admin", "updated_at"}),
	}).Create(u).Error
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
