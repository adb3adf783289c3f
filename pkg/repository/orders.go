package repository

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

type OrderFilter struct {
	Status *models.OrderStatus
	From   *time.Time
	To     *time.Time
	Email  string
	Limit  int
	Offset int
}

// StockShortfall is a line whose stock could not be decremented at payment.
type StockShortfall struct {
	ProductID string
	VariantID *string
	Quantity  int
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items. When couponID is set, the coupon
// usage counter is incremented in the same transaction, only while it stays
// under max_uses; otherwise nothing is written and ErrCouponExhausted is
// returned.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, couponID *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if couponID != nil {
			res := tx.Model(&models.Coupon{}).
				Where("id = ? AND active = ? AND (max_uses IS NULL OR current_uses < max_uses)", *couponID, true).
				Update("current_uses", gorm.Expr("current_uses + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrCouponExhausted
			}
		}
		return tx.Create(order).Error
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	if f.Email != "" {
		q = q.Where("customer_email = ?", f.Email)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).Order("created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{"payment_session_id": sessionID, "updated_at": time.Now()}).Error
}

// UpdateStatus moves the order from -> to only if it is still in from. With
// restock, the lines taken out of stock at payment are given back in the same
// transaction; lines short at payment are left alone.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, restock bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casStatus(tx, id, from, to); err != nil {
			return err
		}
		if !restock {
			return nil
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ? AND stock_taken = ?", id, true).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			if err := adjustStock(tx, item, item.Quantity); err != nil {
				return err
			}
			if err := setStockTaken(tx, item.ID, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// Abandon cancels a PENDING order whose payment session could not be opened
// and gives its coupon use back.
func (r *OrderRepository) Abandon(ctx context.Context, id string, couponCode *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casStatus(tx, id, models.OrderStatusPending, models.OrderStatusCancelled); err != nil {
			return err
		}
		if couponCode == nil {
			return nil
		}
		return tx.Model(&models.Coupon{}).
			Where("code = ? AND current_uses > 0", *couponCode).
			Update("current_uses", gorm.Expr("current_uses - 1")).Error
	})
}

// MarkPaid moves a PENDING order to PAID and takes its lines out of stock.
// Lines without enough stock are left untouched and reported back.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string) ([]StockShortfall, error) {
	var shortfalls []StockShortfall
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casStatus(tx, id, models.OrderStatusPending, models.OrderStatusPaid); err != nil {
			return err
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", id).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			res := stockQuery(tx, item).
				Where("stock >= ?", item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				shortfalls = append(shortfalls, StockShortfall{
					ProductID: item.ProductID,
					VariantID: item.VariantID,
					Quantity:  item.Quantity,
				})
				continue
			}
			if err := setStockTaken(tx, item.ID, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shortfalls, nil
}

func (r *OrderRepository) UpdateTracking(ctx context.Context, id, number, carrier, url string) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Order{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"tracking_number":  nullable(number),
		"tracking_carrier": nullable(carrier),
		"tracking_url":     nullable(url),
		"updated_at":       time.Now(),
	}).Error
}

func casStatus(tx *gorm.DB, id string, from, to models.OrderStatus) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func stockQuery(tx *gorm.DB, item models.OrderItem) *gorm.DB {
	if item.VariantID != nil {
		return tx.Model(&models.Variant{}).Where("id = ?", *item.VariantID)
	}
	return tx.Model(&models.Product{}).Where("id = ?", item.ProductID)
}

func adjustStock(tx *gorm.DB, item models.OrderItem, delta int) error {
	return stockQuery(tx, item).Update("stock", gorm.Expr("stock + ?", delta)).Error
}

func setStockTaken(tx *gorm.DB, itemID uint, taken bool) error {
	return tx.Model(&models.OrderItem{}).Where("id = ?", itemID).Update("stock_taken", taken).Error
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
