package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

// SettingsCache is the read-through cache for the settings row.
type SettingsCache interface {
	GetSettings(ctx context.Context) (*models.ShopSettings, error)
	CacheSettings(ctx context.Context, s *models.ShopSettings) error
	InvalidateSettings(ctx context.Context) error
}

type SettingsRepository struct {
	db    *gorm.DB
	cache SettingsCache
	// stale is set when an update could not drop the cached row. Reads skip
	// the cache until a fresh copy is written back.
	stale atomic.Bool
}

// NewSettingsRepository takes an optional cache; nil disables caching.
func NewSettingsRepository(db *gorm.DB, cache SettingsCache) *SettingsRepository {
	return &SettingsRepository{db: db, cache: cache}
}

func (r *SettingsRepository) Get(ctx context.Context) (*models.ShopSettings, error) {
	if r.cache != nil && !r.stale.Load() {
		if s, err := r.cache.GetSettings(ctx); err == nil {
			return s, nil
		}
	}

	s := models.ShopSettings{ID: models.ShopSettingsID, PickupEnabled: true}
	err := r.db.WithContext(ctx).FirstOrCreate(&s, models.ShopSettings{ID: models.ShopSettingsID}).Error
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.CacheSettings(ctx, &s); err == nil {
			r.stale.Store(false)
		}
	}
	return &s, nil
}

// Update saves the row. A cache that cannot be invalidated does not fail the
// update; the next Get reads MySQL and rewrites the cache.
func (r *SettingsRepository) Update(ctx context.Context, s *models.ShopSettings) error {
	s.ID = models.ShopSettingsID
	s.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Save(s).Error
	if err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.InvalidateSettings(ctx); err != nil {
			r.stale.Store(true)
		}
	}
	return nil
}
