package repository

import (
	"context"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

type ProductFilter struct {
	CategorySlug string
	ActiveOnly   bool
	Search       string
}

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position, name") })
}

func (r *CatalogRepository) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := r.withRelations(r.db.WithContext(ctx)).Model(&models.Product{})
	if f.ActiveOnly {
		q = q.Where("products.active = ?", true)
	}
	if f.CategorySlug != "" {
		q = q.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", f.CategorySlug)
	}
	if f.Search != "" {
		q = q.Where("products.name LIKE ?", "%"+f.Search+"%")
	}

	var products []models.Product
	if err := q.Order("products.created_at DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.withRelations(r.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *CatalogRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var p models.Product
	if err := r.withRelations(r.db.WithContext(ctx)).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindActiveProducts loads the active products among ids in one query,
// variants included.
func (r *CatalogRepository) FindActiveProducts(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id IN ? AND active = ?", ids, true).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	return duplicate(r.db.WithContext(ctx).Omit("Category", "Images", "Variants").Create(p).Error)
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Product{}, p.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	err = db.Model(&models.Product{}).Where("id = ?", p.ID).
		Select("name", "slug", "description", "price", "stock", "active", "category_id").
		Updates(p).Error
	return duplicate(err)
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.Variant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.WishlistItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *CatalogRepository) ProductSlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	return SlugTaken(r.db.WithContext(ctx), &models.Product{}, slug, excludeID)
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := r.db.WithContext(ctx).Order("position, name").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, c *models.Category) error {
	db := r.db.WithContext(ctx)
	if c.Position == 0 {
		pos, err := nextPosition(db, &models.Category{})
		if err != nil {
			return err
		}
		c.Position = pos
	}
	return duplicate(db.Create(c).Error)
}

func (r *CatalogRepository) UpdateCategory(ctx context.Context, c *models.Category) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Category{}, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return duplicate(db.Model(&models.Category{}).Where("id = ?", c.ID).
		Select("name", "slug").Updates(c).Error)
}

// DeleteCategory refuses to remove a category that products still point to.
func (r *CatalogRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		res := tx.Where("id = ?", id).Delete(&models.Category{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *CatalogRepository) CategorySlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	return SlugTaken(r.db.WithContext(ctx), &models.Category{}, slug, excludeID)
}

// ReorderCategories assigns positions following ids, all or nothing.
func (r *CatalogRepository) ReorderCategories(ctx context.Context, ids []string) error {
	return reorder(r.db.WithContext(ctx), &models.Category{}, ids)
}

func (r *CatalogRepository) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	var v models.Variant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *CatalogRepository) CreateVariant(ctx context.Context, v *models.Variant) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Product{}, v.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return db.Create(v).Error
}

func (r *CatalogRepository) UpdateVariant(ctx context.Context, v *models.Variant) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Variant{}, v.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return db.Model(&models.Variant{}).Where("id = ?", v.ID).
		Select("name", "price", "stock", "active", "position").Updates(v).Error
}

func (r *CatalogRepository) DeleteVariant(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Variant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) AddProductImage(ctx context.Context, img *models.ProductImage) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.Product{}, img.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return db.Create(img).Error
}

func (r *CatalogRepository) DeleteProductImage(ctx context.Context, productID, key string) error {
	res := r.db.WithContext(ctx).Where("product_id = ? AND storage_key = ?", productID, key).Delete(&models.ProductImage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func nextPosition(db *gorm.DB, model interface{}) (int, error) {
	var max int
	if err := db.Model(model).Select("COALESCE(MAX(position), -1)").Row().Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

func reorder(db *gorm.DB, model interface{}, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(model).Where("id IN ?", ids).Count(&n).Error; err != nil {
			return err
		}
		if int(n) != len(seen) || len(seen) != len(ids) {
			return ErrNotFound
		}
		for i, id := range ids {
			if err := tx.Model(model).Where("id = ?", id).Update("position", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
