package shop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=10000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Active      bool            `json:"active"`
	CategoryID  *string         `json:"categoryId,omitempty"`
}

type VariantInput struct {
	Name     string           `json:"name" validate:"required,max=100"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Stock    int              `json:"stock" validate:"gte=0"`
	Active   bool             `json:"active"`
	Position int              `json:"position" validate:"gte=0"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ProductView is a product page: active variants, approved reviews and the
// stock flag the storefront shows.
type ProductView struct {
	models.Product
	OutOfStock    bool            `json:"outOfStock"`
	Reviews       []models.Review `json:"reviews"`
	AverageRating float64         `json:"averageRating"`
}

type CatalogService struct {
	catalog CatalogRepository
	reviews ReviewRepository
	images  ImageStore
	logger  *zap.Logger
}

func NewCatalogService(catalog CatalogRepository, reviews ReviewRepository, images ImageStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		reviews: reviews,
		images:  images,
		logger:  logger.Named("catalog"),
	}
}

// ListProducts is the storefront listing, optionally narrowed to a category.
func (s *CatalogService) ListProducts(ctx context.Context, categorySlug, search string) ([]models.Product, error) {
	products, err := s.catalog.ListProducts(ctx, repository.ProductFilter{
		CategorySlug: strings.TrimSpace(categorySlug),
		Search:       strings.TrimSpace(search),
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	for i := range products {
		products[i].Variants = activeVariants(products[i].Variants)
	}
	return products, nil
}

// ProductPage resolves an active product by slug.
func (s *CatalogService) ProductPage(ctx context.Context, slug string) (*ProductView, error) {
	p, err := s.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, storeErr(err, "Produit", "load product")
	}
	if !p.Active {
		return nil, notFound("Produit")
	}
	p.Variants = activeVariants(p.Variants)

	reviews, err := s.reviews.ListForProduct(ctx, p.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews of %s: %w", p.ID, err)
	}

	view := &ProductView{Product: *p, OutOfStock: p.IsOutOfStock(), Reviews: reviews}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		view.AverageRating = float64(sum) / float64(len(reviews))
	}
	return view, nil
}

func activeVariants(all []models.Variant) []models.Variant {
	out := make([]models.Variant, 0, len(all))
	for _, v := range all {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}

// AdminProducts lists every product, inactive ones included.
func (s *CatalogService) AdminProducts(ctx context.Context, search string) ([]models.Product, error) {
	products, err := s.catalog.ListProducts(ctx, repository.ProductFilter{Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Produit", "load product")
	}
	return p, nil
}

func (s *CatalogService) checkProduct(ctx context.Context, in *ProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return invalid("price", "Le prix ne peut pas être négatif")
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		in.CategoryID = nil
	}
	if in.CategoryID != nil {
		if _, err := s.catalog.GetCategory(ctx, *in.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return invalid("categoryId", "Catégorie inconnue")
			}
			return fmt.Errorf("failed to load category: %w", err)
		}
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in *ProductInput) (*models.Product, error) {
	if err := s.checkProduct(ctx, in); err != nil {
		return nil, err
	}
	slug, err := UniqueSlug(ctx, in.Name, "", s.catalog.ProductSlugTaken)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        slug,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		Active:      in.Active,
		CategoryID:  in.CategoryID,
	}
	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		return nil, storeErr(err, "Produit", "create product")
	}
	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

// UpdateProduct keeps the slug unless the name changed.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in *ProductInput) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkProduct(ctx, in); err != nil {
		return nil, err
	}
	if in.Name != p.Name {
		slug, err := UniqueSlug(ctx, in.Name, id, s.catalog.ProductSlugTaken)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
	}

	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.Stock = in.Stock
	p.Active = in.Active
	p.CategoryID = in.CategoryID
	if err := s.catalog.UpdateProduct(ctx, p); err != nil {
		return nil, storeErr(err, "Produit", "update product")
	}
	return p, nil
}

// DeleteProduct removes the product and then its stored images. Images left
// behind in storage are only logged.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return storeErr(err, "Produit", "delete product")
	}
	for _, img := range p.Images {
		s.deleteBlob(ctx, img.StorageKey)
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func (s *CatalogService) checkVariant(in *VariantInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return err
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return invalid("price", "Le prix ne peut pas être négatif")
		}
		rounded := in.Price.Round(2)
		in.Price = &rounded
	}
	return nil
}

func (s *CatalogService) CreateVariant(ctx context.Context, productID string, in *VariantInput) (*models.Variant, error) {
	if err := s.checkVariant(in); err != nil {
		return nil, err
	}
	v := &models.Variant{
		ID:        uuid.NewString(),
		ProductID: productID,
		Name:      in.Name,
		Price:     in.Price,
		Stock:     in.Stock,
		Active:    in.Active,
		Position:  in.Position,
	}
	if err := s.catalog.CreateVariant(ctx, v); err != nil {
		return nil, storeErr(err, "Produit", "create variant")
	}
	return v, nil
}

func (s *CatalogService) UpdateVariant(ctx context.Context, id string, in *VariantInput) (*models.Variant, error) {
	v, err := s.catalog.GetVariant(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Variante", "load variant")
	}
	if err := s.checkVariant(in); err != nil {
		return nil, err
	}
	v.Name = in.Name
	v.Price = in.Price
	v.Stock = in.Stock
	v.Active = in.Active
	v.Position = in.Position
	if err := s.catalog.UpdateVariant(ctx, v); err != nil {
		return nil, storeErr(err, "Variante", "update variant")
	}
	return v, nil
}

func (s *CatalogService) DeleteVariant(ctx context.Context, id string) error {
	return storeErr(s.catalog.DeleteVariant(ctx, id), "Variante", "delete variant")
}

func (s *CatalogService) CreateCategory(ctx context.Context, in *CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	slug, err := UniqueSlug(ctx, in.Name, "", s.catalog.CategorySlugTaken)
	if err != nil {
		return nil, err
	}
	c := &models.Category{ID: uuid.NewString(), Name: in.Name, Slug: slug}
	if err := s.catalog.CreateCategory(ctx, c); err != nil {
		return nil, storeErr(err, "Catégorie", "create category")
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in *CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := s.catalog.GetCategory(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Catégorie", "load category")
	}
	if in.Name != c.Name {
		slug, err := UniqueSlug(ctx, in.Name, id, s.catalog.CategorySlugTaken)
		if err != nil {
			return nil, err
		}
		c.Slug = slug
	}
	c.Name = in.Name
	if err := s.catalog.UpdateCategory(ctx, c); err != nil {
		return nil, storeErr(err, "Catégorie", "update category")
	}
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	return storeErr(s.catalog.DeleteCategory(ctx, id), "Catégorie", "delete category")
}

func (s *CatalogService) ReorderCategories(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return invalid("ids", "Aucune catégorie à réordonner")
	}
	return storeErr(s.catalog.ReorderCategories(ctx, ids), "Catégorie", "reorder categories")
}

// UploadImage stores the picture and attaches it to the product. The stored
// object is removed again if the product cannot take it.
func (s *CatalogService) UploadImage(ctx context.Context, productID, filename, contentType string, r io.Reader) (*models.ProductImage, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalid("file", "Le fichier doit être une image")
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	key, err := s.images.Upload(ctx, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	img := &models.ProductImage{ProductID: productID, StorageKey: key}
	if err := s.catalog.AddProductImage(ctx, img); err != nil {
		s.deleteBlob(ctx, key)
		return nil, storeErr(err, "Produit", "attach image")
	}
	return img, nil
}

func (s *CatalogService) DeleteImage(ctx context.Context, productID, key string) error {
	if err := s.catalog.DeleteProductImage(ctx, productID, key); err != nil {
		return storeErr(err, "Image", "delete image")
	}
	s.deleteBlob(ctx, key)
	return nil
}

func (s *CatalogService) deleteBlob(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete stored image", zap.String("key", key), zap.Error(err))
	}
}
