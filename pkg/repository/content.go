package repository

import (
	"context"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) ListPosts(ctx context.Context, publishedOnly bool) ([]models.BlogPost, error) {
	q := r.db.WithContext(ctx).Model(&models.BlogPost{})
	if publishedOnly {
		q = q.Where("published = ?", true).Order("published_at DESC")
	} else {
		q = q.Order("created_at DESC")
	}
	var posts []models.BlogPost
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *ContentRepository) GetPost(ctx context.Context, id string) (*models.BlogPost, error) {
	var p models.BlogPost
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ContentRepository) GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var p models.BlogPost
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ContentRepository) CreatePost(ctx context.Context, p *models.BlogPost) error {
	return duplicate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *ContentRepository) UpdatePost(ctx context.Context, p *models.BlogPost) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.BlogPost{}, p.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return duplicate(db.Model(&models.BlogPost{}).Where("id = ?", p.ID).
		Select("title", "slug", "excerpt", "content", "cover_image", "published", "published_at").
		Updates(p).Error)
}

func (r *ContentRepository) DeletePost(ctx context.Context, id string) error {
	return deleteByID(r.db.WithContext(ctx), &models.BlogPost{}, id)
}

func (r *ContentRepository) PostSlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	return SlugTaken(r.db.WithContext(ctx), &models.BlogPost{}, slug, excludeID)
}

func (r *ContentRepository) ListFAQ(ctx context.Context) ([]models.FAQ, error) {
	var faqs []models.FAQ
	if err := r.db.WithContext(ctx).Order("position, created_at").Find(&faqs).Error; err != nil {
		return nil, err
	}
	return faqs, nil
}

func (r *ContentRepository) CreateFAQ(ctx context.Context, f *models.FAQ) error {
	db := r.db.WithContext(ctx)
	if f.Position == 0 {
		pos, err := nextPosition(db, &models.FAQ{})
		if err != nil {
			return err
		}
		f.Position = pos
	}
	return db.Create(f).Error
}

func (r *ContentRepository) UpdateFAQ(ctx context.Context, f *models.FAQ) error {
	db := r.db.WithContext(ctx)
	ok, err := exists(db, &models.FAQ{}, f.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return db.Model(&models.FAQ{}).Where("id = ?", f.ID).Select("question", "answer").Updates(f).Error
}

func (r *ContentRepository) DeleteFAQ(ctx context.Context, id string) error {
	return deleteByID(r.db.WithContext(ctx), &models.FAQ{}, id)
}

func (r *ContentRepository) ReorderFAQ(ctx context.Context, ids []string) error {
	return reorder(r.db.WithContext(ctx), &models.FAQ{}, ids)
}

func deleteByID(db *gorm.DB, model interface{}, id string) error {
	res := db.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
