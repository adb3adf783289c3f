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

type PostInput struct {
	Title      string `json:"title" validate:"required,max=200"`
	Excerpt    string `json:"excerpt" validate:"max=500"`
	Content    string `json:"content" validate:"required"`
	CoverImage string `json:"coverImage,omitempty" validate:"max=100"`
	Published  bool   `json:"published"`
}

type FAQInput struct {
	Question string `json:"question" validate:"required,max=300"`
	Answer   string `json:"answer" validate:"required"`
}

type SettingsInput struct {
	ShippingFee           decimal.Decimal  `json:"shippingFee"`
	FreeShippingThreshold *decimal.Decimal `json:"freeShippingThreshold,omitempty"`
	PickupEnabled         bool             `json:"pickupEnabled"`
	PickupAddress         string           `json:"pickupAddress" validate:"max=300"`
	ContactEmail          string           `json:"contactEmail" validate:"omitempty,email,max=200"`
}

// ContentService covers the blog, the FAQ and the shop settings.
type ContentService struct {
	content  ContentRepository
	settings SettingsRepository
	now      clock
}

func NewContentService(content ContentRepository, settings SettingsRepository) *ContentService {
	return &ContentService{content: content, settings: settings, now: time.Now}
}

func (s *ContentService) Posts(ctx context.Context, publishedOnly bool) ([]models.BlogPost, error) {
	posts, err := s.content.ListPosts(ctx, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// PublishedPost resolves a post for the storefront; drafts are not found.
func (s *ContentService) PublishedPost(ctx context.Context, slug string) (*models.BlogPost, error) {
	p, err := s.content.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, storeErr(err, "Article", "load post")
	}
	if !p.Published {
		return nil, notFound("Article")
	}
	return p, nil
}

func (s *ContentService) GetPost(ctx context.Context, id string) (*models.BlogPost, error) {
	p, err := s.content.GetPost(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Article", "load post")
	}
	return p, nil
}

func (in *PostInput) check() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	in.Content = strings.TrimSpace(in.Content)
	return validateInput(in)
}

func (s *ContentService) CreatePost(ctx context.Context, in *PostInput) (*models.BlogPost, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	slug, err := UniqueSlug(ctx, in.Title, "", s.content.PostSlugTaken)
	if err != nil {
		return nil, err
	}
	p := &models.BlogPost{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Slug:       slug,
		Excerpt:    in.Excerpt,
		Content:    in.Content,
		CoverImage: in.CoverImage,
	}
	s.publish(p, in.Published)
	if err := s.content.CreatePost(ctx, p); err != nil {
		return nil, storeErr(err, "Article", "create post")
	}
	return p, nil
}

func (s *ContentService) UpdatePost(ctx context.Context, id string, in *PostInput) (*models.BlogPost, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != p.Title {
		slug, err := UniqueSlug(ctx, in.Title, id, s.content.PostSlugTaken)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
	}
	p.Title = in.Title
	p.Excerpt = in.Excerpt
	p.Content = in.Content
	p.CoverImage = in.CoverImage
	s.publish(p, in.Published)
	if err := s.content.UpdatePost(ctx, p); err != nil {
		return nil, storeErr(err, "Article", "update post")
	}
	return p, nil
}

// publish stamps the first publication date and clears it on unpublish.
func (s *ContentService) publish(p *models.BlogPost, published bool) {
	p.Published = published
	switch {
	case !published:
		p.PublishedAt = nil
	case p.PublishedAt == nil:
		now := s.now()
		p.PublishedAt = &now
	}
}

func (s *ContentService) DeletePost(ctx context.Context, id string) error {
	return storeErr(s.content.DeletePost(ctx, id), "Article", "delete post")
}

func (s *ContentService) FAQ(ctx context.Context) ([]models.FAQ, error) {
	faqs, err := s.content.ListFAQ(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list faq: %w", err)
	}
	return faqs, nil
}

func (in *FAQInput) check() error {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	return validateInput(in)
}

func (s *ContentService) CreateFAQ(ctx context.Context, in *FAQInput) (*models.FAQ, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	f := &models.FAQ{ID: uuid.NewString(), Question: in.Question, Answer: in.Answer}
	if err := s.content.CreateFAQ(ctx, f); err != nil {
		return nil, storeErr(err, "Question", "create faq")
	}
	return f, nil
}

func (s *ContentService) UpdateFAQ(ctx context.Context, id string, in *FAQInput) (*models.FAQ, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	f := &models.FAQ{ID: id, Question: in.Question, Answer: in.Answer}
	if err := s.content.UpdateFAQ(ctx, f); err != nil {
		return nil, storeErr(err, "Question", "update faq")
	}
	return f, nil
}

func (s *ContentService) DeleteFAQ(ctx context.Context, id string) error {
	return storeErr(s.content.DeleteFAQ(ctx, id), "Question", "delete faq")
}

func (s *ContentService) ReorderFAQ(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return invalid("ids", "Aucune question à réordonner")
	}
	return storeErr(s.content.ReorderFAQ(ctx, ids), "Question", "reorder faq")
}

func (s *ContentService) Settings(ctx context.Context) (*models.ShopSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func (s *ContentService) UpdateSettings(ctx context.Context, in *SettingsInput) (*models.ShopSettings, error) {
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ShippingFee.IsNegative() {
		return nil, invalid("shippingFee", "Les frais de livraison ne peuvent pas être négatifs")
	}
	if in.FreeShippingThreshold != nil && in.FreeShippingThreshold.IsNegative() {
		return nil, invalid("freeShippingThreshold", "Le seuil de livraison gratuite ne peut pas être négatif")
	}
	if in.PickupEnabled && in.PickupAddress == "" {
		return nil, invalid("pickupAddress", "L'adresse de retrait est requise")
	}

	settings := &models.ShopSettings{
		ShippingFee:           in.ShippingFee.Round(2),
		FreeShippingThreshold: in.FreeShippingThreshold,
		PickupEnabled:         in.PickupEnabled,
		PickupAddress:         in.PickupAddress,
		ContactEmail:          in.ContactEmail,
	}
	if err := s.settings.Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return settings, nil
}
