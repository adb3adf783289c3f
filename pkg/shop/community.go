package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewInput struct {
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type NewsletterInput struct {
	Email string `json:"email" validate:"required,email,max=200"`
}

// CommunityService holds the customer-owned data: wishlists, reviews and
// newsletter subscriptions.
type CommunityService struct {
	wishlist   WishlistRepository
	reviews    ReviewRepository
	newsletter NewsletterRepository
	logger     *zap.Logger
}

func NewCommunityService(wishlist WishlistRepository, reviews ReviewRepository, newsletter NewsletterRepository, logger *zap.Logger) *CommunityService {
	return &CommunityService{
		wishlist:   wishlist,
		reviews:    reviews,
		newsletter: newsletter,
		logger:     logger.Named("community"),
	}
}

func (s *CommunityService) Wishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	items, err := s.wishlist.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	return items, nil
}

func (s *CommunityService) AddToWishlist(ctx context.Context, userID, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return invalid("productId", "Le champ productId est requis")
	}
	err := s.wishlist.Add(ctx, userID, productID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("Produit")
	case errors.Is(err, repository.ErrDuplicate):
		return conflict("Ce produit est déjà dans votre liste d'envies")
	}
	return storeErr(err, "Produit", "add to wishlist")
}

func (s *CommunityService) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	if err := s.wishlist.Remove(ctx, userID, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Produit de la liste d'envies")
		}
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

// CreateReview records a review awaiting moderation.
func (s *CommunityService) CreateReview(ctx context.Context, userID, authorName string, in *ReviewInput) (*models.Review, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	r := &models.Review{
		ID:         uuid.NewString(),
		ProductID:  in.ProductID,
		UserID:     userID,
		AuthorName: strings.TrimSpace(authorName),
		Rating:     in.Rating,
		Comment:    in.Comment,
	}
	err := s.reviews.Create(ctx, r)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict("Vous avez déjà donné votre avis sur ce produit")
	}
	if err != nil {
		return nil, storeErr(err, "Produit", "create review")
	}
	s.logger.Info("Review submitted", zap.String("review_id", r.ID), zap.String("product_id", r.ProductID))
	return r, nil
}

func (s *CommunityService) PendingReviews(ctx context.Context) ([]models.Review, error) {
	reviews, err := s.reviews.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	return reviews, nil
}

func (s *CommunityService) ApproveReview(ctx context.Context, id string) error {
	return storeErr(s.reviews.Approve(ctx, id), "Avis", "approve review")
}

func (s *CommunityService) DeleteReview(ctx context.Context, id string) error {
	return storeErr(s.reviews.Delete(ctx, id), "Avis", "delete review")
}

// Subscribe is idempotent: subscribing twice is not an error.
func (s *CommunityService) Subscribe(ctx context.Context, in *NewsletterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return err
	}
	created, err := s.newsletter.Subscribe(ctx, in.Email)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if created {
		s.logger.Info("Newsletter subscription")
	}
	return nil
}

func (s *CommunityService) Unsubscribe(ctx context.Context, in *NewsletterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return err
	}
	return storeErr(s.newsletter.Unsubscribe(ctx, in.Email), "Abonnement", "unsubscribe")
}

func (s *CommunityService) Subscribers(ctx context.Context) ([]models.NewsletterSubscriber, error) {
	subs, err := s.newsletter.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}
