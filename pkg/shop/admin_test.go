package shop

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.coupons.Create(ctx, &CouponInput{
		Code:          " ete2024 ",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		Active:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ETE2024", c.Code)

	_, err = f.coupons.Create(ctx, &CouponInput{Code: "ETE2024", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrConflict)

	invalidInputs := map[string]*CouponInput{
		"code":          {DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5)},
		"discountType":  {Code: "X", DiscountType: "GIFT", DiscountValue: decimal.NewFromInt(5)},
		"discountValue": {Code: "X", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(120)},
		"maxUses":       {Code: "X", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5), MaxUses: new(int)},
	}
	for field, in := range invalidInputs {
		_, err := f.coupons.Create(ctx, in)
		var verr *ValidationError
		if assert.ErrorAs(t, err, &verr, field) {
			assert.Equal(t, field, verr.Field)
		}
	}

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.coupons.Update(ctx, c.ID, &CouponInput{
		Code:          "ETE2024",
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(7),
		ExpiresAt:     &expires,
	})
	require.NoError(t, err)

	list, err := f.coupons.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.DiscountFixed, list[0].DiscountType)
	assert.False(t, list[0].Active)

	_, err = f.coupons.Update(ctx, "missing", &CouponInput{Code: "Z", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.coupons.Delete(ctx, c.ID))
	assert.ErrorIs(t, f.coupons.Delete(ctx, c.ID), ErrNotFound)
}

func TestContentService_Posts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	f.content.now = func() time.Time { return now }

	draft, err := f.content.CreatePost(ctx, &PostInput{Title: "Nos savons d'été", Content: "Bientôt"})
	require.NoError(t, err)
	assert.Equal(t, "nos-savons-d-ete", draft.Slug)
	assert.Nil(t, draft.PublishedAt)

	_, err = f.content.PublishedPost(ctx, draft.Slug)
	assert.ErrorIs(t, err, ErrNotFound)

	published, err := f.content.UpdatePost(ctx, draft.ID, &PostInput{Title: "Nos savons d'été", Content: "Ils arrivent", Published: true})
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, published.PublishedAt.Equal(now))

	got, err := f.content.PublishedPost(ctx, draft.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Ils arrivent", got.Content)

	other, err := f.content.CreatePost(ctx, &PostInput{Title: "Nos savons d’été !", Content: "Doublon"})
	require.NoError(t, err)
	assert.Equal(t, "nos-savons-d-ete-2", other.Slug)

	posts, err := f.content.Posts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	_, err = f.content.CreatePost(ctx, &PostInput{Title: "Sans contenu"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)

	require.NoError(t, f.content.DeletePost(ctx, other.ID))
	assert.ErrorIs(t, f.content.DeletePost(ctx, other.ID), ErrNotFound)
}

func TestContentService_FAQ(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		q, err := f.content.CreateFAQ(ctx, &FAQInput{Question: fmt.Sprintf("Question %d ?", i), Answer: "Oui."})
		require.NoError(t, err)
		ids = append(ids, q.ID)
	}

	require.NoError(t, f.content.ReorderFAQ(ctx, []string{ids[2], ids[0], ids[1]}))
	faqs, err := f.content.FAQ(ctx)
	require.NoError(t, err)
	require.Len(t, faqs, 3)
	assert.Equal(t, "Question 3 ?", faqs[0].Question)
	assert.Equal(t, "Question 2 ?", faqs[2].Question)

	_, err = f.content.UpdateFAQ(ctx, "missing", &FAQInput{Question: "Q ?", Answer: "R."})
	assert.ErrorIs(t, err, ErrNotFound)

	var verr *ValidationError
	assert.ErrorAs(t, f.content.ReorderFAQ(ctx, nil), &verr)
}

func TestContentService_Settings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.content.UpdateSettings(ctx, &SettingsInput{ShippingFee: decimal.NewFromInt(5), PickupEnabled: true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pickupAddress", verr.Field)

	_, err = f.content.UpdateSettings(ctx, &SettingsInput{ShippingFee: decimal.NewFromInt(-5)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shippingFee", verr.Field)

	threshold := decimal.NewFromInt(60)
	_, err = f.content.UpdateSettings(ctx, &SettingsInput{
		ShippingFee:           decimal.RequireFromString("4.90"),
		FreeShippingThreshold: &threshold,
		ContactEmail:          "contact@example.com",
	})
	require.NoError(t, err)

	s, err := f.content.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4.90", s.ShippingFee.StringFixed(2))
	assert.False(t, s.PickupEnabled)
	assert.Equal(t, "contact@example.com", s.ContactEmail)
}

func TestCommunityService_Wishlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "9.00", 1, true)

	require.NoError(t, f.community.AddToWishlist(ctx, "user-1", p.ID))
	assert.ErrorIs(t, f.community.AddToWishlist(ctx, "user-1", p.ID), ErrConflict)
	assert.ErrorIs(t, f.community.AddToWishlist(ctx, "user-1", "missing"), ErrNotFound)
	require.NoError(t, f.community.AddToWishlist(ctx, "user-2", p.ID))

	items, err := f.community.Wishlist(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, p.Name, items[0].Product.Name)

	require.NoError(t, f.community.RemoveFromWishlist(ctx, "user-1", p.ID))
	assert.ErrorIs(t, f.community.RemoveFromWishlist(ctx, "user-1", p.ID), ErrNotFound)
}

func TestCommunityService_Reviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "9.00", 1, true)

	_, err := f.community.CreateReview(ctx, "user-1", "Jeanne", &ReviewInput{ProductID: p.ID, Rating: 6})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rating", verr.Field)

	r, err := f.community.CreateReview(ctx, "user-1", "Jeanne", &ReviewInput{ProductID: p.ID, Rating: 5, Comment: " Parfait "})
	require.NoError(t, err)
	assert.False(t, r.Approved)
	assert.Equal(t, "Parfait", r.Comment)

	_, err = f.community.CreateReview(ctx, "user-1", "Jeanne", &ReviewInput{ProductID: p.ID, Rating: 3})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.community.CreateReview(ctx, "user-1", "Jeanne", &ReviewInput{ProductID: "missing", Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := f.community.PendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.community.ApproveReview(ctx, r.ID))
	pending, err = f.community.PendingReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, f.community.DeleteReview(ctx, r.ID))
	assert.ErrorIs(t, f.community.ApproveReview(ctx, r.ID), ErrNotFound)
}

func TestCommunityService_Newsletter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.community.Subscribe(ctx, &NewsletterInput{Email: "Jeanne@Example.com"}))
	require.NoError(t, f.community.Subscribe(ctx, &NewsletterInput{Email: "jeanne@example.com"}))

	subs, err := f.community.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "jeanne@example.com", subs[0].Email)

	var verr *ValidationError
	assert.ErrorAs(t, f.community.Subscribe(ctx, &NewsletterInput{Email: "nope"}), &verr)

	require.NoError(t, f.community.Unsubscribe(ctx, &NewsletterInput{Email: "jeanne@example.com"}))
	assert.ErrorIs(t, f.community.Unsubscribe(ctx, &NewsletterInput{Email: "jeanne@example.com"}), ErrNotFound)
}

func TestActionResult(t *testing.T) {
	assert.Equal(t, ActionResult{Success: true, Data: "x"}, OK("x"))
	assert.Equal(t, "Produit introuvable", Failed(notFound("Produit")).Error)
	assert.Equal(t, "Code promo existe déjà", Failed(conflict("Code promo existe déjà")).Error)
	assert.Equal(t, InternalErrorMessage, Failed(errors.New("dial tcp: refused")).Error)
	assert.Equal(t, InternalErrorMessage, Failed(fmt.Errorf("failed to list: %w", errors.New("boom"))).Error)
	assert.False(t, Failed(invalid("name", "Nom requis")).Success)
}
