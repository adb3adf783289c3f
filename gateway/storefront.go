package gateway

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/shop"
	"github.com/example/storefront/pkg/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (g *Gateway) listProducts(c *gin.Context) {
	products, err := g.services.Catalog.ListProducts(c.Request.Context(), c.Query("category"), c.Query("q"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) getProduct(c *gin.Context) {
	view, err := g.services.Catalog.ProductPage(c.Request.Context(), c.Param("slug"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) listCategories(c *gin.Context) {
	cats, err := g.services.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (g *Gateway) listPosts(c *gin.Context) {
	posts, err := g.services.Content.Posts(c.Request.Context(), true)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (g *Gateway) getPost(c *gin.Context) {
	post, err := g.services.Content.PublishedPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (g *Gateway) listFAQ(c *gin.Context) {
	faqs, err := g.services.Content.FAQ(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, faqs)
}

func (g *Gateway) publicSettings(c *gin.Context) {
	s, err := g.services.Content.Settings(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (g *Gateway) serveImage(c *gin.Context) {
	rc, contentType, err := g.services.Images.Open(c.Request.Context(), c.Param("key"))
	if errors.Is(err, storage.ErrImageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image introuvable"})
		return
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	c.Header("Content-Type", contentType)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		g.logger.Warn("Failed to stream image", zap.String("key", c.Param("key")), zap.Error(err))
	}
}

func (g *Gateway) trackOrder(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	email := strings.TrimSpace(c.Query("email"))
	if id == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Numéro de commande et e-mail requis"})
		return
	}
	order, err := g.services.Orders.Track(c.Request.Context(), id, email)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) quote(c *gin.Context) {
	var in shop.CheckoutInput
	if !bind(c, &in, false) {
		return
	}
	q, err := g.services.Checkout.Quote(c.Request.Context(), &in)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (g *Gateway) checkout(c *gin.Context) {
	var in shop.CheckoutInput
	if !bind(c, &in, false) {
		return
	}
	if id := auth.FromContext(c); id != nil {
		in.UserID = &id.UserID
	}

	res, err := g.services.Checkout.Checkout(c.Request.Context(), &in)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (g *Gateway) subscribe(c *gin.Context) {
	var in shop.NewsletterInput
	if !bind(c, &in, false) {
		return
	}
	if err := g.services.Community.Subscribe(c.Request.Context(), &in); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) unsubscribe(c *gin.Context) {
	var in shop.NewsletterInput
	if !bind(c, &in, false) {
		return
	}
	if err := g.services.Community.Unsubscribe(c.Request.Context(), &in); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) createReview(c *gin.Context) {
	var in shop.ReviewInput
	if !bind(c, &in, false) {
		return
	}
	id := auth.FromContext(c)
	author := id.Name
	if author == "" {
		author = id.Email
	}
	review, err := g.services.Community.CreateReview(c.Request.Context(), id.UserID, author, &in)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (g *Gateway) listWishlist(c *gin.Context) {
	items, err := g.services.Community.Wishlist(c.Request.Context(), auth.FromContext(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}

func (g *Gateway) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if !bind(c, &req, false) {
		return
	}
	if err := g.services.Community.AddToWishlist(c.Request.Context(), auth.FromContext(c).UserID, req.ProductID); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (g *Gateway) removeFromWishlist(c *gin.Context) {
	if err := g.services.Community.RemoveFromWishlist(c.Request.Context(), auth.FromContext(c).UserID, c.Param("productId")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
