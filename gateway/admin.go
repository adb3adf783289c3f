package gateway

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/shop"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	auditHistoryLimit = 100
)

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

func (g *Gateway) adminListOrders(c *gin.Context) {
	f, err := shop.ParseExportFilter(c.Query("status"), c.Query("from"), c.Query("to"))
	if err != nil {
		g.result(c, nil, err)
		return
	}
	f.Email = strings.ToLower(strings.TrimSpace(c.Query("email")))
	f.Limit = queryInt(c, "limit", defaultPageSize)
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = defaultPageSize
	}
	f.Offset = queryInt(c, "offset", 0)
	if f.Offset < 0 {
		f.Offset = 0
	}

	orders, total, err := g.services.Orders.List(c.Request.Context(), f)
	g.result(c, gin.H{"orders": orders, "total": total}, err)
}

func (g *Gateway) exportOrders(c *gin.Context) {
	f, err := shop.ParseExportFilter(c.Query("status"), c.Query("from"), c.Query("to"))
	if err != nil {
		g.result(c, nil, err)
		return
	}

	var buf bytes.Buffer
	n, err := g.services.Orders.ExportCSV(c.Request.Context(), &buf, f)
	if err != nil {
		g.result(c, nil, err)
		return
	}
	g.logger.Info("Orders exported", zap.Int("count", n), zap.String("actor", actor(c)))

	filename := fmt.Sprintf("commandes-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (g *Gateway) adminGetOrder(c *gin.Context) {
	order, err := g.services.Orders.Get(c.Request.Context(), c.Param("id"))
	g.result(c, order, err)
}

// orderHistory lists the audit trail of an order; empty when no audit store
// is configured.
func (g *Gateway) orderHistory(c *gin.Context) {
	if g.services.Audit == nil {
		g.result(c, []interface{}{}, nil)
		return
	}
	logs, err := g.services.Audit.GetAuditLogs(c.Request.Context(), c.Param("id"), auditHistoryLimit)
	g.result(c, logs, err)
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if !bind(c, &req, true) {
		return
	}
	order, err := g.services.Orders.Transition(c.Request.Context(), c.Param("id"), req.Status, actor(c))
	g.result(c, order, err)
}

func (g *Gateway) updateTracking(c *gin.Context) {
	var in shop.TrackingInput
	if !bind(c, &in, true) {
		return
	}
	err := g.services.Orders.UpdateTracking(c.Request.Context(), c.Param("id"), &in, actor(c))
	g.result(c, nil, err)
}

func (g *Gateway) adminListProducts(c *gin.Context) {
	products, err := g.services.Catalog.AdminProducts(c.Request.Context(), c.Query("q"))
	g.result(c, products, err)
}

func (g *Gateway) adminGetProduct(c *gin.Context) {
	p, err := g.services.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	g.result(c, p, err)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var in shop.ProductInput
	if !bind(c, &in, true) {
		return
	}
	p, err := g.services.Catalog.CreateProduct(c.Request.Context(), &in)
	g.result(c, p, err)
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var in shop.ProductInput
	if !bind(c, &in, true) {
		return
	}
	p, err := g.services.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), &in)
	g.result(c, p, err)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	g.result(c, nil, g.services.Catalog.DeleteProduct(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) createVariant(c *gin.Context) {
	var in shop.VariantInput
	if !bind(c, &in, true) {
		return
	}
	v, err := g.services.Catalog.CreateVariant(c.Request.Context(), c.Param("id"), &in)
	g.result(c, v, err)
}

func (g *Gateway) updateVariant(c *gin.Context) {
	var in shop.VariantInput
	if !bind(c, &in, true) {
		return
	}
	v, err := g.services.Catalog.UpdateVariant(c.Request.Context(), c.Param("id"), &in)
	g.result(c, v, err)
}

func (g *Gateway) deleteVariant(c *gin.Context) {
	g.result(c, nil, g.services.Catalog.DeleteVariant(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, shop.ActionResult{Error: "Fichier requis"})
		return
	}
	if fh.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, shop.ActionResult{Error: "Image trop volumineuse (5 Mo maximum)"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		g.result(c, nil, err)
		return
	}
	defer f.Close()

	img, err := g.services.Catalog.UploadImage(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
	g.result(c, img, err)
}

func (g *Gateway) deleteImage(c *gin.Context) {
	g.result(c, nil, g.services.Catalog.DeleteImage(c.Request.Context(), c.Param("id"), c.Param("key")))
}

func (g *Gateway) createCategory(c *gin.Context) {
	var in shop.CategoryInput
	if !bind(c, &in, true) {
		return
	}
	cat, err := g.services.Catalog.CreateCategory(c.Request.Context(), &in)
	g.result(c, cat, err)
}

func (g *Gateway) updateCategory(c *gin.Context) {
	var in shop.CategoryInput
	if !bind(c, &in, true) {
		return
	}
	cat, err := g.services.Catalog.UpdateCategory(c.Request.Context(), c.Param("id"), &in)
	g.result(c, cat, err)
}

func (g *Gateway) deleteCategory(c *gin.Context) {
	g.result(c, nil, g.services.Catalog.DeleteCategory(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) reorderCategories(c *gin.Context) {
	var req reorderRequest
	if !bind(c, &req, true) {
		return
	}
	g.result(c, nil, g.services.Catalog.ReorderCategories(c.Request.Context(), req.IDs))
}

func (g *Gateway) listCoupons(c *gin.Context) {
	coupons, err := g.services.Coupons.List(c.Request.Context())
	g.result(c, coupons, err)
}

func (g *Gateway) createCoupon(c *gin.Context) {
	var in shop.CouponInput
	if !bind(c, &in, true) {
		return
	}
	coupon, err := g.services.Coupons.Create(c.Request.Context(), &in)
	g.result(c, coupon, err)
}

func (g *Gateway) updateCoupon(c *gin.Context) {
	var in shop.CouponInput
	if !bind(c, &in, true) {
		return
	}
	coupon, err := g.services.Coupons.Update(c.Request.Context(), c.Param("id"), &in)
	g.result(c, coupon, err)
}

func (g *Gateway) deleteCoupon(c *gin.Context) {
	g.result(c, nil, g.services.Coupons.Delete(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) adminListPosts(c *gin.Context) {
	posts, err := g.services.Content.Posts(c.Request.Context(), false)
	g.result(c, posts, err)
}

func (g *Gateway) adminGetPost(c *gin.Context) {
	post, err := g.services.Content.GetPost(c.Request.Context(), c.Param("id"))
	g.result(c, post, err)
}

func (g *Gateway) createPost(c *gin.Context) {
	var in shop.PostInput
	if !bind(c, &in, true) {
		return
	}
	post, err := g.services.Content.CreatePost(c.Request.Context(), &in)
	g.result(c, post, err)
}

func (g *Gateway) updatePost(c *gin.Context) {
	var in shop.PostInput
	if !bind(c, &in, true) {
		return
	}
	post, err := g.services.Content.UpdatePost(c.Request.Context(), c.Param("id"), &in)
	g.result(c, post, err)
}

func (g *Gateway) deletePost(c *gin.Context) {
	g.result(c, nil, g.services.Content.DeletePost(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) createFAQ(c *gin.Context) {
	var in shop.FAQInput
	if !bind(c, &in, true) {
		return
	}
	faq, err := g.services.Content.CreateFAQ(c.Request.Context(), &in)
	g.result(c, faq, err)
}

func (g *Gateway) updateFAQ(c *gin.Context) {
	var in shop.FAQInput
	if !bind(c, &in, true) {
		return
	}
	faq, err := g.services.Content.UpdateFAQ(c.Request.Context(), c.Param("id"), &in)
	g.result(c, faq, err)
}

func (g *Gateway) deleteFAQ(c *gin.Context) {
	g.result(c, nil, g.services.Content.DeleteFAQ(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) reorderFAQ(c *gin.Context) {
	var req reorderRequest
	if !bind(c, &req, true) {
		return
	}
	g.result(c, nil, g.services.Content.ReorderFAQ(c.Request.Context(), req.IDs))
}

func (g *Gateway) adminSettings(c *gin.Context) {
	s, err := g.services.Content.Settings(c.Request.Context())
	g.result(c, s, err)
}

func (g *Gateway) updateSettings(c *gin.Context) {
	var in shop.SettingsInput
	if !bind(c, &in, true) {
		return
	}
	s, err := g.services.Content.UpdateSettings(c.Request.Context(), &in)
	g.result(c, s, err)
}

func (g *Gateway) pendingReviews(c *gin.Context) {
	reviews, err := g.services.Community.PendingReviews(c.Request.Context())
	g.result(c, reviews, err)
}

func (g *Gateway) approveReview(c *gin.Context) {
	g.result(c, nil, g.services.Community.ApproveReview(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) deleteReview(c *gin.Context) {
	g.result(c, nil, g.services.Community.DeleteReview(c.Request.Context(), c.Param("id")))
}

func (g *Gateway) listSubscribers(c *gin.Context) {
	subs, err := g.services.Community.Subscribers(c.Request.Context())
	g.result(c, subs, err)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
