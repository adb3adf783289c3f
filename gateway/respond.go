package gateway

import (
	"errors"
	"net/http"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/shop"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const badRequestMessage = "Requête invalide"

// statusFor classifies domain errors into HTTP statuses.
func statusFor(err error) int {
	var verr *shop.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, shop.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shop.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shop.ErrPayment):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) logFailure(c *gin.Context, status int, err error) {
	if status < http.StatusInternalServerError && status != http.StatusBadGateway {
		return
	}
	g.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
}

// fail answers a storefront request with {error}.
func (g *Gateway) fail(c *gin.Context, err error) {
	status := statusFor(err)
	g.logFailure(c, status, err)
	c.JSON(status, gin.H{"error": shop.UserMessage(err)})
}

// result answers a back office action with {success, error?}.
func (g *Gateway) result(c *gin.Context, data interface{}, err error) {
	if err != nil {
		status := statusFor(err)
		g.logFailure(c, status, err)
		c.JSON(status, shop.Failed(err))
		return
	}
	c.JSON(http.StatusOK, shop.OK(data))
}

// bind decodes the JSON body; on failure it has already answered.
func bind(c *gin.Context, dst interface{}, admin bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if admin {
			c.JSON(http.StatusBadRequest, shop.ActionResult{Error: badRequestMessage})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": badRequestMessage})
		}
		return false
	}
	return true
}

// actor names the admin behind a request for the audit trail.
func actor(c *gin.Context) string {
	id := auth.FromContext(c)
	if id == nil {
		return ""
	}
	if id.Email != "" {
		return id.Email
	}
	return id.UserID
}
