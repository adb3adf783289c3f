package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/shop"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// paymentWebhook confirms orders once the provider reports a paid session.
// Events that do not concern a known pending order are acknowledged so the
// provider stops retrying them.
func (g *Gateway) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": badRequestMessage})
		return
	}

	event, err := g.services.Payments.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		g.logger.Warn("Rejected payment webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
		return
	}

	if event.Type != payment.EventCheckoutCompleted || !event.Paid {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if event.OrderID == "" {
		g.logger.Warn("Paid session without order reference", zap.String("session_id", event.SessionID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	err = g.services.Orders.MarkPaid(c.Request.Context(), event.OrderID, event.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, shop.ErrNotFound), errors.Is(err, shop.ErrConflict):
		g.logger.Warn("Ignored payment webhook",
			zap.String("order_id", event.OrderID),
			zap.String("session_id", event.SessionID),
			zap.Error(err))
	default:
		g.logger.Error("Failed to confirm payment",
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": shop.InternalErrorMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
