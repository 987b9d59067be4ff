package server

import (
	"io"
	"net/http"

	paymentdomain "github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleWebhook is the single entry point for provider callbacks. Anything
// that should not be redelivered is acknowledged with 200; infrastructure
// failures return 5xx so the provider retries.
func (s *Server) handleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		_ = c.Error(paymentdomain.ErrInvalidPayload)
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[http.CanonicalHeaderKey(name)] = c.GetHeader(name)
	}

	if err := s.webhooks.Ingest(c.Request.Context(), provider, payload, headers); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handlePayPalCapture finalizes an approved PayPal order when the buyer
// returns to the storefront. Entitlement still waits for the capture
// webhook.
func (s *Server) handlePayPalCapture(c *gin.Context) {
	if s.paypal == nil {
		_ = c.Error(paymentdomain.ErrProviderNotFound)
		return
	}
	if _, ok := userID(c); !ok {
		_ = c.Error(ErrUnauthorized)
		return
	}

	paypalOrderID := c.Param("id")
	if err := s.paypal.CaptureOrder(c.Request.Context(), paypalOrderID); err != nil {
		s.log.Warn("paypal capture failed", zap.String("paypal_order_id", paypalOrderID), zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"captured": true})
}
