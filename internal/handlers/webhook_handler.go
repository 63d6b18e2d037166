package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/services"
)

// WebhookHandler receives asynchronous payment processor notifications
type WebhookHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(paymentService *services.PaymentService, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// HandleWebhook processes a processor notification
// @Summary Receive a payment processor webhook
// @Description Accept asynchronous notifications from Stripe or PayPal. Deliveries are ACKed even when the event is unknown or does not match a booking, so processors don't retry forever.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Processor name (stripe, paypal)"
// @Success 200 {object} map[string]interface{} "Delivery acknowledged"
// @Failure 500 {object} map[string]interface{} "Internal error, processor should retry"
// @Router /api/v1/payments/webhook/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read webhook body")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read request body"})
		return
	}

	ipAddress, userAgent := clientInfo(c)
	result, err := h.paymentService.HandleWebhook(provider, body, ipAddress, userAgent)
	if err != nil {
		// Infrastructure failure: refuse the delivery so the processor retries
		h.logger.WithError(err).WithField("provider", provider).
			Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"provider":   result.Provider,
		"event_type": result.EventType,
		"handled":    result.Handled,
		"reason":     result.Reason,
	}).Info("Webhook processed")

	c.JSON(http.StatusOK, gin.H{"received": true, "handled": result.Handled})
}
