package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/middleware"
	"github.com/wanderstay/payments-backend/internal/models"
	"github.com/wanderstay/payments-backend/internal/services"
)

// PaymentHandler handles guest-facing payment operations
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// respondPaymentError translates service-layer errors into HTTP responses.
// One mapping for every payment endpoint so the error taxonomy stays uniform.
func respondPaymentError(c *gin.Context, logger *logrus.Logger, err error) {
	var procErr *services.ProcessorError

	switch {
	case errors.Is(err, services.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, services.ErrNotBookingOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to pay for this booking"})
	case errors.Is(err, services.ErrIntentMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment intent does not match this booking"})
	case errors.Is(err, services.ErrGatewayNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Online payments are not available at the moment",
			"configured": false,
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to perform this action"})
	case errors.Is(err, services.ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"error": "This payment has already been reviewed"})
	case errors.Is(err, services.ErrNoProofUploaded):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No proof of payment has been uploaded for this booking"})
	case errors.As(err, &procErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": procErr.Message})
	default:
		logger.WithError(err).Error("Payment operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment operation failed"})
	}
}

// CreateIntent initiates an online payment for a booking
// @Summary Create a payment intent
// @Description Create a processor-side payment intent for a booking owned by the caller
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.CreateIntentRequest true "Payment intent request"
// @Success 200 {object} models.CreateIntentResponse "Intent created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 403 {object} map[string]interface{} "Not the booking owner"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Failure 503 {object} map[string]interface{} "Gateway not configured"
// @Security BearerAuth
// @Router /api/v1/payments/create-intent [post]
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.paymentService.CreateIntent(userCtx.UserID, &req)
	if err != nil {
		respondPaymentError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmPayment reconciles a completed checkout with the processor
// @Summary Confirm a payment
// @Description Read the processor state for an intent and update the booking accordingly
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.ConfirmPaymentRequest true "Confirmation request"
// @Success 200 {object} models.ConfirmPaymentResponse "Reconciled state"
// @Failure 400 {object} map[string]interface{} "Intent mismatch"
// @Failure 403 {object} map[string]interface{} "Not the booking owner"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Failure 502 {object} map[string]interface{} "Processor error"
// @Security BearerAuth
// @Router /api/v1/payments/confirm [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.paymentService.ConfirmPayment(userCtx.UserID, &req)
	if err != nil {
		respondPaymentError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPaymentStatus returns the payment state of a booking
// @Summary Get booking payment status
// @Description Poll the payment state of a booking owned by the caller
// @Tags Payments
// @Produce json
// @Param booking_id path string true "Booking ID"
// @Success 200 {object} models.BookingPaymentStatusResponse "Payment status"
// @Failure 403 {object} map[string]interface{} "Not the booking owner"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Security BearerAuth
// @Router /api/v1/payments/status/{booking_id} [get]
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.paymentService.GetPaymentStatus(userCtx.UserID, c.Param("booking_id"))
	if err != nil {
		respondPaymentError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
