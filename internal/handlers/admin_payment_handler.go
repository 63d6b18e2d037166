package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/database"
	"github.com/wanderstay/payments-backend/internal/middleware"
	"github.com/wanderstay/payments-backend/internal/models"
	"github.com/wanderstay/payments-backend/internal/services"
)

// AdminPaymentHandler handles back-office payment review operations
type AdminPaymentHandler struct {
	paymentService *services.PaymentService
	auditRepo      *database.PaymentAuditRepository
	logger         *logrus.Logger
}

// NewAdminPaymentHandler creates a new AdminPaymentHandler
func NewAdminPaymentHandler(paymentService *services.PaymentService, auditRepo *database.PaymentAuditRepository, logger *logrus.Logger) *AdminPaymentHandler {
	return &AdminPaymentHandler{
		paymentService: paymentService,
		auditRepo:      auditRepo,
		logger:         logger,
	}
}

// ReviewPayment applies an admin decision on a manual payment
// @Summary Review a manual payment
// @Description Approve or reject an uploaded proof of payment. Approval confirms the booking and ledgers the booking total; rejection cancels the booking.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.ReviewPaymentRequest true "Review decision"
// @Success 200 {object} map[string]interface{} "Decision applied"
// @Failure 403 {object} map[string]interface{} "Not an admin"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Failure 409 {object} map[string]interface{} "Already reviewed"
// @Security BearerAuth
// @Router /api/v1/admin/payments/review [post]
func (h *AdminPaymentHandler) ReviewPayment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.ReviewPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	message, err := h.paymentService.ReviewManualPayment(userCtx.UserID, &req)
	if err != nil {
		respondPaymentError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// ListPendingReview lists bookings awaiting a manual payment decision
// @Summary List payments pending review
// @Description List bookings with an uploaded proof of payment waiting for an admin decision
// @Tags Admin
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset (default 0)"
// @Success 200 {object} map[string]interface{} "Pending bookings"
// @Failure 403 {object} map[string]interface{} "Not an admin"
// @Security BearerAuth
// @Router /api/v1/admin/payments/pending-review [get]
func (h *AdminPaymentHandler) ListPendingReview(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	bookings, err := h.paymentService.ListPaymentsAwaitingReview(userCtx.UserID, limit, offset)
	if err != nil {
		respondPaymentError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
		"limit":    limit,
		"offset":   offset,
	})
}

// GetPaymentAudit returns the audit trail for a booking's payments
// @Summary Get payment audit trail
// @Description List payment events recorded for a booking, newest first
// @Tags Admin
// @Produce json
// @Param booking_id path string true "Booking ID"
// @Param limit query int false "Max entries (default 50, max 200)"
// @Success 200 {object} map[string]interface{} "Audit entries"
// @Failure 404 {object} map[string]interface{} "Invalid booking id"
// @Security BearerAuth
// @Router /api/v1/admin/payments/audit/{booking_id} [get]
func (h *AdminPaymentHandler) GetPaymentAudit(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}

	audits, err := h.auditRepo.GetByBooking(bookingID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load payment audit trail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID,
		"events":     audits,
		"count":      len(audits),
	})
}
