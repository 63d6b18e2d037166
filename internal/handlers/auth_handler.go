package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/models"
	"github.com/wanderstay/payments-backend/internal/services"
	"github.com/wanderstay/payments-backend/internal/utils"
)

// AuthHandler handles login and token refresh
type AuthHandler struct {
	authService *services.AuthService
	logger      *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login authenticates a user with email and password
// @Summary Login
// @Description Authenticate with email and password, returns an access/refresh token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.TokenResponse "Token pair"
// @Failure 401 {object} map[string]interface{} "Invalid credentials"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tokens, err := h.authService.Login(&req)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	ipAddress, userAgent := clientInfo(c)
	device := utils.ParseUserAgent(userAgent)
	h.logger.WithFields(logrus.Fields{
		"email":       req.Email,
		"ip_address":  ipAddress,
		"device_type": device.DeviceType,
		"browser":     device.Browser,
		"os":          device.OS,
	}).Info("User logged in")

	c.JSON(http.StatusOK, tokens)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh tokens
// @Description Exchange a valid refresh token for a new access/refresh token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RefreshRequest true "Refresh token"
// @Success 200 {object} models.TokenResponse "Token pair"
// @Failure 401 {object} map[string]interface{} "Invalid or expired token"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tokens, err := h.authService.Refresh(&req)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrAccountSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is suspended"})
	case errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
	default:
		h.logger.WithError(err).Error("Auth operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
	}
}
