package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/wanderstay/payments-backend/internal/utils"
)

// clientInfo extracts the real client IP and user agent from the request for
// the payment audit trail
func clientInfo(c *gin.Context) (string, string) {
	return utils.GetRealIP(c), c.Request.UserAgent()
}
