package middleware

import (
	"fmt"
	"strings"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuditLog records successful state-changing requests to the audit trail.
// It runs after the handler so only committed work is audited.
func AuditLog(audit ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == "GET" {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		action, entityType := mapPathToAction(c)
		if action == "" {
			return
		}

		audit.Record(c.Request.Context(), &domain.AuditLog{
			Action:     action,
			EntityType: entityType,
			Details:    fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
	}
}

// mapPathToAction derives the audit action from route shape. Unmapped
// routes are not audited here; handlers that need richer entries record
// them directly.
func mapPathToAction(c *gin.Context) (domain.AuditAction, string) {
	path := c.FullPath()
	method := c.Request.Method

	switch {
	case path == "/api/admin/api-keys" && method == "POST":
		return domain.AuditActionAPIKeyCreated, "api_key"
	case strings.HasSuffix(path, "/toggle") && method == "POST":
		return domain.AuditActionAPIKeyToggled, "api_key"
	case strings.HasPrefix(path, "/api/admin/api-keys/") && method == "DELETE":
		return domain.AuditActionAPIKeyRevoked, "api_key"
	case path == "/api/v1/qr/generate":
		return domain.AuditActionTransactionCreated, "transaction"
	case path == "/api/v1/payment/verify":
		return domain.AuditActionPaymentVerified, "transaction"
	case path == "/api/v1/payment-link/create":
		return domain.AuditActionLinkCreated, "payment_link"
	case strings.HasPrefix(path, "/api/public/pay/"):
		return domain.AuditActionLinkRedeemed, "payment_link"
	default:
		return "", ""
	}
}
