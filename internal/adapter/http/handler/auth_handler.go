package handler

import (
	"net/http"
	"time"

	"bharatpay-gateway/internal/adapter/http/dto"
	"bharatpay-gateway/internal/adapter/http/middleware"
	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves admin console authentication.
type AuthHandler struct {
	authSvc ports.AuthService
	audit   ports.AuditService
}

func NewAuthHandler(authSvc ports.AuthService, audit ports.AuditService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, audit: audit}
}

// Login handles POST /api/admin/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("username and password are required"))
		return
	}
	dto.SanitizeStruct(&req)

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.Record(c.Request.Context(), &domain.AuditLog{
			Action:     domain.AuditActionAdminLoginFailed,
			EntityType: "admin",
			Details:    "username=" + req.Username,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		response.Error(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), &domain.AuditLog{
		Action:     domain.AuditActionAdminLoginSuccess,
		EntityType: "admin",
		Details:    "username=" + req.Username,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	response.OK(c, dto.AdminLoginResponse{Token: token, Expiry: expiry.Unix()})
}

// VerifyToken handles GET /api/admin/verify. Reaching it at all means the
// JWT middleware accepted the token.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	response.OK(c, gin.H{
		"valid":    true,
		"username": c.GetString(middleware.CtxAdminUsername),
	})
}

// HealthCheck reports service and dependency health. Any failing
// dependency degrades the response to 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		deps := make(map[string]string, len(checkers))
		healthy := true
		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = "unhealthy: " + err.Error()
				healthy = false
			} else {
				deps[checker.Name()] = "healthy"
			}
		}

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		c.JSON(status, gin.H{
			"status":       overall,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
