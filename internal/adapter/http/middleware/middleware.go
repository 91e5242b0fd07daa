package middleware

import (
	"fmt"
	"strings"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys set by the auth middlewares.
const (
	CtxRequestID     = "request_id"
	CtxAPIKeyID      = "api_key_id"
	CtxAPIKeyOwner   = "api_key_owner"
	CtxDemoMode      = "demo_mode"
	CtxAdminID       = "admin_id"
	CtxAdminUsername = "admin_username"
)

// RequestID assigns a unique ID to every request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs each request with method, path, status and latency.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		status := c.Writer.Status()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// Recovery converts panics into a SYS_001 response instead of killing the
// worker.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// APIKeyAuth authenticates merchant requests. The key is read from the
// X-API-Key header, falling back to the api_key query parameter. A
// successful demo-mode bypass leaves no key in the context and marks the
// request as demo traffic.
func APIKeyAuth(keySvc ports.KeyService, audit ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader("X-API-Key")
		if rawKey == "" {
			rawKey = c.Query("api_key")
		}

		key, err := keySvc.Validate(c.Request.Context(), rawKey)
		if err != nil {
			audit.Record(c.Request.Context(), &domain.AuditLog{
				Action:     domain.AuditActionAPIKeyInvalid,
				EntityType: "api_key",
				Details:    err.Error(),
				IPAddress:  c.ClientIP(),
				UserAgent:  c.Request.UserAgent(),
			})
			response.Error(c, err)
			c.Abort()
			return
		}

		if key == nil {
			// Demo-mode sentinel accepted.
			c.Set(CtxDemoMode, true)
			audit.Record(c.Request.Context(), &domain.AuditLog{
				Action:     domain.AuditActionDemoModeAccess,
				EntityType: "api_key",
				IPAddress:  c.ClientIP(),
				UserAgent:  c.Request.UserAgent(),
			})
			c.Next()
			return
		}

		c.Set(CtxAPIKeyID, key.ID)
		c.Set(CtxAPIKeyOwner, key.OwnerName)
		c.Next()
	}
}

// JWTAuth authenticates admin console requests via a Bearer token.
func JWTAuth(tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxAdminID, claims.AdminID)
		c.Set(CtxAdminUsername, claims.Username)
		c.Next()
	}
}

// APIKeyIDFromContext returns the authenticated key's ID, or nil for demo
// traffic.
func APIKeyIDFromContext(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(CtxAPIKeyID)
	if !ok {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
