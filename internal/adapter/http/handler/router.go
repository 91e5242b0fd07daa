package handler

import (
	"bharatpay-gateway/internal/adapter/http/middleware"
	"bharatpay-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps bundles everything SetupRouter wires into the HTTP surface.
// RateLimitStore may be nil; rate limiting is then disabled.
type RouterDeps struct {
	AuthSvc      ports.AuthService
	KeySvc       ports.KeyService
	PaymentSvc   ports.PaymentService
	LinkSvc      ports.LinkService
	ReportingSvc ports.ReportingService
	AuditSvc     ports.AuditService
	TokenSvc     ports.TokenService

	RateLimitStore middleware.RateLimitStore
	HealthCheckers []ports.HealthChecker

	Log zerolog.Logger
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Log),
		middleware.Recovery(deps.Log),
		middleware.MaxBodySize(middleware.DefaultMaxBodyBytes),
	)

	// rl attaches a rate limiter for the group, or nothing when no store
	// is configured.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, deps.Log)
	}

	authHandler := NewAuthHandler(deps.AuthSvc, deps.AuditSvc)
	keyHandler := NewKeyHandler(deps.KeySvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	linkHandler := NewLinkHandler(deps.LinkSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc, deps.AuditSvc)

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	admin := r.Group("/api/admin")
	{
		admin.POST("/login", rl("admin_login"), authHandler.Login)

		protected := admin.Group("", middleware.JWTAuth(deps.TokenSvc), rl("admin"))
		protected.GET("/verify", authHandler.VerifyToken)
		protected.Use(middleware.AuditLog(deps.AuditSvc))
		protected.GET("/api-keys", keyHandler.List)
		protected.POST("/api-keys", keyHandler.Create)
		protected.POST("/api-keys/:id/toggle", keyHandler.Toggle)
		protected.DELETE("/api-keys/:id", keyHandler.Revoke)
		protected.GET("/transactions", dashboardHandler.ListTransactions)
		protected.GET("/stats", dashboardHandler.GetStats)
		protected.GET("/audit-logs", dashboardHandler.ListAuditLogs)
	}

	v1 := r.Group("/api/v1",
		middleware.APIKeyAuth(deps.KeySvc, deps.AuditSvc),
		middleware.AuditLog(deps.AuditSvc),
	)
	{
		v1.POST("/qr/generate", rl("qr_generate"), paymentHandler.GenerateQR)
		v1.POST("/payment/verify", rl("verify"), paymentHandler.VerifyPayment)
		v1.POST("/payment-link/create", rl("link_create"), linkHandler.Create)
	}

	public := r.Group("/api/public", rl("public"), middleware.AuditLog(deps.AuditSvc))
	{
		public.GET("/links/:link_id", linkHandler.Get)
		public.POST("/pay/:link_id", linkHandler.Redeem)
	}

	return r
}
