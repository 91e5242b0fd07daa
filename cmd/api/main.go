package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bharatpay-gateway/config"
	"bharatpay-gateway/internal/adapter/http/dto"
	httpHandler "bharatpay-gateway/internal/adapter/http/handler"
	"bharatpay-gateway/internal/adapter/qr"
	pgStorage "bharatpay-gateway/internal/adapter/storage/postgres"
	redisStorage "bharatpay-gateway/internal/adapter/storage/redis"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/internal/service"
	"bharatpay-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Bool("demo_mode", cfg.Auth.DemoMode).
		Msg("Starting BharatPay Gateway")

	gin.SetMode(cfg.Server.Mode)
	dto.RegisterValidators()

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	keyRepo := pgStorage.NewAPIKeyRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	linkRepo := pgStorage.NewPaymentLinkRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	adminRepo := pgStorage.NewAdminRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	renderer := qr.NewRenderer(qr.DefaultSize)
	decider := service.NewSettlementSimulator()
	notifier := service.NewWebhookNotifier(
		txRepo,
		&http.Client{Timeout: cfg.Payment.WebhookTimeout},
		cfg.Payment.WebhookTimeout,
		log,
	)

	// Business services
	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(adminRepo, hashSvc, tokenSvc, log)
	keySvc := service.NewKeyService(keyRepo, txRepo, cfg.Auth.DemoMode, log)
	paymentSvc := service.NewPaymentService(txRepo, transactor, renderer, decider, notifier, cfg.Payment.PayeeName, log)
	linkSvc := service.NewLinkService(linkRepo, txRepo, transactor, renderer, cfg.Payment.PayeeName, log)
	reportingSvc := service.NewReportingService(txRepo)

	// Seed the console admin account if configured.
	if cfg.Admin.Password != "" {
		if err := authSvc.EnsureSeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed admin account")
		}
	} else {
		log.Warn().Msg("No admin password configured, console login disabled until seeded")
	}

	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		KeySvc:         keySvc,
		PaymentSvc:     paymentSvc,
		LinkSvc:        linkSvc,
		ReportingSvc:   reportingSvc,
		AuditSvc:       auditSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Log:            log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
