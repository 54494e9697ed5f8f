package handler

import (
	"glotrade-wallet/internal/adapter/http/middleware"
	redisStore "glotrade-wallet/internal/adapter/storage/redis"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// WebhookSecrets authenticate provider callbacks. An empty secret leaves
// that provider's webhook route unregistered.
type WebhookSecrets struct {
	PaystackSecretKey string
	FlutterwaveHash   string
}

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	FreezeSvc      ports.FreezeService
	CreditSvc      ports.CreditService
	ReconSvc       ports.ReconciliationService
	TopUpSvc       ports.TopUpService
	RewardSvc      ports.RewardService // nil = reward endpoints disabled
	TokenSvc       ports.TokenService
	Webhooks       WebhookSecrets
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Collector // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Provider webhooks (signature-authenticated) ---
	topUpHandler := NewTopUpHandler(deps.TopUpSvc, deps.Logger)
	webhooks := v1.Group("/webhooks", rl("webhooks"))
	if deps.Webhooks.PaystackSecretKey != "" {
		webhooks.POST("/paystack", middleware.PaystackSignature(deps.Webhooks.PaystackSecretKey, deps.Logger), topUpHandler.PaystackWebhook)
	}
	if deps.Webhooks.FlutterwaveHash != "" {
		webhooks.POST("/flutterwave", middleware.FlutterwaveHash(deps.Webhooks.FlutterwaveHash, deps.Logger), topUpHandler.FlutterwaveWebhook)
	}

	// --- JWT-authenticated routes ---
	authed := v1.Group("", middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	anyRole := middleware.RequireRole(ports.RoleAdmin, ports.RoleService)
	adminOnly := middleware.RequireRole(ports.RoleAdmin)

	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.ReconSvc)
	freezeHandler := NewFreezeHandler(deps.FreezeSvc)
	creditHandler := NewCreditHandler(deps.CreditSvc)

	wallet := authed.Group("/wallets/:owner_id/:currency")
	{
		wallet.GET("/balance", anyRole, rl("reads"), walletHandler.GetBalance)
		wallet.GET("/entries", anyRole, rl("reads"), walletHandler.ListEntries)
		wallet.GET("/freezes", anyRole, rl("reads"), freezeHandler.History)
		wallet.POST("/movements", anyRole, rl("movements"), walletHandler.Move)
		wallet.POST("/credit/repayments", anyRole, rl("movements"), creditHandler.Repay)

		wallet.PUT("/credit/limit", adminOnly, rl("admin"), creditHandler.SetLimit)
		wallet.POST("/freezes", adminOnly, rl("admin"), freezeHandler.Freeze)
		wallet.GET("/reconciliation", adminOnly, rl("admin"), walletHandler.Reconcile)
		wallet.DELETE("", adminOnly, rl("admin"), walletHandler.Archive)
	}

	authed.POST("/freezes/:id/release", adminOnly, rl("admin"), freezeHandler.Release)
	authed.POST("/entries/:id/reverse", adminOnly, rl("admin"), walletHandler.Reverse)
	authed.POST("/topups/confirm", anyRole, rl("topups"), topUpHandler.Confirm)

	if deps.RewardSvc != nil {
		rewardHandler := NewRewardHandler(deps.RewardSvc)
		rewards := authed.Group("/rewards", adminOnly, rl("admin"))
		{
			rewards.POST("/enrollments", rewardHandler.Enroll)
			rewards.POST("/tick", rewardHandler.Tick)
			rewards.GET("/:owner_id/:currency", rewardHandler.GetState)
		}
	}

	return r
}
