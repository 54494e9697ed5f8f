package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glotrade-wallet/config"
	httpHandler "glotrade-wallet/internal/adapter/http/handler"
	"glotrade-wallet/internal/adapter/provider"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/internal/service"
	"glotrade-wallet/pkg/logger"
	"glotrade-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("GLW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting wallet ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.Close()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	// Engine and services
	backoff, _ := cfg.Ledger.Backoff() // validated by config.Load
	engine := service.NewEngine(st.wallets, st.ledger, st.store, st.cache, collector, service.EngineConfig{
		MaxAttempts:    cfg.Ledger.MaxAttempts,
		Backoff:        backoff,
		IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
	}, log)

	ledgerSvc := service.NewLedgerService(engine, st.wallets, st.ledger, collector, log)
	freezeSvc := service.NewFreezeService(engine, st.wallets, st.freezes, log)
	creditSvc := service.NewCreditService(engine, collector, log)
	reconSvc := service.NewReconciliationService(st.wallets, st.ledger, st.freezes, collector, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	httpClient := &http.Client{Timeout: cfg.Providers.Timeout}
	topUpSvc := service.NewTopUpService(ledgerSvc, []ports.PaymentVerifier{
		provider.NewPaystack(cfg.Providers.Paystack.BaseURL, cfg.Providers.Paystack.SecretKey, httpClient),
		provider.NewFlutterwave(cfg.Providers.Flutterwave.BaseURL, cfg.Providers.Flutterwave.SecretKey, httpClient),
	}, log)

	rate, _ := cfg.Reward.Rate() // validated by config.Load
	rewards := service.NewRewardProcessor(ledgerSvc, st.wallets, st.rewards, st.lock, collector, service.RewardConfig{
		Rate:        rate,
		Interval:    cfg.Reward.Interval,
		Tick:        cfg.Reward.Tick,
		Concurrency: cfg.Reward.Concurrency,
		LockTTL:     cfg.Reward.LockTTL,
	}, log)
	if cfg.Reward.Enabled {
		go rewards.Run(ctx)
		log.Info().
			Str("rate", rate.String()).
			Dur("interval", cfg.Reward.Interval).
			Dur("tick", cfg.Reward.Tick).
			Msg("Reward processor started")
	}

	// Setup Gin router with all routes
	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc: ledgerSvc,
		FreezeSvc: freezeSvc,
		CreditSvc: creditSvc,
		ReconSvc:  reconSvc,
		TopUpSvc:  topUpSvc,
		RewardSvc: rewards,
		TokenSvc:  tokenSvc,
		Webhooks: httpHandler.WebhookSecrets{
			PaystackSecretKey: cfg.Providers.Paystack.SecretKey,
			FlutterwaveHash:   cfg.Providers.Flutterwave.WebhookHash,
		},
		RateLimitStore: st.rateLimit,
		HealthCheckers: st.health,
		Metrics:        collector,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
