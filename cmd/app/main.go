// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goshopper-backend/internal/config"
	"goshopper-backend/internal/domain/ports/adapter"
	aiAdapters "goshopper-backend/internal/infra/adapters/ai"
	"goshopper-backend/internal/infra/api"
	pg "goshopper-backend/internal/infra/db/postgres"
	"goshopper-backend/internal/infra/gateway"
	"goshopper-backend/internal/infra/logging"
	"goshopper-backend/internal/infra/metrics"
	"goshopper-backend/internal/infra/notify"
	red "goshopper-backend/internal/infra/redis"
	"goshopper-backend/internal/infra/sched"
	"goshopper-backend/internal/infra/worker"
	"goshopper-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop providers, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	// ---- Notifications ----
	pool4 := worker.NewPool(4, *logger)
	pool4.Start(ctx)
	defer pool4.Stop()
	notifier := notify.NewPushNotifier(notify.NewLogSender(*logger), pool4, *logger)

	// ---- Gateways ----
	var card adapter.CardGateway
	var mobile adapter.MobileMoneyGateway
	if cfg.Runtime.Dev {
		noop := gateway.NewNoopGateway()
		card, mobile = noop, noop
		logger.Warn().Msg("payment gateways: noop")
	} else {
		card, err = gateway.NewStripeGateway(cfg.Payment.Stripe.SecretKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe gateway init failed")
		}
		mobile, err = gateway.NewMokoGateway(cfg.Payment.Moko.BaseURL, cfg.Payment.Moko.MerchantID, cfg.Payment.Moko.APIKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("moko gateway init failed")
		}
	}

	// ---- Receipt parser ----
	var parser adapter.ReceiptParser
	if cfg.Runtime.Dev || cfg.AI.OpenAIKey == "" {
		parser = aiAdapters.NewNoopReceiptParser()
		logger.Warn().Msg("receipt parser: noop")
	} else {
		parser, err = aiAdapters.NewOpenAIReceiptParser(cfg.AI.OpenAIKey, cfg.AI.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("receipt parser init failed")
		}
	}

	// ---- Use cases ----
	pricingUC := usecase.NewPricingUseCase()
	subUC := usecase.NewSubscriptionUseCase(subRepo, txm, notifier, logger)
	payUC := usecase.NewPaymentUseCase(payRepo, txm, subUC, pricingUC, card, mobile, notifier, cfg.Payment.ProviderTimeout, logger)
	quotaUC := usecase.NewQuotaUseCase(subRepo, txm, logger)
	scanUC := usecase.NewScanUseCase(quotaUC, parser, logger)

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.SweepInterval, subUC, locker, logger)
	go func() { _ = expiry.Run(ctx) }()

	reconciler := sched.NewPaymentReconciler(payUC, payRepo, locker, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP ----
	handlers := api.NewHandlers(payUC, subUC, pricingUC, scanUC, logger)
	webhooks := api.NewWebhooks(payUC, cfg.Payment.Stripe.WebhookSecret, cfg.Payment.Moko.WebhookSecret, logger)
	server := api.NewServer(fmt.Sprintf(":%d", cfg.HTTP.Port), api.Deps{
		Handlers:    handlers,
		Webhooks:    webhooks,
		JWTSecret:   cfg.Auth.JWTSecret,
		ScanLimiter: rateLimiter,
		ScanKeyFn:   red.UserScanKey,
		Health: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		},
	}, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
