package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"jsonprompt-saas/internal/config"
	"jsonprompt-saas/internal/domain/ports/adapter"
	aiAdapters "jsonprompt-saas/internal/infra/ai"
	"jsonprompt-saas/internal/infra/api"
	pg "jsonprompt-saas/internal/infra/db/postgres"
	"jsonprompt-saas/internal/infra/logging"
	"jsonprompt-saas/internal/infra/metrics"
	"jsonprompt-saas/internal/infra/notify"
	"jsonprompt-saas/internal/infra/payment"
	red "jsonprompt-saas/internal/infra/redis"
	"jsonprompt-saas/internal/infra/sched"
	"jsonprompt-saas/internal/infra/web"
	"jsonprompt-saas/internal/infra/worker"
	"jsonprompt-saas/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		log.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	artifactCache := red.NewArtifactCache(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	promptRepo := pg.NewPromptRepo(pool, artifactCache, log)

	// ---- Notifier ----
	var notifier adapter.Notifier
	if cfg.Notify.ResendKey != "" {
		notifier, err = notify.NewResendNotifier(cfg.Notify.ResendKey, cfg.Notify.From, log)
		if err != nil {
			log.Fatal().Err(err).Msg("resend notifier")
		}
	} else {
		notifier = notify.NewNoopNotifier(log)
	}

	// ---- Enhancer (Gemini -> OpenAI -> noop) ----
	var enhancer adapter.PromptEnhancer
	switch {
	case cfg.Enhancer.GeminiKey != "":
		enhancer, err = aiAdapters.NewGeminiEnhancer(ctx, cfg.Enhancer.GeminiKey, cfg.Enhancer.GeminiURL,
			cfg.Enhancer.DefaultModel, cfg.Enhancer.MaxOutTokens)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini enhancer")
		}
	case cfg.Enhancer.OpenAIKey != "":
		enhancer, err = aiAdapters.NewOpenAIEnhancer(cfg.Enhancer.OpenAIKey, cfg.Enhancer.DefaultModel)
		if err != nil {
			log.Fatal().Err(err).Msg("openai enhancer")
		}
	default:
		log.Warn().Msg("no enhancer configured, premium prompts use the draft artifact")
		enhancer = aiAdapters.NoopEnhancer{}
	}
	log.Info().Str("enhancer", enhancer.Name()).Msg("prompt enhancer selected")

	// ---- Worker pool ----
	workerPool := worker.NewPool(8, log)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, txManager, log)
	gateUC := usecase.NewUsageGateUseCase(userRepo, txManager, log)
	promptUC, err := usecase.NewPromptUseCase(gateUC, promptRepo, enhancer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("prompt use case")
	}
	reconcilerUC := usecase.NewReconcilerUseCase(userRepo, txManager, notifier, workerPool, log)
	statsUC := usecase.NewStatsUseCase(userRepo, log)
	maintUC := usecase.NewMaintenanceUseCase(userRepo, promptRepo, txManager, log)

	// ---- Webhook normalizers ----
	normalizers := payment.NewRegistry(
		payment.NewStripeNormalizer(cfg.Payment.Stripe.WebhookSecret),
		payment.NewPayPalNormalizer(cfg.Payment.PayPal.WebhookSecret),
		payment.NewCashfreeNormalizer(cfg.Payment.Cashfree.WebhookSecret),
	)

	// ---- Maintenance sweep ----
	sweep := sched.NewSweep(cfg.Scheduler.SweepCron, cfg.Scheduler.BatchSize, maintUC, log)
	if err := sweep.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("maintenance sweep")
	}
	defer sweep.Stop()

	// ---- Public API server ----
	authManager := api.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL)
	apiServer := api.NewServer(userUC, promptUC, gateUC, reconcilerUC, normalizers,
		authManager, rateLimiter, cfg.RateLimit.PerMinute, log)
	publicSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: apiServer.Handler(cfg.HTTP.RequestTimeout),
	}
	go func() {
		log.Info().Str("addr", publicSrv.Addr).Msg("public api listening")
		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("public api server")
		}
	}()

	// ---- Admin server ----
	adminServer := web.NewServer(statsUC, userUC, cfg.Admin.APIKey, log)
	adminMux := http.NewServeMux()
	adminServer.RegisterRoutes(adminMux)
	adminSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: adminMux,
	}
	go func() {
		log.Info().Str("addr", adminSrv.Addr).Msg("admin api listening")
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.RequestTimeout)
	defer shutdownCancel()
	_ = publicSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)
	cancel()
}
