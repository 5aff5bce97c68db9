package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/onboarding-portal/internal/api/http"
	"github.com/spec-kit/onboarding-portal/internal/api/http/handlers"
	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/config"
	"github.com/spec-kit/onboarding-portal/internal/events"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	"github.com/spec-kit/onboarding-portal/internal/observability"
	"github.com/spec-kit/onboarding-portal/internal/persistence"
	"github.com/spec-kit/onboarding-portal/internal/service"
	"github.com/spec-kit/onboarding-portal/internal/session"
	"github.com/spec-kit/onboarding-portal/internal/worker"
)

const uploadBodyLimit = 10 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	var (
		redis   *persistence.Redis
		backend session.Backend
		locker  session.Locker
	)
	switch cfg.Session.Storage {
	case config.StorageRedis:
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close() //nolint:errcheck
		backend = session.NewRedisBackend(redis.Client, cfg.Redis.KeyPrefix, cfg.Session.StorageTTL())
		locker = session.NewRedisLocker(redis.Client, cfg.Redis.KeyPrefix, cfg.Session.SubmissionLock())
	default:
		logger.Warn("session storage is in memory; sessions are lost on restart")
		backend = session.NewMemoryBackend()
		locker = session.NewMemoryLocker()
	}

	transport, err := gateway.NewTransport(gateway.Options{
		BaseURL:   cfg.Backend.BaseURL(),
		Timeout:   cfg.Backend.Timeout(),
		LoginPath: service.LoginPath,
		Debug:     !cfg.IsProduction(),
		Logger:    logger.Named("gateway"),
	})
	if err != nil {
		logger.Fatal("failed to configure backend gateway", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, metrics, logger.Named("audit"))

	tokens := auth.NewTokenManager(cfg.Session.Secret, cfg.Session.TTL())
	clientTokens := service.NewClientTokens(service.ClientCredentials{
		ClientID:     cfg.Backend.ClientID,
		ClientSecret: cfg.Backend.ClientSecret,
	}, logger)

	authService := service.NewAuthService(service.AuthDependencies{
		ClientTokens: clientTokens,
		TokenManager: tokens,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	onboardingService := service.NewOnboardingService(service.OnboardingDependencies{
		ClientTokens: clientTokens,
		Locker:       locker,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	sessions := auth.NewSessionMiddleware(backend, transport, auth.CookieConfig{
		SessionName:           cfg.Session.CookieName,
		IDName:                cfg.Session.IDCookieName,
		Secure:                cfg.IsProduction(),
		SignOutOnUnauthorized: cfg.Session.SignOutOnUnauthorized,
	}, dispatcher, logger)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: uploadBodyLimit,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis, metrics),
		Auth:       handlers.NewAuthHandler(authService, sessions),
		Dashboard:  handlers.NewDashboardHandler(tokens, logger),
		Onboarding: handlers.NewOnboardingHandler(onboardingService),
		Sessions:   sessions,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
