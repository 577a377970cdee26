package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fitstake_miniapp/internal/api"
	"fitstake_miniapp/internal/cache"
	"fitstake_miniapp/internal/middleware"
	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/notifier"
	"fitstake_miniapp/internal/repository"
	"fitstake_miniapp/internal/service"
	"fitstake_miniapp/pkg/auth"
	"fitstake_miniapp/pkg/ledger"
	"fitstake_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := service.SystemClock{}

	repo, err := repository.New(cfg.Database, repository.WithClock(clock.Now))
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	ledgerClient := ledger.New(cfg.Ledger)
	defer ledgerClient.Close()

	hub := notifier.NewHub()
	defer hub.Close()

	notifiers := []notifier.Notifier{hub}
	var avatars api.AvatarSource
	if cfg.TelegramAuth.Notifications {
		bot, err := notifier.NewBot(notifier.TelegramConfig{
			BotToken: cfg.TelegramAuth.TelegramBotToken,
			Debug:    cfg.TelegramAuth.Debug,
		})
		if err != nil {
			zapLogger.Warn("Telegram notifications disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, notifier.NewTelegram(bot))
			avatars = bot
		}
	}
	fanout := notifier.NewFanout(notifiers...)

	userService := service.NewUserService(repo)
	challengeService := service.NewChallengeService(service.ChallengeDeps{
		Challenges: repo,
		Users:      repo,
		Intents:    repo,
		Progress:   repo,
		Ledger:     ledgerClient,
		Clock:      clock,
		Notifier:   fanout,
		Available:  cache.New[[]*model.Challenge](cfg.Cache.TTL, clock.Now),
	})
	healthService := service.NewHealthService(repo, clock)
	reconciler := service.NewReconciler(repo, ledgerClient, clock, cfg.Scheduler.StuckIntentAge)
	svc := service.NewService(userService, challengeService, healthService, reconciler)

	scheduler, err := service.NewScheduler(cfg.Scheduler.SchedulerConfig, svc.ChallengeService, svc.Reconciler)
	if err != nil {
		zapLogger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	scheduler.Start()

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.Debug)
	authorization := middleware.NewAuthorization(svc.UserService)

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.Cleanup(ctx)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Monitoring())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	api.NewSystemRoutes(router, repo, middleware.MetricsAuth(cfg.Metrics.User, cfg.Metrics.Password))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, svc.UserService, telegramAuth, avatars)
	api.NewChallengeRoutes(a, svc.ChallengeService, telegramAuth, limiter.Middleware())
	api.NewHealthMetricsRoutes(a, svc.HealthService, telegramAuth, limiter.Middleware())
	api.NewWSRoutes(a, hub, telegramAuth)
	api.NewAdminRoutes(a, svc.Reconciler, telegramAuth, authorization)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		zapLogger.Error("Server error received", zap.Error(err))
	case <-ctx.Done():
		zapLogger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Scheduler shutdown error", zap.Error(err))
	}
	fanout.Wait()

	zapLogger.Info("Shutdown complete")
}
