package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/pastebin/internal/clock"
	"github.com/SergeiKhy/pastebin/internal/config"
	"github.com/SergeiKhy/pastebin/internal/handler"
	"github.com/SergeiKhy/pastebin/internal/idgen"
	"github.com/SergeiKhy/pastebin/internal/metrics"
	"github.com/SergeiKhy/pastebin/internal/middleware"
	"github.com/SergeiKhy/pastebin/internal/repository"
	"github.com/SergeiKhy/pastebin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к Redis (хранилище паст)
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Журнал просмотров в PostgreSQL (опционально)
	var viewProcessor service.ViewProcessor = service.NopViewProcessor{}
	if cfg.Audit.Enabled {
		db, err := repository.NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Connected to PostgreSQL, view audit enabled")

		viewRepo := repository.NewViewRepository(db)
		viewProcessor = service.NewViewProcessor(viewRepo, logger)
		service.StartAuditJanitor(ctx, viewRepo, clock.Wall{}, cfg.Audit.Retention, time.Hour, logger)
	}
	viewProcessor.Start()
	defer viewProcessor.Stop()

	// Инициализация сервиса
	pasteService := service.NewPasteService(
		repository.NewRedisPasteStore(redis),
		idgen.New(0),
		clock.Wall{},
		logger,
		service.Options{StrictViews: cfg.Paste.StrictViews},
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	if cfg.App.TestMode {
		logger.Warn("TEST_MODE enabled: request time can be overridden with " + clock.TestNowHeader)
	}

	router := handler.NewRouter(
		pasteService,
		viewProcessor,
		rateLimiter,
		clock.NewSource(clock.Wall{}, cfg.App.TestMode),
		logger,
		handler.RouterConfig{BaseURL: cfg.App.BaseURL, MaxBodyBytes: cfg.App.MaxBodyBytes},
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.Bool("strict_views", cfg.Paste.StrictViews))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
