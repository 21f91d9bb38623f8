package handler

import (
	"github.com/SergeiKhy/pastebin/internal/clock"
	"github.com/SergeiKhy/pastebin/internal/metrics"
	"github.com/SergeiKhy/pastebin/internal/middleware"
	"github.com/SergeiKhy/pastebin/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig параметры HTTP слоя
type RouterConfig struct {
	BaseURL      string // Префикс ссылок на пасты; пусто - из заголовков запроса
	MaxBodyBytes int64  // Лимит тела POST /pastes
}

func NewRouter(
	pasteService service.PasteService,
	viewProcessor service.ViewProcessor,
	rateLimiter *middleware.RateLimiter,
	timeSource *clock.Source,
	logger *zap.Logger,
	cfg RouterConfig,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeSource == nil {
		timeSource = clock.NewSource(nil, false)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.Logger(logger))
	router.SetHTMLTemplate(loadTemplates())

	pasteHandler := NewPasteHandler(pasteService, viewProcessor, logger, cfg.BaseURL, cfg.MaxBodyBytes)
	healthHandler := NewHealthHandler(pasteService, logger)

	// Служебные эндпоинты без rate limiting
	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/docs/openapi.json", OpenAPI)

	api := router.Group("/")
	if rateLimiter != nil {
		api.Use(rateLimiter.Middleware())
	}
	api.Use(middleware.RequestTime(timeSource))
	{
		api.GET("/", pasteHandler.Index)
		api.POST("/pastes", pasteHandler.CreatePaste)
		api.GET("/pastes/:id", pasteHandler.GetPaste)
		api.GET("/p/:id", pasteHandler.ViewPastePage)
	}

	return router
}
