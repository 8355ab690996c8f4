package handlers

import (
	"sensor_dashboard/internal/logger"
	"sensor_dashboard/internal/metrics"
	"sensor_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  *metrics.Recorder
}

// NewHandler constructs a new HTTP handler with dependencies. log and rec may be nil.
func NewHandler(services *service.Service, log *logger.Logger, rec *metrics.Recorder) *Handler {
	return &Handler{services: services, log: log, metrics: rec}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.metricsMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	// Live current readings (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerReadingRoutes(api)
		h.registerSyncRoutes(api)
	}
}

func (h *Handler) registerReadingRoutes(api *gin.RouterGroup) {
	api.GET("/current/:series", h.getCurrent)
	api.GET("/history/:series", h.getHistory)
	api.GET("/stats/:series", h.getStats)
	// :series may also be "combined"
	api.GET("/chart/:series", h.getChart)
	api.GET("/export/:series", h.exportSeries)
	api.GET("/forecast", h.getForecast)
}

func (h *Handler) registerSyncRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	sync := api.Group("/sync")
	{
		sync.GET("/runs", h.getSyncRuns)
	}
}
