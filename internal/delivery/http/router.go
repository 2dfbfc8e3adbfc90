package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sentinel-cycle/engine/internal/cycle"
	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/logging"
	"github.com/sentinel-cycle/engine/internal/observability"
)

// RouterConfig holds the router's own configuration, separate from the
// engine's (§6): the allowed CORS origins. Request logging always runs.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter builds the REST + SSE surface for one Engine instance: a gin
// Engine wired with CORS, request logging, the cycle lifecycle endpoints,
// an event stream, and a Prometheus scrape endpoint when obs is non-nil.
func NewRouter(engine *cycle.Engine, bus *eventbus.Bus, obs *observability.Provider, cfg RouterConfig, logger logging.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(logger))

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, requestIDHeader)
	router.Use(cors.New(corsCfg))

	h := NewHandler(engine)
	sse := NewSSEHandler(bus)

	api := router.Group("/api")
	{
		api.POST("/cycles", h.HandleStartCycle)
		api.GET("/cycles/current", h.HandleGetStatus)
		api.POST("/cycles/current/approve", h.HandleApproveCurrent)
		api.POST("/cycles/current/revise", h.HandleReviseCurrent)
		api.POST("/cycles/current/cancel", h.HandleCancelCycle)
		api.POST("/cycles/current/pause", h.HandlePauseCycle)
		api.POST("/cycles/current/resume", h.HandleResumeCycle)
		api.GET("/events", sse.HandleStream)
	}

	if obs != nil {
		router.GET("/metrics", gin.WrapH(obs.MetricsHandler()))
	}

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return router
}
