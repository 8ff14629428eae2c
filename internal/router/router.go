package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hire-api/internal/middleware"
	"github.com/jwalitptl/hire-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine   *gin.Engine
	health   Handler
	metrics  Handler
	handlers []Handler
}

type RouterConfig struct {
	CORSConfig      middleware.CORSConfig
	SecurityConfig  middleware.SecurityConfig
	SizeLimitConfig middleware.SizeLimitConfig
	Timeout         time.Duration
	Metrics         *metrics.Metrics
	// MetricsHandler serves /metrics on the API port when set.
	MetricsHandler Handler
}

func NewRouter(config RouterConfig, health Handler, handlers ...Handler) *Router {
	engine := gin.New()
	if config.Timeout <= 0 {
		config.Timeout = middleware.DefaultTimeoutConfig().Duration
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewNop()
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.Metrics(config.Metrics),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(config.SecurityConfig),
		middleware.SizeLimit(config.SizeLimitConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
		middleware.ErrorHandler(),
	)

	return &Router{
		engine:   engine,
		health:   health,
		metrics:  config.MetricsHandler,
		handlers: handlers,
	}
}

func (r *Router) Setup() {
	root := r.engine.Group("")
	r.health.RegisterRoutes(root)
	if r.metrics != nil {
		r.metrics.RegisterRoutes(root)
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})
	r.health.RegisterRoutes(api)

	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
