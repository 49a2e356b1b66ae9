package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/infrastructure/monitoring"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/handlers"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/middleware"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// Dependencies are the handlers and collaborators the router mounts.
type Dependencies struct {
	Session    *handlers.SessionHandler
	Health     *handlers.HealthHandler
	CookieAuth gin.HandlerFunc
	Metrics    *monitoring.Metrics
	Gatherer   prometheus.Gatherer
	Tracer     trace.Tracer
	// LoginLimiter throttles login attempts when set
	LoginLimiter middleware.Limiter
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger logger.Logger
	deps   Dependencies
	server *http.Server
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, log logger.Logger, deps Dependencies) *Router {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: log,
		deps:   deps,
	}
	r.setupRoutes()
	r.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r.engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.RequestID())
	var requests *prometheus.CounterVec
	var latency *prometheus.HistogramVec
	if r.deps.Metrics != nil {
		requests, latency = r.deps.Metrics.HTTPRequestsTotal, r.deps.Metrics.HTTPRequestDuration
	}
	r.engine.Use(middleware.Observability(r.deps.Tracer, requests, latency))
	r.engine.Use(middleware.RequestLogger(r.logger))

	// CORS 配置：Cookie 跨站共享需要携带凭据
	if len(r.config.Server.CORSAllowedOrigins) > 0 {
		r.engine.Use(cors.New(cors.Config{
			AllowOrigins:     r.config.Server.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", constants.HeaderRequestID},
			ExposeHeaders:    []string{constants.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 健康检查路由（不需要认证）
	r.engine.GET("/health", r.deps.Health.HealthCheck)
	r.engine.GET("/ready", r.deps.Health.ReadinessCheck)
	r.engine.GET("/live", r.deps.Health.LivenessCheck)

	// Prometheus metrics
	if r.config.Metrics.Enabled {
		path := r.config.Metrics.Path
		if path == "" {
			path = constants.DefaultMetricsPath
		}
		handler := promhttp.Handler()
		if r.deps.Gatherer != nil {
			handler = promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})
		}
		r.engine.GET(path, gin.WrapH(handler))
	}

	// Pprof 性能分析（仅在非生产环境）
	if !r.config.Server.IsProduction() {
		pprof.Register(r.engine)
	}

	cookieAuth := r.deps.CookieAuth
	if cookieAuth == nil {
		cookieAuth = func(c *gin.Context) { c.Next() }
	}

	login := []gin.HandlerFunc{r.deps.Session.Login}
	if r.deps.LoginLimiter != nil {
		login = append([]gin.HandlerFunc{middleware.RateLimit(r.deps.LoginLimiter, r.logger)}, login...)
	}

	account := r.engine.Group("/account")
	{
		account.POST("/login", login...)
		account.POST("/logout", r.deps.Session.Logout)
	}

	v1 := r.engine.Group("/api/v1")
	v1.Use(cookieAuth, middleware.RequireAuthenticated())
	{
		v1.GET("/me", r.deps.Session.Me)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (r *Router) Start() error {
	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", r.server.Addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
