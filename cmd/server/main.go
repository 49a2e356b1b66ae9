package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/sharedcookie/internal/application"
	appservice "github.com/turtacn/sharedcookie/internal/application/service"
	"github.com/turtacn/sharedcookie/internal/config"
	domainservice "github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/infrastructure/crypto"
	"github.com/turtacn/sharedcookie/internal/infrastructure/keystore"
	"github.com/turtacn/sharedcookie/internal/infrastructure/monitoring"
	"github.com/turtacn/sharedcookie/internal/infrastructure/ratelimit"
	"github.com/turtacn/sharedcookie/internal/interfaces/http"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/handlers"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/middleware"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal(context.Background(), "Server exited with error", err)
	}
	appLogger.Info(context.Background(), "Server stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	clock := domainservice.SystemClock{}

	// Shared key store and the in-memory ring over it
	store, closeStore, err := keystore.New(ctx, cfg, appLogger, metrics)
	if err != nil {
		return err
	}
	defer closeStore()

	ring := crypto.NewKeyRing(store, crypto.KeyRingConfig{
		RefreshInterval: cfg.KeyRing.RefreshInterval,
		RefreshTimeout:  cfg.KeyRing.RefreshTimeout,
	}, appLogger, crypto.WithClock(clock), crypto.WithMetrics(metrics))
	if err := ring.Refresh(ctx); err != nil {
		appLogger.Warn(ctx, "Initial key ring load failed, serving without keys until the next refresh", logger.Error(err))
	}

	if cfg.KeyRing.AutoGenerate {
		keys := application.NewKeyManagementService(store, ring, application.KeyManagementConfig{
			KeyLifetime:    cfg.KeyRing.KeyLifetime,
			RotationWindow: cfg.KeyRing.RotationWindow,
		}, clock, appLogger)
		if _, _, err := keys.EnsureKey(ctx); err != nil {
			return err
		}
	}

	protector, err := crypto.NewProtector(cfg.Protection.Purposes, cfg.Protection.CipherCacheTTL)
	if err != nil {
		return err
	}
	codec := crypto.NewTicketCodec(ring, protector)

	// Application services
	profile := appservice.NewIdentityProfile(&cfg.Identity)
	issuer := appservice.NewSessionIssuer(codec, cfg.Cookie, profile, appLogger,
		appservice.WithClock(clock), appservice.WithMetrics(metrics))
	validator := appservice.NewSessionValidator(codec, appLogger, appservice.WithMetrics(metrics))

	// HTTP handlers and router
	deps := http.Dependencies{
		Session: handlers.NewSessionHandler(issuer, cfg.Cookie, appLogger),
		Health:  handlers.NewHealthHandler(ring, store, clock, appLogger),
		CookieAuth: middleware.CookieAuth(validator, issuer, middleware.CookieAuthConfig{
			CookieName:        cfg.Cookie.Name,
			SlidingExpiration: cfg.Cookie.SlidingExpiration,
			Clock:             clock,
		}, appLogger),
		Metrics:  metrics,
		Gatherer: prometheus.DefaultGatherer,
		Tracer:   tracing.Tracer(),
	}

	var limiter *ratelimit.LimiterPool
	if cfg.Server.LoginRatePerMinute > 0 {
		limiter = ratelimit.NewLimiterPool(ratelimit.LimiterConfig{
			PerMinute: cfg.Server.LoginRatePerMinute,
			Burst:     cfg.Server.LoginBurst,
		})
		deps.LoginLimiter = limiter
	}
	router := http.NewRouter(cfg, appLogger, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ring.Run(gctx)
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
	}
	g.Go(router.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return router.Stop(shutdownCtx)
	})

	return g.Wait()
}
