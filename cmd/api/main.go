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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hire-api/internal/config"
	"github.com/jwalitptl/hire-api/internal/email"
	accountHandler "github.com/jwalitptl/hire-api/internal/handler/account"
	authHandler "github.com/jwalitptl/hire-api/internal/handler/auth"
	billingHandler "github.com/jwalitptl/hire-api/internal/handler/billing"
	healthHandler "github.com/jwalitptl/hire-api/internal/handler/health"
	prometheusHandler "github.com/jwalitptl/hire-api/internal/handler/prometheus"
	"github.com/jwalitptl/hire-api/internal/middleware"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
	"github.com/jwalitptl/hire-api/internal/repository/memory"
	"github.com/jwalitptl/hire-api/internal/repository/postgres"
	"github.com/jwalitptl/hire-api/internal/router"
	"github.com/jwalitptl/hire-api/internal/service/audit"
	authService "github.com/jwalitptl/hire-api/internal/service/auth"
	"github.com/jwalitptl/hire-api/internal/service/subscription"
	"github.com/jwalitptl/hire-api/pkg/auth"
	"github.com/jwalitptl/hire-api/pkg/circuitbreaker"
	"github.com/jwalitptl/hire-api/pkg/logger"
	"github.com/jwalitptl/hire-api/pkg/metrics"
	"github.com/jwalitptl/hire-api/pkg/payment/razorpay"
	"github.com/jwalitptl/hire-api/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())
	appLogger.SetGlobal()
	gin.SetMode(gin.ReleaseMode)

	if err := middleware.RegisterValidators(middleware.DefaultValidationConfig()); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	auditLogger, err := audit.NewLogger(cfg.Audit.Output)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create audit logger")
	}
	auditor := audit.NewService(auditLogger)
	defer auditor.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("hire", reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]healthHandler.Pinger{}
	var repos repository.Repositories
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		repos = memory.NewStore().Repositories()
	default:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate database")
			}
		}
		checks["database"] = db
		repos = postgres.NewRepositories(db)
	}

	gatewayBreaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name: "razorpay",
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	gateway := razorpay.NewClient(cfg.Razorpay.ToClientConfig(), gatewayBreaker)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	mailer := email.NewOutboxService(repos.Outbox)

	subs := subscription.NewService(repos, gateway, jwtSvc, mailer, auditor, m, subscription.Config{
		Currency: cfg.Razorpay.Currency,
	})
	authSvc := authService.NewService(repos, jwtSvc, nil, mailer, subs, auditor, m, authService.Config{
		AppBaseURL: cfg.App.BaseURL,
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
			TTL:   cfg.RateLimit.TTL,
		})
	}

	authMW := middleware.NewAuthMiddleware(jwtSvc)
	r := router.NewRouter(router.RouterConfig{
		CORSConfig:      middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		SecurityConfig:  middleware.DefaultSecurityConfig(),
		SizeLimitConfig: middleware.DefaultSizeLimitConfig(),
		Timeout:         cfg.Server.WriteTimeout,
		Metrics:         m,
		MetricsHandler:  prometheusHandler.New(reg),
	},
		healthHandler.NewHandler(checks),
		authHandler.NewHandler(authSvc, limiter),
		accountHandler.NewHandler(authSvc, authMW),
		billingHandler.NewHandler(subs, authMW),
	)
	r.Setup()

	// Without a database there is no worker process to drain the outbox.
	if cfg.Storage.Driver == config.DriverMemory {
		processor, err := worker.NewOutboxProcessor(repos.Outbox, cfg.Outbox.ToWorkerConfig(), appLogger, m)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create outbox processor")
		}
		deliverer := email.NewLogDeliverer(log.Logger)
		for _, eventType := range []string{
			model.EventMailInvitation,
			model.EventMailPasswordReset,
			model.EventMailVerification,
			model.EventMailPaymentConfirmation,
		} {
			processor.Handle(eventType, email.OutboxHandler(deliverer))
		}
		processor.HandleUnrouted(func(_ context.Context, event *model.OutboxEvent) error {
			log.Info().Str("event_type", event.EventType).RawJSON("payload", event.Payload).Msg("domain event")
			return nil
		})
		go processor.Start(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("storage", cfg.Storage.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}
