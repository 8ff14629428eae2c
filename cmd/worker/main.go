package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hire-api/internal/config"
	"github.com/jwalitptl/hire-api/internal/email"
	healthHandler "github.com/jwalitptl/hire-api/internal/handler/health"
	prometheusHandler "github.com/jwalitptl/hire-api/internal/handler/prometheus"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository/postgres"
	internalWorker "github.com/jwalitptl/hire-api/internal/worker"
	"github.com/jwalitptl/hire-api/pkg/circuitbreaker"
	"github.com/jwalitptl/hire-api/pkg/logger"
	"github.com/jwalitptl/hire-api/pkg/messaging/redis"
	"github.com/jwalitptl/hire-api/pkg/metrics"
	"github.com/jwalitptl/hire-api/pkg/worker"
)

var mailEvents = []string{
	model.EventMailInvitation,
	model.EventMailPasswordReset,
	model.EventMailVerification,
	model.EventMailPaymentConfirmation,
}

func newDeliverer(cfg *config.Config) email.Deliverer {
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("smtp.host is empty, mails are written to the log")
		return email.NewLogDeliverer(log.Logger)
	}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name: "smtp",
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return email.NewSMTPDeliverer(cfg.SMTP.ToDelivererConfig(), breaker)
}

func serveOps(cfg *config.Config, checks map[string]healthHandler.Pinger, reg *prometheus.Registry) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	root := engine.Group("")
	healthHandler.NewHandler(checks).RegisterRoutes(root)
	prometheusHandler.New(reg).RegisterRoutes(root)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()
	return srv
}

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("the worker needs the postgres storage driver")
	}

	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())
	appLogger.SetGlobal()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("hire", reg)

	outboxRepo := postgres.NewRepositories(db).Outbox
	processor, err := worker.NewOutboxProcessor(outboxRepo, cfg.Outbox.ToWorkerConfig(), appLogger, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outbox processor")
	}

	deliver := email.OutboxHandler(newDeliverer(cfg))
	for _, eventType := range mailEvents {
		processor.Handle(eventType, deliver)
	}
	// Everything else is a domain event for other services.
	processor.HandleUnrouted(worker.PublishTo(broker))

	cleanup := internalWorker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, time.Hour)

	ops := serveOps(cfg, map[string]healthHandler.Pinger{
		"database": db,
		"redis":    broker,
	}, reg)

	go cleanup.Start(ctx)
	log.Info().Int("metrics_port", cfg.Server.MetricsPort).Msg("worker started")
	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server shutdown failed")
	}
	log.Info().Msg("worker stopped")
}
