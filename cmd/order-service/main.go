package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/config"
	"github.com/dmehra2102/stock-inbox/internal/order/application"
	orderhttp "github.com/dmehra2102/stock-inbox/internal/order/infrastructure/http"
	orderpg "github.com/dmehra2102/stock-inbox/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/stock-inbox/pkg/logging"
	"github.com/dmehra2102/stock-inbox/pkg/outbox"
	"github.com/dmehra2102/stock-inbox/pkg/shutdown"
	"github.com/dmehra2102/stock-inbox/pkg/tracing"
)

const serviceName = "order-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	code := 0
	if err := run(cfg, log); err != nil {
		log.Error("order-service stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, cfg.App.Version, tracing.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		return err
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := orderpg.Migrate(ctx, pool); err != nil {
		return err
	}

	writer, err := tracing.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, serviceName, tp)
	if err != nil {
		return err
	}
	defer writer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay := outbox.NewRelay(log,
		orderpg.NewOutboxStore(log, pool),
		outbox.NewDispatcher(log, writer),
		serviceName+"-relay",
		outbox.Config{
			BatchSize:   cfg.Outbox.BatchSize,
			Interval:    cfg.Outbox.PollInterval,
			Lease:       cfg.Outbox.Lease,
			MaxAttempts: cfg.Outbox.MaxAttempts,
		},
		outbox.NewPromMetrics(reg),
	)

	svc := application.NewService(orderpg.NewRepository(log, pool))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", orderhttp.NewHandler(log, svc).Routes())
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", zap.Error(err))
		}
	}()

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	<-relayDone
	log.Info("order-service shutdown complete")
	return nil
}
