package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/config"
	"github.com/dmehra2102/stock-inbox/internal/stock/application"
	stockhttp "github.com/dmehra2102/stock-inbox/internal/stock/infrastructure/http"
	stockkafka "github.com/dmehra2102/stock-inbox/internal/stock/infrastructure/kafka"
	stockdb "github.com/dmehra2102/stock-inbox/internal/stock/infrastructure/postgres"
	"github.com/dmehra2102/stock-inbox/internal/stock/metrics"
	"github.com/dmehra2102/stock-inbox/pkg/idempotency"
	"github.com/dmehra2102/stock-inbox/pkg/logging"
	"github.com/dmehra2102/stock-inbox/pkg/shutdown"
	"github.com/dmehra2102/stock-inbox/pkg/tracing"
)

const serviceName = "stock-service"

func main() {
	seed := flag.Bool("seed", false, "insert demo products before consuming")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, flushLogs, err := newLogger(cfg)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	code := 0
	if err := run(cfg, log, *seed); err != nil {
		log.Error("stock-service stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	_ = flushLogs(context.Background())
	os.Exit(code)
}

func newLogger(cfg *config.Config) (*zap.Logger, func(context.Context) error, error) {
	if !cfg.Telemetry.Enabled {
		log, err := logging.New(cfg.Log.Level)
		return log, func(context.Context) error { return nil }, err
	}
	res, err := tracing.Resource(serviceName, cfg.App.Version)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewWithExport(context.Background(), cfg.Log.Level, logging.ExportConfig{
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Scope:    serviceName,
		Resource: res,
	})
}

func run(cfg *config.Config, log *zap.Logger, seed bool) error {
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

	if err := stockdb.Migrate(ctx, pool); err != nil {
		return err
	}
	if seed {
		if err := stockdb.Seed(ctx, pool, stockdb.DemoProducts()...); err != nil {
			return err
		}
		log.Info("demo products seeded")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []application.Option{application.WithRecorder(m)}
	if cfg.Redis.Enabled {
		rdb, err := idempotency.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, application.WithProcessedCache(idempotency.NewCache(rdb, cfg.Redis.TTL)))
	}

	consumer := application.NewConsumer[pgx.Tx](log,
		stockdb.NewCoordinator(log, pool),
		stockdb.NewInboxLedger(cfg.Consumer.ReopenFailed),
		stockdb.NewStockLedger(),
		opts...,
	)

	dlq, err := tracing.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DLQTopic, serviceName, tp)
	if err != nil {
		return err
	}
	defer dlq.Close()

	reader := stockkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.StartOffset)
	events := stockkafka.NewConsumer(log, reader, dlq, consumer, stockkafka.RetryPolicy{
		MaxRetries:      cfg.Consumer.MaxRetries,
		InitialInterval: cfg.Consumer.InitialBackoff,
		MaxInterval:     cfg.Consumer.MaxBackoff,
	}, m)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", stockhttp.NewHandler(log, stockdb.NewReader(pool)).Routes())

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	consumeErr := make(chan error, 1)
	go func() {
		log.Info("consuming", zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.GroupID))
		consumeErr <- events.Run(ctx)
		cancel()
	}()

	<-ctx.Done()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	err = <-consumeErr
	log.Info("stock-service shutdown")
	return err
}
