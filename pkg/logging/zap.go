package logging

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger on stdout at the given level ("debug", "info", ...).
func New(level string) (*zap.Logger, error) {
	core, err := stdoutCore(level)
	if err != nil {
		return nil, err
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func stdoutCore(level string) (zapcore.Core, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		lvl,
	), nil
}

// ExportConfig enables shipping log records over OTLP/HTTP.
type ExportConfig struct {
	Endpoint string
	Insecure bool
	Scope    string
	Resource *resource.Resource
}

// NewWithExport tees the stdout logger with an OpenTelemetry log bridge.
// The returned shutdown flushes the log provider.
func NewWithExport(ctx context.Context, level string, cfg ExportConfig) (*zap.Logger, func(context.Context) error, error) {
	core, err := stdoutCore(level)
	if err != nil {
		return nil, nil, err
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp log exporter: %w", err)
	}

	providerOpts := []sdklog.LoggerProviderOption{sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter))}
	if cfg.Resource != nil {
		providerOpts = append(providerOpts, sdklog.WithResource(cfg.Resource))
	}
	provider := sdklog.NewLoggerProvider(providerOpts...)
	global.SetLoggerProvider(provider)

	otelCore := otelzap.NewCore(cfg.Scope, otelzap.WithLoggerProvider(provider))
	log := zap.New(zapcore.NewTee(core, otelCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return log, provider.Shutdown, nil
}
