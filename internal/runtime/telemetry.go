package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aurelabs/aura-core/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// telemetry owns the tracer and meter providers for the process. Traces go
// to an OTLP collector when one is configured and to stdout otherwise;
// metrics are always exposed for Prometheus scraping via Handler.
type telemetry struct {
	tracers *sdktrace.TracerProvider
	meters  *sdkmetric.MeterProvider
	handler http.Handler
}

func setupTelemetry(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.RuntimeName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	t := &telemetry{}
	if err := t.initTracers(cfg.Telemetry, res, logger); err != nil {
		return nil, nil, err
	}
	t.initMeters(res, logger)

	otel.SetTracerProvider(t.tracers)
	otel.SetMeterProvider(t.meters)
	return t.shutdown, t.handler, nil
}

func (t *telemetry) initTracers(cfg config.TelemetryConfig, res *resource.Resource, logger *slog.Logger) error {
	var exporter sdktrace.SpanExporter
	var err error

	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(context.Background(), opts...)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return err
	}

	t.tracers = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	if endpoint != "" {
		logger.Info("tracing initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))
	} else {
		logger.Info("tracing initialized", slog.String("exporter", "stdout"))
	}
	return nil
}

func (t *telemetry) initMeters(res *resource.Resource, logger *slog.Logger) {
	promExporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		t.meters = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		return
	}
	t.meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	t.handler = promhttp.Handler()
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if err := t.meters.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.tracers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
