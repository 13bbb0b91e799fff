package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/jrsteele09/go-sso-server"

// MetricsSettings configures the OTLP metric pipeline
type MetricsSettings struct {
	ServiceName string
	Environment string
	Endpoint    string
	Insecure    bool
	Interval    time.Duration
}

type appMetrics struct {
	sessionCounter  metric.Int64Counter
	grantCounter    metric.Int64Counter
	decisionCounter metric.Int64Counter
	storeCounter    metric.Int64Counter
	repoCounter     metric.Int64Counter
}

var (
	metricsMu sync.RWMutex
	metrics   *appMetrics
)

// InitMetrics installs the global MeterProvider and binds the counters to it.
// With no endpoint the provider has no reader and nothing leaves the process.
func InitMetrics(ctx context.Context, settings MetricsSettings, logger zerolog.Logger) (*sdkmetric.MeterProvider, error) {
	if settings.Endpoint == "" {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info().Msg("otel metrics export disabled")
		return mp, UseMeterProvider(mp)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(settings.Endpoint)}
	if settings.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", settings.ServiceName),
			attribute.String("deployment.environment", settings.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(settings.Interval))),
	)
	otel.SetMeterProvider(mp)
	logger.Info().Str("endpoint", settings.Endpoint).Dur("interval", settings.Interval).Msg("otel metrics exporting")
	return mp, UseMeterProvider(mp)
}

// UseMeterProvider rebinds the counters to provider
func UseMeterProvider(provider metric.MeterProvider) error {
	meter := provider.Meter(meterName)
	m := &appMetrics{}
	var err error
	if m.sessionCounter, err = meter.Int64Counter("sso.session.events"); err != nil {
		return err
	}
	if m.grantCounter, err = meter.Int64Counter("sso.token.grants"); err != nil {
		return err
	}
	if m.decisionCounter, err = meter.Int64Counter("sso.access.decisions"); err != nil {
		return err
	}
	if m.storeCounter, err = meter.Int64Counter("sso.store.events"); err != nil {
		return err
	}
	if m.repoCounter, err = meter.Int64Counter("sso.repository.operations"); err != nil {
		return err
	}

	metricsMu.Lock()
	metrics = m
	metricsMu.Unlock()
	return nil
}

// loadMetrics returns nil until a provider is installed
func loadMetrics() *appMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}

// RecordSessionEvent counts session lifecycle transitions (created, ended, refreshed)
func RecordSessionEvent(ctx context.Context, event string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.sessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func RecordGrant(ctx context.Context, grantType, outcome string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.grantCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
		attribute.String("outcome", outcome),
	))
}

func RecordAccessDecision(ctx context.Context, response, level string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.decisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("response", response),
		attribute.String("level", level),
	))
}

// RecordStoreEvent counts store infrastructure events (fallback, unavailable)
func RecordStoreEvent(ctx context.Context, backend, event string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.storeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("event", event),
	))
}

// RecordRepositoryOperation counts relational repository calls by outcome
func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.repoCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}
