// Package telemetry instruments the bridge itself: counters and a
// histogram describing its own ingest/mapping/delivery behavior,
// distinct from the client OTLP this process decodes and forwards.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	defaultEndpoint      = "localhost:4317"
	metricExportInterval = 10 * time.Second
	serviceName          = "otlp-bridge"
)

// Options configures self-telemetry. When Enabled is false, Init is a
// no-op and the global OTel no-op provider stays active, so callers
// never need a nil check on the instruments below.
type Options struct {
	Endpoint string
	Enabled  bool
}

var (
	initOnce      sync.Once
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider

	envelopesReceived metric.Int64Counter
	recordsMapped     metric.Int64Counter
	recordsIgnored    metric.Int64Counter
	sessionsActive    metric.Int64UpDownCounter
	sessionsFinalized metric.Int64Counter
	backendCalls      metric.Int64Counter
	backendErrors     metric.Int64Counter
	sessionDuration   metric.Float64Histogram
)

func parseEndpoint(raw string) (host string, insecure bool) {
	if raw == "" {
		return defaultEndpoint, true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, true
	}
	return u.Host, u.Scheme != "https"
}

// Init configures tracing and metrics export. Thread-safe and
// idempotent: only the first call takes effect.
func Init(ctx context.Context, opts Options, logger zerolog.Logger) error {
	var initErr error
	initOnce.Do(func() {
		if !opts.Enabled {
			logger.Info().Msg("self-telemetry disabled, using no-op provider")
			return
		}

		host, insecure := parseEndpoint(opts.Endpoint)

		res, err := resource.New(ctx,
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
			resource.WithHost(),
			resource.WithAttributes(attribute.String("service.name", serviceName)),
		)
		if err != nil {
			initErr = fmt.Errorf("create otel resource: %w", err)
			return
		}

		if err := initTracing(ctx, host, insecure, res); err != nil {
			initErr = err
			return
		}
		if err := initMetrics(ctx, host, insecure, res); err != nil {
			initErr = err
			return
		}

		logger.Info().Str("endpoint", host).Bool("insecure", insecure).Msg("self-telemetry initialized")
	})
	return initErr
}

func initTracing(ctx context.Context, host string, insecure bool, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create otlp trace exporter: %w", err)
	}
	traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(traceProvider)
	return nil
}

func initMetrics(ctx context.Context, host string, insecure bool, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create otlp metric exporter: %w", err)
	}
	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricExportInterval))),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(serviceName)
	return initInstruments(meter)
}

func initInstruments(meter metric.Meter) error {
	var err error

	envelopesReceived, err = meter.Int64Counter("bridge.envelopes.received",
		metric.WithDescription("OTLP envelopes accepted on ingress"), metric.WithUnit("{envelope}"))
	if err != nil {
		return err
	}
	recordsMapped, err = meter.Int64Counter("bridge.records.mapped",
		metric.WithDescription("Log/metric records with a resolvable session key, dispatched to a mapper"), metric.WithUnit("{record}"))
	if err != nil {
		return err
	}
	recordsIgnored, err = meter.Int64Counter("bridge.records.ignored",
		metric.WithDescription("Log/metric records dropped for lack of a resolvable session key"), metric.WithUnit("{record}"))
	if err != nil {
		return err
	}
	sessionsActive, err = meter.Int64UpDownCounter("bridge.sessions.active",
		metric.WithDescription("Sessions currently live in the registry"), metric.WithUnit("{session}"))
	if err != nil {
		return err
	}
	sessionsFinalized, err = meter.Int64Counter("bridge.sessions.finalized",
		metric.WithDescription("Sessions finalized, by any trigger"), metric.WithUnit("{session}"))
	if err != nil {
		return err
	}
	backendCalls, err = meter.Int64Counter("bridge.backend.calls",
		metric.WithDescription("Backend sink calls issued (trace/generation/event/score)"), metric.WithUnit("{call}"))
	if err != nil {
		return err
	}
	backendErrors, err = meter.Int64Counter("bridge.backend.errors",
		metric.WithDescription("Backend sink calls that failed delivery"), metric.WithUnit("{call}"))
	if err != nil {
		return err
	}
	sessionDuration, err = meter.Float64Histogram("bridge.session.duration",
		metric.WithDescription("Wall-clock duration from session creation to finalization"), metric.WithUnit("s"))
	if err != nil {
		return err
	}
	return nil
}

// RecordEnvelopeReceived increments the envelope counter.
func RecordEnvelopeReceived(ctx context.Context) {
	if envelopesReceived != nil {
		envelopesReceived.Add(ctx, 1)
	}
}

// RecordRecordMapped increments the mapped-record counter.
func RecordRecordMapped(ctx context.Context) {
	if recordsMapped != nil {
		recordsMapped.Add(ctx, 1)
	}
}

// RecordRecordIgnored increments the ignored-record counter.
func RecordRecordIgnored(ctx context.Context) {
	if recordsIgnored != nil {
		recordsIgnored.Add(ctx, 1)
	}
}

// RecordSessionOpened increments the active-session gauge.
func RecordSessionOpened(ctx context.Context) {
	if sessionsActive != nil {
		sessionsActive.Add(ctx, 1)
	}
}

// RecordSessionFinalized decrements the active-session gauge, counts
// the finalization, and records the session's lifetime duration.
func RecordSessionFinalized(ctx context.Context, lifetime time.Duration) {
	if sessionsActive != nil {
		sessionsActive.Add(ctx, -1)
	}
	if sessionsFinalized != nil {
		sessionsFinalized.Add(ctx, 1)
	}
	if sessionDuration != nil {
		sessionDuration.Record(ctx, lifetime.Seconds())
	}
}

// RecordBackendCall increments the backend-call counter, and the
// error counter too when ok is false.
func RecordBackendCall(ctx context.Context, ok bool) {
	if backendCalls != nil {
		backendCalls.Add(ctx, 1)
	}
	if !ok && backendErrors != nil {
		backendErrors.Add(ctx, 1)
	}
}

// Shutdown flushes and shuts down both providers. Safe to call even
// when Init was never invoked.
func Shutdown(ctx context.Context) error {
	var errs []error
	if traceProvider != nil {
		if err := traceProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := traceProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if meterProvider != nil {
		if err := meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
