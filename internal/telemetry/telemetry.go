// Package telemetry sets up the client's Prometheus registry, the optional
// /metrics listener and the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flemzord/stockchat/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Telemetry bundles the metrics registry and tracer provider.
type Telemetry struct {
	Registry       *prometheus.Registry
	TracerProvider trace.TracerProvider

	logger   *slog.Logger
	sdk      *sdktrace.TracerProvider
	server   *http.Server
	listener net.Listener
}

// Setup builds the registry and tracer provider described by cfg. Tracing
// is a no-op unless cfg.OTLPEndpoint is set.
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	t := &Telemetry{
		Registry:       reg,
		TracerProvider: noop.NewTracerProvider(),
		logger:         logger,
	}

	if cfg.OTLPEndpoint == "" {
		return t, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	t.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", version),
		)),
	)
	t.TracerProvider = t.sdk
	logger.Debug("telemetry: tracing enabled", "endpoint", cfg.OTLPEndpoint)
	return t, nil
}

// Handler returns the router serving /metrics and /health.
func (t *Telemetry) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{}))
	return r
}

// Serve starts the metrics listener on addr in the background and returns
// the bound address.
func (t *Telemetry) Serve(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("telemetry: listen %s: %w", addr, err)
	}
	t.listener = ln
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("telemetry: metrics server stopped", "error", err)
		}
	}()
	t.logger.Info("telemetry: serving metrics", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Shutdown stops the metrics listener and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: stopping metrics server: %w", err))
		}
	}
	if t.sdk != nil {
		if err := t.sdk.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: flushing traces: %w", err))
		}
	}
	return errors.Join(errs...)
}
