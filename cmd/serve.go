package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tracebridge/otlp-bridge/backend"
	"github.com/tracebridge/otlp-bridge/config"
	"github.com/tracebridge/otlp-bridge/logger"
	"github.com/tracebridge/otlp-bridge/redisclient"
	"github.com/tracebridge/otlp-bridge/router"
	"github.com/tracebridge/otlp-bridge/session"
	"github.com/tracebridge/otlp-bridge/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the OTLP telemetry bridge HTTP receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("otlp-bridge starting")

	if err := cfg.Watch(log); err != nil {
		log.Warn().Err(err).Msg("config file watch failed — hot reload disabled")
	}

	ctx := context.Background()
	if err := telemetry.Init(ctx, telemetry.Options{Endpoint: cfg.OTelExporterEndpoint, Enabled: cfg.OTelEnabled}, log); err != nil {
		log.Warn().Err(err).Msg("self-telemetry init failed — continuing without it")
	}

	sink := newBackendSink(cfg, log)

	coord := newCoordinator(cfg, log)

	registry := session.NewRegistry(sink, log, cfg.HotSessionTimeout, coord)
	registry.Start()

	r := router.NewRouter(cfg, log, registry, sink)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("bridge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FlushTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	registry.Stop(shutdownCtx)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.FlushTimeout)
	defer flushCancel()
	if err := sink.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Msg("backend flush did not complete before deadline")
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("self-telemetry shutdown failed")
	}

	log.Info().Msg("bridge stopped gracefully")
	return nil
}

// newBackendSink builds the Langfuse sink when credentials are present,
// falling back to a log-only sink otherwise.
func newBackendSink(cfg *config.Config, log zerolog.Logger) backend.Sink {
	sink, err := backend.NewLangfuseSink(cfg.LangfuseHost, cfg.LangfusePublicKey, cfg.LangfuseSecretKey, 10*time.Second, log)
	if err != nil {
		log.Info().Msg("langfuse not configured — using log sink")
		return backend.NewLogSink(log)
	}
	log.Info().Str("host", cfg.LangfuseHost).Msg("langfuse backend sink connected")
	return sink
}

// newCoordinator builds a Redis-backed Coordinator when REDIS_URL is set,
// or nil for single-instance operation.
func newCoordinator(cfg *config.Config, log zerolog.Logger) session.Coordinator {
	if cfg.RedisURL == "" {
		return nil
	}
	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — running without cross-instance coordination")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Msg("redis ping failed — running without cross-instance coordination")
		return nil
	}
	log.Info().Msg("redis connected — cross-instance session coordination enabled")
	return session.NewRedisCoordinator(rc, 30*time.Second, log)
}
