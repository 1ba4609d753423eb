package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/beacon-analytics/beacon/pkg/api"
	"github.com/beacon-analytics/beacon/pkg/config"
	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/realtime"
	"github.com/beacon-analytics/beacon/pkg/reports"
	"github.com/beacon-analytics/beacon/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "beacon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local overrides; absence is not an error
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.ServiceName)

	accessLogger := logrus.New()
	accessLogger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(map[string]interface{}{
		"version":     cfg.ServiceVersion,
		"environment": cfg.Environment,
		"port":        cfg.Server.Port,
		"ops_port":    cfg.Server.OpsPort,
	}).Info("Starting beacon analytics service")

	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("init opentelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Redis is optional at startup: the service runs degraded without
	// it rather than crash-looping
	mgr := store.NewManager(store.Options{
		Addr:       cfg.Redis.Addr(),
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MaxRetries: cfg.Redis.MaxRetries,
		RetryDelay: cfg.Redis.RetryDelay,
	}, logger)
	if err := mgr.Connect(ctx); err != nil {
		logger.WithError(err).Warn("Starting without Redis, running degraded")
	}

	hub := realtime.NewHub(logger, metrics)
	go hub.Run()

	service := reports.NewService(mgr, logger, metrics, cfg.Analytics.RealtimeWindow, cfg.Analytics.CacheTTL)
	refresher, err := reports.NewRefresher(service, hub, logger, metrics, cfg.Analytics.RefreshSchedule)
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", cfg.Analytics.RefreshSchedule, err)
	}
	refresher.Start()

	server := api.NewServer(cfg, logger, accessLogger, metrics, mgr, hub)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.OpsPort,
		Handler: opsHandler(registry, mgr, hub, cfg.ServiceVersion),
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, opsServer)
	shutdown.Register("stats refresher", refresher.Stop)
	shutdown.Register("websocket hub", func(context.Context) error {
		hub.Shutdown()
		return nil
	})
	shutdown.Register("redis", func(context.Context) error {
		return mgr.Disconnect()
	})
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Ops server listening on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}

// opsHandler serves the private operational surface: Prometheus
// metrics plus liveness and readiness probes.
func opsHandler(registry *prometheus.Registry, mgr *store.Manager, hub *realtime.Hub, version string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Timeout: 10 * time.Second,
	}))
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(mgr, hub, version))
	return mux
}
