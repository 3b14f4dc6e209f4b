package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/autonexops/autonex-console/internal/api"
	"github.com/autonexops/autonex-console/internal/approval"
	"github.com/autonexops/autonex-console/internal/cache"
	"github.com/autonexops/autonex-console/internal/config"
	"github.com/autonexops/autonex-console/internal/metrics"
	"github.com/autonexops/autonex-console/internal/orchestrator"
	"github.com/autonexops/autonex-console/internal/repo"
	"github.com/autonexops/autonex-console/internal/services"
	"github.com/autonexops/autonex-console/internal/store"
	"github.com/autonexops/autonex-console/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting autonex-console",
		slog.String("address", cfg.Server.Address),
		slog.String("platform", cfg.Platform.BaseURL))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NewMemoryProvider()
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-process cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	client := repo.NewTelemetryClient(repo.TelemetryConfig{
		BaseURL:       cfg.Platform.BaseURL,
		Timeout:       cfg.Platform.Timeout,
		RatePerSec:    cfg.Platform.RatePerSec,
		RateBurst:     cfg.Platform.RateBurst,
		Cache:         cacheProvider,
		ServicesTTL:   cfg.Cache.ServicesTTL,
		TimeseriesTTL: cfg.Cache.TimeseriesTTL,
	})

	sessionStore := store.New()
	approver := approval.New(logger, client, sessionStore)
	demo := orchestrator.New(logger, client, orchestrator.Config{
		DetectionDwell:      cfg.Demo.DetectionDwell,
		AnomalyPollInterval: cfg.Demo.AnomalyPollInterval,
		AnomalyPollDeadline: cfg.Demo.AnomalyPollDeadline,
		AnomalyLookback:     cfg.Demo.AnomalyLookback,
		AnomalyLimit:        cfg.Demo.AnomalyLimit,
	})
	console := services.New(logger, client, sessionStore, approver, demo, cfg.Polling)

	server, err := api.NewServer(cfg.Server, console, logger)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console.Start(ctx)
	defer console.Stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("operator API listening", slog.String("address", server.Address()))
		return server.Start()
	})
	if metricsServer != nil {
		group.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	<-groupCtx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("autonex-console stopped")
}
