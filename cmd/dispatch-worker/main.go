package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/facility-lead-chat/cmd/mainconfig"
	"github.com/wolfman30/facility-lead-chat/internal/app/bootstrap"
	"github.com/wolfman30/facility-lead-chat/internal/brand"
	appconfig "github.com/wolfman30/facility-lead-chat/internal/config"
	"github.com/wolfman30/facility-lead-chat/internal/dispatch"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("dispatch worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dispatch worker stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.UseMemoryQueue {
		return fmt.Errorf("USE_MEMORY_QUEUE=true: the API server delivers leads in-process")
	}

	profile := brand.Default()
	if cfg.BrandProfilePath != "" {
		loaded, err := brand.LoadFile(cfg.BrandProfilePath)
		if err != nil {
			return fmt.Errorf("load brand profile: %w", err)
		}
		profile = loaded
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	deliveryMetrics := metrics.NewDeliveryMetrics(registry)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	stores := bootstrap.BuildChatStores(redisClient, cfg.SessionTTL)

	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	deliveryDB, err := bootstrap.OpenDeliveryDB(cfg)
	if err != nil {
		return err
	}
	if deliveryDB != nil {
		defer func() { _ = deliveryDB.Close() }()
	}

	queue, err := bootstrap.BuildQueue(cfg, awsCfg)
	if err != nil {
		return err
	}
	dispatcher, _, err := bootstrap.BuildDispatcher(cfg, awsCfg, bootstrap.DispatchInputs{
		Profile:     profile,
		Leads:       bootstrap.BuildLeadRepository(pool, logger),
		Transcripts: stores.Transcripts,
		DB:          deliveryDB,
		Metrics:     deliveryMetrics,
	}, logger)
	if err != nil {
		return err
	}

	worker, err := dispatch.NewWorker(queue, dispatcher, deliveryMetrics, logger,
		dispatch.WithWorkerCount(cfg.WorkerCount),
		dispatch.WithReceiveWaitSeconds(20),
		dispatch.WithReceiveBatchSize(10),
	)
	if err != nil {
		return err
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("dispatch worker started", "queue", cfg.LeadQueueURL, "workers", cfg.WorkerCount)
	worker.Run(ctx)
	return nil
}
