package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/facility-lead-chat/cmd/mainconfig"
	"github.com/wolfman30/facility-lead-chat/internal/api/router"
	"github.com/wolfman30/facility-lead-chat/internal/app/bootstrap"
	"github.com/wolfman30/facility-lead-chat/internal/brand"
	appconfig "github.com/wolfman30/facility-lead-chat/internal/config"
	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/internal/dispatch"
	"github.com/wolfman30/facility-lead-chat/internal/intake"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/internal/webchat"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting facility lead chat API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.worker != nil {
		app.worker.Start(ctx)
		logger.Info("in-process dispatch worker started", "workers", cfg.WorkerCount)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     app.handler,
		ReadTimeout: 15 * time.Second,
		// WebSocket sessions stay open well past a request timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop receiving; in-flight deliveries run on their own context and
	// Wait returns once they finish.
	cancel()
	if app.worker != nil {
		app.worker.Wait()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// app is the assembled API process.
type app struct {
	handler http.Handler
	engine  *conversation.Engine
	leads   leads.Repository
	queue   dispatch.Queue
	worker  *dispatch.Worker
	closers []func()
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}

	profile, err := loadProfile(cfg.BrandProfilePath)
	if err != nil {
		return nil, err
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	registry, metricsHandler := setupMetrics()
	chatMetrics := metrics.NewChatMetrics(registry)
	deliveryMetrics := metrics.NewDeliveryMetrics(registry)

	checks := map[string]router.HealthCheck{}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = redisCheck(redisClient)
	}
	stores := bootstrap.BuildChatStores(redisClient, cfg.SessionTTL)

	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = postgresCheck(pool)
	}
	a.leads = bootstrap.BuildLeadRepository(pool, logger)

	deliveryDB, err := bootstrap.OpenDeliveryDB(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if deliveryDB != nil {
		a.closers = append(a.closers, func() { _ = deliveryDB.Close() })
	}

	a.queue, err = bootstrap.BuildQueue(cfg, awsCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if mq, ok := a.queue.(*dispatch.MemoryQueue); ok {
		a.closers = append(a.closers, mq.Close)
	}
	publisher := dispatch.NewPublisher(a.queue, logger)

	llm, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, chatMetrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = conversation.NewEngine(intake.NewMachine(profile), conversation.EngineDeps{
		Sessions:    stores.Sessions,
		Transcripts: stores.Transcripts,
		Answerer:    bootstrap.BuildAnswerer(cfg, llm, logger),
		Publisher:   publisher,
		Metrics:     chatMetrics,
		Logger:      logger,
	})

	widgetJS, err := webchat.RenderWidget(profile, cfg.PublicBaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("render widget: %w", err)
	}

	dispatcher, deliveryLog, err := bootstrap.BuildDispatcher(cfg, awsCfg, bootstrap.DispatchInputs{
		Profile:     profile,
		Leads:       a.leads,
		Transcripts: stores.Transcripts,
		DB:          deliveryDB,
		Metrics:     deliveryMetrics,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.worker, err = setupInlineWorker(cfg, a.queue, dispatcher, deliveryMetrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var deliveries *dispatch.AdminHandler
	if deliveryLog.Enabled() {
		deliveries = dispatch.NewAdminHandler(deliveryLog, logger)
		checks["delivery_log"] = sqlCheck(deliveryDB)
	}

	a.handler = router.New(&router.Config{
		Logger:             logger,
		Chat:               webchat.NewHandler(a.engine, widgetJS, logger),
		Leads:              leads.NewHandler(a.leads, publisher, logger),
		Deliveries:         deliveries,
		MetricsHandler:     metricsHandler,
		ReadinessChecks:    checks,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	return a, nil
}

func loadProfile(path string) (*brand.Profile, error) {
	if strings.TrimSpace(path) == "" {
		return brand.Default(), nil
	}
	profile, err := brand.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load brand profile: %w", err)
	}
	return profile, nil
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// setupInlineWorker returns a worker only for the in-memory queue; with SQS
// the dispatch-worker binary consumes the queue.
func setupInlineWorker(cfg *appconfig.Config, queue dispatch.Queue, deliverer dispatch.Deliverer, m *metrics.DeliveryMetrics, logger *logging.Logger) (*dispatch.Worker, error) {
	if !cfg.UseMemoryQueue {
		return nil, nil
	}
	return dispatch.NewWorker(queue, deliverer, m, logger,
		dispatch.WithWorkerCount(cfg.WorkerCount),
		dispatch.WithReceiveWaitSeconds(1),
	)
}

func redisCheck(client *redis.Client) router.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func postgresCheck(pool *pgxpool.Pool) router.HealthCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func sqlCheck(db *sql.DB) router.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
