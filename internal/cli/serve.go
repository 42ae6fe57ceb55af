package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/internal/application/experiments"
	"github.com/aescanero/promptlab/internal/application/workers"
	"github.com/aescanero/promptlab/internal/config"
	eventsmem "github.com/aescanero/promptlab/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/promptlab/pkg/adapters/events/redis"
	"github.com/aescanero/promptlab/pkg/adapters/llm"
	"github.com/aescanero/promptlab/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/promptlab/pkg/adapters/objectstore/gcs"
	storagemem "github.com/aescanero/promptlab/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/promptlab/pkg/adapters/storage/redis"
	"github.com/aescanero/promptlab/pkg/adapters/storage/sqlite"
	httpapi "github.com/aescanero/promptlab/pkg/api/http"
	"github.com/aescanero/promptlab/pkg/api/websocket"
	"github.com/aescanero/promptlab/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the promptlab API server",
	Long: `Start the HTTP API server with the configured storage and event bus
backends, the batch worker pool, and the WebSocket event stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting promptlab server",
		zap.String("version", version),
		zap.String("build_time", buildTime))

	ctx := context.Background()

	// One Redis client serves both the store and the event bus
	var redisClient *goredis.Client
	if cfg.Storage.Backend == "redis" || cfg.Events.Backend == "redis" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	store, err := buildStore(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to create experiment store", zap.Error(err))
	}

	eventBus, err := buildEventBus(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	var providerCfgs []llm.ProviderConfig
	for _, p := range cfg.LLM.ConfiguredProviders() {
		providerCfgs = append(providerCfgs, llm.ProviderConfig{
			Provider: p,
			APIKey:   cfg.LLM.APIKeyFor(p),
		})
	}
	registry, err := llm.NewRegistry(providerCfgs, logger)
	if err != nil {
		logger.Fatal("failed to create LLM clients", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	service := experiments.NewService(
		registry,
		store,
		eventBus,
		metricsCollector,
		experiments.NewValidator(registry.Providers()),
		logger,
		experiments.Defaults{
			Provider:    cfg.LLM.DefaultProvider,
			Model:       cfg.LLM.DefaultModel,
			MaxTokens:   cfg.LLM.DefaultMaxTokens,
			Temperature: cfg.LLM.DefaultTemperature,
		},
		cfg.LLM.RequestTimeout,
		cfg.Timeouts.BatchExecutionTimeout,
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		eventBus,
		service,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Avatar uploads need a bucket; without one the endpoint reports
	// an error instead
	var objects ports.ObjectStore
	if cfg.Avatars.Bucket != "" {
		objects, err = gcs.NewStore(ctx, gcs.Config{
			Bucket:          cfg.Avatars.Bucket,
			CredentialsFile: cfg.Avatars.CredentialsFile,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create object store", zap.Error(err))
		}
	} else {
		logger.Info("avatar bucket not configured, uploads disabled")
	}

	httpServer := httpapi.NewServer(&httpapi.Config{
		Port:    cfg.HTTPPort,
		Service: service,
		Objects: objects,
		Metrics: metricsCollector,
		Logger:  logger,
	})

	wsHandler := websocket.NewHandler(eventBus, metricsCollector, logger)
	httpServer.SetupWebSocket(wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("promptlab server started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("events_backend", cfg.Events.Backend),
		zap.Strings("providers", registry.Providers()),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("experiment service shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if objects != nil {
		if err := objects.Close(); err != nil {
			logger.Error("object store close error", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("experiment store close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("promptlab server shut down complete")
	return nil
}

// buildStore creates the experiment store for the configured backend
func buildStore(cfg *config.Config, redisClient *goredis.Client, logger *zap.Logger) (ports.Store, error) {
	switch cfg.Storage.Backend {
	case "redis":
		return storageredis.NewStore(redisClient, cfg.Storage.ExperimentTTL, logger), nil
	case "sqlite":
		path, err := cfg.Storage.SQLiteFile()
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(path)
	default:
		return storagemem.NewStore(), nil
	}
}

// buildEventBus creates the event bus for the configured backend
func buildEventBus(cfg *config.Config, redisClient *goredis.Client, logger *zap.Logger) (ports.EventBus, error) {
	switch cfg.Events.Backend {
	case "redis":
		return eventsredis.NewStreamsBus(
			redisClient,
			"promptlab-workers",
			fmt.Sprintf("promptlab-%d", os.Getpid()),
			logger,
		)
	default:
		return eventsmem.NewBus(), nil
	}
}
