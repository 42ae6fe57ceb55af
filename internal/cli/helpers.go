package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/promptlab/internal/application/experiments"
	"github.com/aescanero/promptlab/internal/config"
	eventsmem "github.com/aescanero/promptlab/pkg/adapters/events/memory"
	"github.com/aescanero/promptlab/pkg/adapters/llm"
	storagemem "github.com/aescanero/promptlab/pkg/adapters/storage/memory"
	"github.com/aescanero/promptlab/pkg/adapters/storage/sqlite"
	"github.com/aescanero/promptlab/pkg/ports"
)

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}

// localHistory opens the SQLite experiment history used by one-shot
// commands. The server's STORAGE_BACKEND setting does not apply here.
func localHistory(cfg *config.Config) (ports.Store, error) {
	path, err := cfg.Storage.SQLiteFile()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open experiment history: %w", err)
	}
	return store, nil
}

// localStack wires an in-process experiment service over the SQLite
// history and a memory event bus. With persist false the run is kept in
// a throwaway memory store instead. The caller runs cleanup when done.
func localStack(cfg *config.Config, logger *zap.Logger, persist bool) (*experiments.Service, ports.EventBus, func(), error) {
	var store ports.Store
	if persist {
		var err error
		store, err = localHistory(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		store = storagemem.NewStore()
	}

	providers := cfg.LLM.ConfiguredProviders()
	if len(providers) == 0 {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("no provider API key configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}

	var providerCfgs []llm.ProviderConfig
	for _, p := range providers {
		providerCfgs = append(providerCfgs, llm.ProviderConfig{
			Provider: p,
			APIKey:   cfg.LLM.APIKeyFor(p),
		})
	}
	registry, err := llm.NewRegistry(providerCfgs, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	bus := eventsmem.NewBus()

	svc := experiments.NewService(
		registry,
		store,
		bus,
		ports.NopMetrics{},
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

	cleanup := func() {
		_ = bus.Close()
		_ = store.Close()
	}
	return svc, bus, cleanup, nil
}

// renderMarkdown pretty-prints markdown for the terminal, falling back
// to the raw text when rendering fails
func renderMarkdown(md string, raw bool) string {
	if raw {
		return md
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}

	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
