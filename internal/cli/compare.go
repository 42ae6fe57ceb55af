package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aescanero/promptlab/internal/application/workers"
	"github.com/aescanero/promptlab/internal/config"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
	"github.com/aescanero/promptlab/pkg/render"
)

var compareCmd = &cobra.Command{
	Use:   "compare <prompt>",
	Short: "Run one prompt against several models and compare",
	Long: `Run the same prompt against several provider/model targets in
parallel and print a comparison of responses, token usage and cost.

Targets are provider/model pairs; omitting the model uses the provider
default. Without --target, every provider with an API key is compared
on its default model.

Examples:
  promptlab compare "Summarize the CAP theorem"
  promptlab compare --target anthropic/claude-3-5-haiku-20241022 --target openai/gpt-4o-mini "Tell a joke"`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

var (
	compareTargets     []string
	compareSystem      string
	compareMaxTokens   int
	compareTemperature float64
	compareRaw         bool
)

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringArrayVar(&compareTargets, "target", nil, "provider/model target (repeatable)")
	compareCmd.Flags().StringVar(&compareSystem, "system", "", "System prompt")
	compareCmd.Flags().IntVar(&compareMaxTokens, "max-tokens", 0, "Maximum output tokens per target")
	compareCmd.Flags().Float64Var(&compareTemperature, "temperature", 0, "Sampling temperature (0-2)")
	compareCmd.Flags().BoolVar(&compareRaw, "raw", false, "Print raw markdown without terminal styling")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger("warn")
	defer func() { _ = logger.Sync() }()

	service, bus, cleanup, err := localStack(cfg, logger, true)
	if err != nil {
		return err
	}
	defer cleanup()

	targets, err := resolveCompareTargets(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An in-process pool executes the batch tasks
	pool := workers.NewPool(len(targets), bus, service, ports.NopMetrics{}, logger, cfg.Workers.HealthCheckInterval)
	if err := pool.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()
		_ = pool.Shutdown(shutdownCtx)
	}()

	req := domain.BatchRequest{
		Prompt:    args[0],
		System:    compareSystem,
		Targets:   targets,
		MaxTokens: compareMaxTokens,
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &compareTemperature
	}

	batch, err := service.SubmitBatch(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("comparing %d targets...\n", len(batch.Results))

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.BatchExecutionTimeout)
	defer cancel()

	if _, err := service.WaitBatch(waitCtx, batch.ID); err != nil {
		return fmt.Errorf("batch did not finish: %w", err)
	}

	final, exps, err := service.BatchExperiments(ctx, batch.ID)
	if err != nil {
		return err
	}

	fmt.Print(renderMarkdown(render.BatchMarkdown(final, exps), compareRaw))
	return nil
}

// resolveCompareTargets parses --target flags, defaulting to every
// configured provider on its default model
func resolveCompareTargets(cfg *config.Config) ([]domain.Target, error) {
	if len(compareTargets) == 0 {
		var targets []domain.Target
		for _, p := range cfg.LLM.ConfiguredProviders() {
			targets = append(targets, domain.Target{Provider: p})
		}
		return targets, nil
	}

	var targets []domain.Target
	for _, raw := range compareTargets {
		target, err := domain.ParseTarget(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}
