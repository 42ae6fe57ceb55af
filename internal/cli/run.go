package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aescanero/promptlab/internal/config"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/render"
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run one prompt and save the experiment",
	Long: `Run a prompt against one LLM provider, print the response with token
usage and cost, and save the experiment to the local history.

Examples:
  promptlab run "Explain goroutines in one paragraph"
  promptlab run --provider openai --model gpt-4o-mini "Write a haiku about Go"
  promptlab run --system "Answer in Spanish" "What is a channel?"`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runProvider    string
	runModel       string
	runSystem      string
	runMaxTokens   int
	runTemperature float64
	runRaw         bool
	runNoSave      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider (defaults to DEFAULT_LLM_PROVIDER)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model ID (defaults to the provider default)")
	runCmd.Flags().StringVar(&runSystem, "system", "", "System prompt")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "Maximum output tokens")
	runCmd.Flags().Float64Var(&runTemperature, "temperature", 0, "Sampling temperature (0-2)")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "Print raw markdown without terminal styling")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not record the experiment in the local history")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger("warn")
	defer func() { _ = logger.Sync() }()

	service, _, cleanup, err := localStack(cfg, logger, !runNoSave)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := domain.CompletionRequest{
		Provider:  runProvider,
		Model:     runModel,
		Prompt:    args[0],
		System:    runSystem,
		MaxTokens: runMaxTokens,
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &runTemperature
	}

	exp, err := service.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Print(renderMarkdown(render.ExperimentMarkdown(exp), runRaw))
	return nil
}
