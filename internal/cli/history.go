package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aescanero/promptlab/internal/config"
	"github.com/aescanero/promptlab/pkg/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved experiments",
	Long:  `List experiments from the local history, newest first.`,
	RunE:  runHistory,
}

var (
	historyLimit int
	historyRaw   bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of experiments to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print raw markdown without terminal styling")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := localHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	exps, err := store.ListExperiments(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(exps) == 0 {
		fmt.Println("no experiments saved yet")
		return nil
	}

	fmt.Print(renderMarkdown(render.HistoryMarkdown(exps), historyRaw))
	return nil
}
