package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aescanero/promptlab/internal/config"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
	"github.com/aescanero/promptlab/pkg/render"
)

var reportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Show a saved experiment or batch comparison",
	Long: `Render a full report for a saved experiment, or a comparison report
when the ID belongs to a batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var reportRaw bool

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print raw markdown without terminal styling")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := localHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	id := args[0]

	exp, err := store.GetExperiment(ctx, id)
	if err == nil {
		fmt.Print(renderMarkdown(render.ExperimentMarkdown(exp), reportRaw))
		return nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return err
	}

	batch, err := store.GetBatch(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("no experiment or batch with id %s", id)
		}
		return err
	}

	var exps []*domain.Experiment
	for _, r := range batch.Results {
		if r.ExperimentID == "" {
			continue
		}
		e, err := store.GetExperiment(ctx, r.ExperimentID)
		if err != nil {
			continue
		}
		exps = append(exps, e)
	}

	fmt.Print(renderMarkdown(render.BatchMarkdown(batch, exps), reportRaw))
	return nil
}
