package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aescanero/promptlab/internal/config"
	"github.com/aescanero/promptlab/pkg/domain"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List known providers, models and pricing",
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configured := make(map[string]bool)
	for _, p := range cfg.LLM.ConfiguredProviders() {
		configured[p] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tNAME\tPROVIDER\tINPUT $/1M\tOUTPUT $/1M\tKEY")
	for _, p := range domain.AllPricing() {
		key := "-"
		if configured[p.Provider] {
			key = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			p.ID, p.DisplayName, p.Provider, p.InputPerMillion, p.OutputPerMillion, key)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\ndefault provider: %s\n", cfg.LLM.DefaultProvider)
	if len(configured) == 0 {
		fmt.Println("no API keys configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	} else {
		fmt.Printf("configured: %s\n", strings.Join(cfg.LLM.ConfiguredProviders(), ", "))
	}
	return nil
}
