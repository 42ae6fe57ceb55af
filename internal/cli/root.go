package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "promptlab",
	Short: "Prompt experimentation platform for LLM providers",
	Long: `promptlab runs prompts against LLM providers, records token usage and
cost for every call, and compares responses across models.

Run single experiments from the terminal, compare providers side by
side, browse past results, or start the API server for notebooks and
dashboards.`,
}

// Execute runs the root command. Build metadata is injected from main.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
