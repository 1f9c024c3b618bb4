package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridata/ingot/cmd/ingot/commands"
	"github.com/veridata/ingot/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ingot",
	Short: "ingot - government dataset ingestion pipeline",
	Long: `ingot lands, validates, normalizes, enriches, and publishes
government tabular datasets against versioned schema contracts.

Available commands:
  run        - Execute or queue one pipeline run for a release+batch
  serve      - Run the worker pool over queued runs
  contract   - Manage versioned schema contracts
  quarantine - Triage records rejected by validation
  report     - Show a run's observability report

Examples:
  ingot run --release 2026-08 --batch 001
  ingot run --release 2026-08 --batch 001 --queue
  ingot serve --dataset payments
  ingot contract register payments.yaml
  ingot quarantine ls --status new
  ingot report <run-id>`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./ingot.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ContractCmd)
	rootCmd.AddCommand(commands.QuarantineCmd)
	rootCmd.AddCommand(commands.ReportCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
