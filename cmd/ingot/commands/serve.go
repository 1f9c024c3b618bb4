package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/logger"
	"github.com/veridata/ingot/pipeline"
)

// ServeCmd runs the long-lived worker pool over the run queue.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline worker pool",
	Long: `Start a long-lived worker pool that executes queued runs
concurrently. Queue runs with "ingot run --queue". When --config points
at a file, threshold changes are picked up without a restart.

Examples:
  ingot serve --dataset payments
  ingot serve --dataset payments --config ingot.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, _ := cmd.Flags().GetString("dataset")
		output, _ := cmd.Flags().GetString("output")
		return runServe(cmd, dataset, output)
	},
}

func init() {
	ServeCmd.Flags().String("dataset", "", "Dataset name (required)")
	ServeCmd.Flags().String("output", "published", "Directory published tables are written to")
	ServeCmd.MarkFlagRequired("dataset")
}

func runServe(cmd *cobra.Command, dataset, output string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := pipeline.NewRunStore(app.db, logger.Logger)
	runner := pipeline.NewRunner(ctx, buildOrchestrator(app, dataset, output), store, app.cfg.Pipeline, logger.Logger)

	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		watcher, err := config.NewWatcher(configPath)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		watcher.OnReload(func(cfg *config.Config) error {
			app.cfg = cfg
			runner.SetOrchestrator(buildOrchestrator(app, dataset, output))
			return nil
		})
		watcher.Start()
	}

	runner.Start()
	pterm.Info.Println("Worker pool started; Ctrl-C to stop")

	<-ctx.Done()
	pterm.Println()
	pterm.Info.Println("Shutting down, waiting for in-flight runs")
	runner.Stop()
	return nil
}
