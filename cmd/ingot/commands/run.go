package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/veridata/ingot/adapt"
	"github.com/veridata/ingot/enrich"
	"github.com/veridata/ingot/fetch"
	"github.com/veridata/ingot/logger"
	"github.com/veridata/ingot/observe"
	"github.com/veridata/ingot/pipeline"
	"github.com/veridata/ingot/publish"
	"github.com/veridata/ingot/quarantine"
	"github.com/veridata/ingot/validate"
)

// RunCmd executes one pipeline run.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run",
	Long: `Execute one ingestion run through Land, Validate, Normalize,
Enrich, and Publish for a release+batch key.

Re-running a failed release+batch resumes the same run; every stage is
idempotent per key.

Examples:
  ingot run --release 2026-08 --batch 001 --dataset payments
  ingot run --release 2026-08 --batch 001 --dataset payments --output ./published`,
	RunE: func(cmd *cobra.Command, args []string) error {
		releaseID, _ := cmd.Flags().GetString("release")
		batchID, _ := cmd.Flags().GetString("batch")
		dataset, _ := cmd.Flags().GetString("dataset")
		output, _ := cmd.Flags().GetString("output")
		if queued, _ := cmd.Flags().GetBool("queue"); queued {
			return queueRun(cmd, releaseID, batchID, dataset)
		}
		return runPipeline(cmd, releaseID, batchID, dataset, output)
	},
}

func init() {
	RunCmd.Flags().String("release", "", "Release identifier (required)")
	RunCmd.Flags().String("batch", "", "Batch identifier (required)")
	RunCmd.Flags().String("dataset", "", "Dataset name (required)")
	RunCmd.Flags().String("output", "published", "Directory published tables are written to")
	RunCmd.Flags().Bool("queue", false, "Queue the run for a serve worker instead of executing now")
	RunCmd.MarkFlagRequired("release")
	RunCmd.MarkFlagRequired("batch")
	RunCmd.MarkFlagRequired("dataset")
}

// buildOrchestrator wires a pipeline orchestrator from the app's stores
// and the default collaborators.
func buildOrchestrator(app *appContext, dataset, output string) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(
		pipeline.Options{
			Dataset:        dataset,
			ArtifactRoot:   app.cfg.Artifacts.Root,
			LandingRetries: app.cfg.Pipeline.LandingRetryAttempts,
		},
		pipeline.NewRunStore(app.db, logger.Logger),
		app.registry,
		validate.NewEngine(app.cfg.Validation, logger.Logger),
		quarantine.NewTriager(app.cfg.Quarantine, logger.Logger),
		app.quarantine,
		observe.NewScorer(app.cfg.Observability, logger.Logger),
		app.reports,
		fetch.NewSource(app.cfg.Fetch, app.cfg.Sources, logger.Logger),
		adapt.NewCSVAdapter(nil, logger.Logger),
		enrich.NewJoiner(logger.Logger),
		publish.NewFilePublisher(output, logger.Logger),
		logger.Logger,
	)
}

func queueRun(cmd *cobra.Command, releaseID, batchID, dataset string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := pipeline.NewRunStore(app.db, logger.Logger).Enqueue(releaseID, batchID, dataset); err != nil {
		return fmt.Errorf("failed to queue run: %w", err)
	}
	pterm.Success.Printf("Run %s/%s queued for %s\n", releaseID, batchID, dataset)
	return nil
}

func runPipeline(cmd *cobra.Command, releaseID, batchID, dataset, output string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	orchestrator := buildOrchestrator(app, dataset, output)

	pterm.DefaultHeader.WithFullWidth().Printf("Pipeline run %s/%s", releaseID, batchID)
	pterm.Println()

	result, err := orchestrator.Execute(cmd.Context(), releaseID, batchID)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printRunResult(result)
	return nil
}

func printRunResult(result *pipeline.RunResult) {
	run := result.Run

	if run.Status == pipeline.StatusCompleted {
		pterm.Success.Printf("Run %s completed\n", run.ID)
	} else {
		pterm.Error.Printf("Run %s %s at stage %s\n", run.ID, run.Status, run.Stage)
		if run.Error != "" {
			pterm.Println("  " + run.Error)
		}
	}

	if result.Report != nil {
		fmt.Printf("\nValidation: %d passed, %d failed, %d warned (quality %.3f)\n",
			result.Report.Passed, result.Report.Failed, result.Report.Warned, result.Report.QualityScore)
	}
	if result.Quarantine != nil {
		fmt.Printf("Quarantined: %d records (priority %s)\n",
			len(result.Quarantine.Records), result.Quarantine.TriagePriority)
	}
	if result.Published != nil {
		fmt.Printf("Published: %d rows to %d location(s)\n",
			result.Published.RecordCount, len(result.Published.Locations))
	}
	if result.Observability != nil {
		fmt.Printf("Health: overall %.3f", result.Observability.OverallScore)
		for _, pillar := range []observe.Pillar{
			observe.PillarFreshness, observe.PillarVolume, observe.PillarSchema,
			observe.PillarQuality, observe.PillarLineage,
		} {
			fmt.Printf("  %s %.2f", pillar, result.Observability.Pillars[pillar].Score)
		}
		fmt.Println()
		for _, alert := range result.Observability.CriticalAlerts {
			pterm.Warning.Println(alert)
		}
	}
}
