package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/veridata/ingot/logger"
	"github.com/veridata/ingot/observe"
	"github.com/veridata/ingot/pipeline"
)

// ReportCmd shows runs and their observability reports.
var ReportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show a run's observability report",
	Long: `Without arguments, lists recent runs. With a run id, shows the
run's five-pillar observability report.

Examples:
  ingot report
  ingot report 6f1d2c3b-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			limit, _ := cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")
			return runReportLs(cmd, pipeline.Status(status), limit)
		}
		return runReportShow(cmd, args[0])
	},
}

func init() {
	ReportCmd.Flags().Int("limit", 20, "Maximum runs to display")
	ReportCmd.Flags().String("status", "", "Filter runs by status (queued, running, completed, failed)")
}

func runReportLs(cmd *cobra.Command, status pipeline.Status, limit int) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	runs, err := pipeline.NewRunStore(app.db, logger.Logger).List(status, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-38s %-14s %-8s %-10s %-10s %s\n",
		"RUN ID", "RELEASE/BATCH", "DATASET", "STATUS", "STAGE", "STARTED")
	fmt.Printf("%-38s %-14s %-8s %-10s %-10s %s\n",
		"------", "-------------", "-------", "------", "-----", "-------")
	for _, run := range runs {
		fmt.Printf("%-38s %-14s %-8s %-10s %-10s %s\n",
			run.ID,
			truncate(run.ReleaseID+"/"+run.BatchID, 14),
			truncate(run.Dataset, 8),
			run.Status,
			run.Stage,
			run.StartedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d run(s)\n", len(runs))
	return nil
}

func runReportShow(cmd *cobra.Command, runID string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.reports.Get(runID)
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}

	pterm.DefaultSection.Printf("Run %s (%s %s/%s)",
		report.RunID, report.Dataset, report.ReleaseID, report.BatchID)
	fmt.Printf("Overall score: %.3f\n\n", report.OverallScore)

	fmt.Printf("%-12s %-7s %s\n", "PILLAR", "SCORE", "DETAIL")
	fmt.Printf("%-12s %-7s %s\n", "------", "-----", "------")
	for _, pillar := range []observe.Pillar{
		observe.PillarFreshness, observe.PillarVolume, observe.PillarSchema,
		observe.PillarQuality, observe.PillarLineage,
	} {
		m := report.Pillars[pillar]
		fmt.Printf("%-12s %-7.2f %s\n", pillar, m.Score, m.Detail)
	}

	for _, alert := range report.CriticalAlerts {
		pterm.Error.Println(alert)
	}
	for _, alert := range report.WarningAlerts {
		pterm.Warning.Println(alert)
	}
	return nil
}
