package commands

import (
	"fmt"
	"os/user"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/veridata/ingot/quarantine"
	"github.com/veridata/ingot/validate"
)

// QuarantineCmd manages quarantined records.
var QuarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Triage records rejected by validation",
	Long: `Quarantined records are rows that failed validation, classified by
error taxonomy with remediation guidance. Records move through an
explicit lifecycle; remediation and escalation stamp the acting user.

Examples:
  ingot quarantine ls --status new
  ingot quarantine show 3f2a9c1b8d6e4075
  ingot quarantine remediate 3f2a9c1b8d6e4075 --notes "backfilled from source"
  ingot quarantine escalate 3f2a9c1b8d6e4075 --reason "possible upstream unit change"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var quarantineLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List quarantined records",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, _ := cmd.Flags().GetString("dataset")
		status, _ := cmd.Flags().GetString("status")
		severity, _ := cmd.Flags().GetString("severity")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		return runQuarantineLs(cmd, quarantine.ListFilter{
			Dataset:  dataset,
			Status:   quarantine.Status(status),
			Severity: validate.Severity(severity),
			Category: quarantine.Category(category),
			Limit:    limit,
		})
	},
}

var quarantineShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one quarantined record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuarantineShow(cmd, args[0])
	},
}

var quarantineRemediateCmd = &cobra.Command{
	Use:   "remediate <record-id>",
	Short: "Mark a record remediated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		actor, _ := cmd.Flags().GetString("actor")
		return runQuarantineTransition(cmd, args[0], notes, actor, "remediated",
			func(m *quarantine.Manager, id, notes, actor string) error {
				return m.Remediate(id, notes, actor)
			})
	},
}

var quarantineEscalateCmd = &cobra.Command{
	Use:   "escalate <record-id>",
	Short: "Escalate a record for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		actor, _ := cmd.Flags().GetString("actor")
		return runQuarantineTransition(cmd, args[0], reason, actor, "escalated",
			func(m *quarantine.Manager, id, reason, actor string) error {
				return m.Escalate(id, reason, actor)
			})
	},
}

func init() {
	quarantineLsCmd.Flags().String("dataset", "", "Filter by dataset")
	quarantineLsCmd.Flags().String("status", "", "Filter by status (new, under_review, approved, rejected, remediated, escalated)")
	quarantineLsCmd.Flags().String("severity", "", "Filter by severity (critical, warning, info)")
	quarantineLsCmd.Flags().String("category", "", "Filter by taxonomy category")
	quarantineLsCmd.Flags().Int("limit", 20, "Maximum records to display")

	quarantineRemediateCmd.Flags().String("notes", "", "Remediation notes")
	quarantineRemediateCmd.Flags().String("actor", "", "Acting user (default: current OS user)")
	quarantineEscalateCmd.Flags().String("reason", "", "Escalation reason")
	quarantineEscalateCmd.Flags().String("actor", "", "Acting user (default: current OS user)")

	QuarantineCmd.AddCommand(quarantineLsCmd)
	QuarantineCmd.AddCommand(quarantineShowCmd)
	QuarantineCmd.AddCommand(quarantineRemediateCmd)
	QuarantineCmd.AddCommand(quarantineEscalateCmd)
}

func runQuarantineLs(cmd *cobra.Command, filter quarantine.ListFilter) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	records, err := app.quarantine.ListRecords(filter)
	if err != nil {
		return fmt.Errorf("failed to list quarantine records: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No quarantined records found")
		return nil
	}

	fmt.Printf("%-18s %-20s %-18s %-10s %-12s %s\n",
		"RECORD ID", "DATASET", "CATEGORY", "SEVERITY", "STATUS", "RULE")
	fmt.Printf("%-18s %-20s %-18s %-10s %-12s %s\n",
		"---------", "-------", "--------", "--------", "------", "----")
	for _, r := range records {
		fmt.Printf("%-18s %-20s %-18s %-10s %-12s %s\n",
			r.ID,
			truncate(r.Dataset, 20),
			r.Category,
			r.Severity,
			r.Status,
			truncate(r.Rule, 30))
	}
	fmt.Printf("\nTotal: %d record(s)\n", len(records))
	return nil
}

func runQuarantineShow(cmd *cobra.Command, id string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	r, err := app.quarantine.GetRecord(id)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	pterm.DefaultSection.Printf("Record %s", r.ID)
	fmt.Printf("Dataset:    %s (release %s, batch %s)\n", r.Dataset, r.ReleaseID, r.BatchID)
	fmt.Printf("Rule:       %s\n", r.Rule)
	fmt.Printf("Category:   %s\n", r.Category)
	fmt.Printf("Severity:   %s\n", r.Severity)
	fmt.Printf("Status:     %s\n", r.Status)
	fmt.Printf("Auto-fix:   %t (expected %d min)\n", r.AutoRemediable, r.ExpectedFixMinutes)
	if r.Guidance != "" {
		fmt.Printf("Guidance:   %s\n", r.Guidance)
	}
	if r.ReviewedBy != "" {
		fmt.Printf("Reviewed:   %s at %s\n", r.ReviewedBy, r.ReviewedAt.Format("2006-01-02 15:04"))
	}
	if r.Notes != "" {
		fmt.Printf("Notes:      %s\n", r.Notes)
	}

	fmt.Println("\nFields:")
	for k, v := range r.Fields {
		fmt.Printf("  %s: %v\n", k, v)
	}
	return nil
}

func runQuarantineTransition(cmd *cobra.Command, id, notes, actor, verb string,
	transition func(*quarantine.Manager, string, string, string) error) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if actor == "" {
		if u, err := user.Current(); err == nil {
			actor = u.Username
		}
	}

	if err := transition(app.quarantine, id, notes, actor); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	pterm.Success.Printf("Record %s %s by %s\n", id, verb, actor)
	return nil
}
