package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/veridata/ingot/contract"
)

// ContractCmd manages schema contracts.
var ContractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Manage versioned schema contracts",
	Long: `Schema contracts declare a dataset's expected columns, types, and
quality thresholds. Contracts are append-only: registering an existing
dataset+version pair is rejected, and changes require a new version.

Examples:
  ingot contract register payments.yaml
  ingot contract ls
  ingot contract show payments`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var contractRegisterCmd = &cobra.Command{
	Use:   "register <file.yaml>",
	Short: "Register a contract version from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runContractRegister(cmd, args[0])
	},
}

var contractLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List datasets with registered contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runContractLs(cmd)
	},
}

var contractShowCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Show a dataset's latest contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		return runContractShow(cmd, args[0], version)
	},
}

func init() {
	contractShowCmd.Flags().String("version", "", "Show a specific version instead of the latest")

	ContractCmd.AddCommand(contractRegisterCmd)
	ContractCmd.AddCommand(contractLsCmd)
	ContractCmd.AddCommand(contractShowCmd)
}

func runContractRegister(cmd *cobra.Command, path string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	c, err := contract.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load contract: %w", err)
	}
	if err := app.registry.Register(c); err != nil {
		return fmt.Errorf("failed to register contract: %w", err)
	}

	pterm.Success.Printf("Registered %s version %s (%d columns)\n",
		c.Dataset, c.Version, len(c.Columns))
	return nil
}

func runContractLs(cmd *cobra.Command) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	datasets, err := app.registry.Datasets()
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(datasets) == 0 {
		fmt.Println("No contracts registered")
		return nil
	}

	fmt.Printf("%-30s %-12s %s\n", "DATASET", "LATEST", "VERSIONS")
	fmt.Printf("%-30s %-12s %s\n", "-------", "------", "--------")
	for _, dataset := range datasets {
		versions, err := app.registry.Versions(dataset)
		if err != nil {
			return err
		}
		latest := ""
		if len(versions) > 0 {
			latest = versions[len(versions)-1]
		}
		fmt.Printf("%-30s %-12s %d\n", truncate(dataset, 30), latest, len(versions))
	}
	return nil
}

func runContractShow(cmd *cobra.Command, dataset, version string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var c *contract.Contract
	if version != "" {
		c, err = app.registry.Get(dataset, version)
	} else {
		c, err = app.registry.Latest(dataset)
	}
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	pterm.DefaultSection.Printf("%s %s", c.Dataset, c.Version)
	fmt.Printf("Primary key: %v\n", c.PrimaryKey)
	if len(c.PartitionBy) > 0 {
		fmt.Printf("Partitioned by: %v\n", c.PartitionBy)
	}

	fmt.Printf("\n%-25s %-10s %-9s %s\n", "COLUMN", "TYPE", "NULLABLE", "CONSTRAINTS")
	fmt.Printf("%-25s %-10s %-9s %s\n", "------", "----", "--------", "-----------")
	for _, col := range c.Columns {
		constraints := ""
		if len(col.AllowedValues) > 0 {
			constraints += fmt.Sprintf("in %v ", col.AllowedValues)
		}
		if col.Min != nil {
			constraints += fmt.Sprintf("min %g ", *col.Min)
		}
		if col.Max != nil {
			constraints += fmt.Sprintf("max %g ", *col.Max)
		}
		if col.Pattern != "" {
			constraints += "pattern " + col.Pattern
		}
		fmt.Printf("%-25s %-10s %-9t %s\n", truncate(col.Name, 25), col.Type, col.Nullable, constraints)
	}

	if len(c.BusinessRules) > 0 {
		fmt.Println("\nBusiness rules:")
		for _, rule := range c.BusinessRules {
			fmt.Println("  - " + rule)
		}
	}
	return nil
}
