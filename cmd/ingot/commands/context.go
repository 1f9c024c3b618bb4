package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/contract"
	"github.com/veridata/ingot/db"
	"github.com/veridata/ingot/logger"
	"github.com/veridata/ingot/observe"
	"github.com/veridata/ingot/quarantine"
)

// appContext holds everything a command needs, constructed per invocation
// and closed when the command returns.
type appContext struct {
	cfg        *config.Config
	db         *sql.DB
	registry   *contract.Registry
	quarantine *quarantine.Manager
	reports    *observe.Store
}

// openApp loads config, opens and migrates the database, and wires the
// shared stores.
func openApp(cmd *cobra.Command) (*appContext, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &appContext{
		cfg:        cfg,
		db:         database,
		registry:   contract.NewRegistry(database, cfg.Artifacts.Root, logger.Logger),
		quarantine: quarantine.NewManager(database, cfg.Artifacts.Root, logger.Logger),
		reports:    observe.NewStore(database, cfg.Artifacts.Root, logger.Logger),
	}, nil
}

func (a *appContext) Close() {
	a.db.Close()
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
