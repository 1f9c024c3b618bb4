package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/contract"
	qtest "github.com/veridata/ingot/internal/testing"
	"github.com/veridata/ingot/logger"
	"github.com/veridata/ingot/observe"
	"github.com/veridata/ingot/pipeline"
	"github.com/veridata/ingot/quarantine"
)

func testApp(t *testing.T) *appContext {
	t.Helper()
	database := qtest.CreateTestDB(t)
	root := t.TempDir()
	return &appContext{
		cfg: &config.Config{
			Artifacts: config.ArtifactsConfig{Root: root},
			Pipeline: config.PipelineConfig{
				Workers:             1,
				PollIntervalSeconds: 1,
				DispatchPerMinute:   600,
			},
		},
		db:         database,
		registry:   contract.NewRegistry(database, root, logger.Logger),
		quarantine: quarantine.NewManager(database, root, logger.Logger),
		reports:    observe.NewStore(database, root, logger.Logger),
	}
}

func TestBuildOrchestratorWiresCollaborators(t *testing.T) {
	app := testApp(t)
	require.NotNil(t, buildOrchestrator(app, "payments", t.TempDir()))
}

func TestServeRunnerStartStopAndReloadSwap(t *testing.T) {
	app := testApp(t)
	store := pipeline.NewRunStore(app.db, logger.Logger)
	runner := pipeline.NewRunner(context.Background(),
		buildOrchestrator(app, "payments", t.TempDir()),
		store, app.cfg.Pipeline, logger.Logger)

	runner.Start()
	runner.SetOrchestrator(buildOrchestrator(app, "payments", t.TempDir()))
	runner.Stop()
}
