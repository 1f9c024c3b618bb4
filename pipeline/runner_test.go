package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata/ingot/config"
)

func testRunner(t *testing.T, f *fixture) *Runner {
	t.Helper()
	return NewRunner(context.Background(), f.orchestrator, f.runs, config.PipelineConfig{
		Workers:             2,
		PollIntervalSeconds: 1,
		DispatchPerMinute:   600,
	}, zap.NewNop().Sugar())
}

func TestProcessNextExecutesQueuedRun(t *testing.T) {
	f := newFixture(t, paymentsTable(10))
	runner := testRunner(t, f)

	require.NoError(t, runner.Enqueue("r1", "b1", "payments"))
	require.NoError(t, runner.processNext())

	run, err := f.runs.Get("r1", "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 1, f.publisher.calls)
}

func TestProcessNextEmptyQueueIsNotAnError(t *testing.T) {
	f := newFixture(t, paymentsTable(10))
	runner := testRunner(t, f)

	require.NoError(t, runner.processNext())
	assert.Equal(t, 0, f.publisher.calls)
}

func TestProcessNextDrainsQueueInOrder(t *testing.T) {
	f := newFixture(t, paymentsTable(10))
	runner := testRunner(t, f)

	require.NoError(t, runner.Enqueue("r1", "b1", "payments"))
	require.NoError(t, runner.Enqueue("r2", "b1", "payments"))

	require.NoError(t, runner.processNext())
	require.NoError(t, runner.processNext())
	require.NoError(t, runner.processNext()) // empty queue

	for _, release := range []string{"r1", "r2"} {
		run, err := f.runs.Get(release, "b1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status, "release %s", release)
	}
}

func TestSetOrchestratorSwapsDispatch(t *testing.T) {
	f := newFixture(t, paymentsTable(10))
	runner := testRunner(t, f)

	replacement := &fakePublisher{}
	runner.SetOrchestrator(f.orchestratorWith(replacement))

	require.NoError(t, runner.Enqueue("r1", "b1", "payments"))
	require.NoError(t, runner.processNext())

	assert.Equal(t, 1, replacement.calls)
	assert.Equal(t, 0, f.publisher.calls)
}

func TestRunnerStartStop(t *testing.T) {
	f := newFixture(t, paymentsTable(10))
	runner := testRunner(t, f)

	runner.Start()
	runner.Stop()

	// Restart after stop recreates the worker context
	runner.Start()
	runner.Stop()
}
