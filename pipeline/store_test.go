package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
	qtest "github.com/veridata/ingot/internal/testing"
)

func testStore(t *testing.T) *RunStore {
	t.Helper()
	return NewRunStore(qtest.CreateTestDB(t), zap.NewNop().Sugar())
}

func TestCreateOrResumeCreatesOnce(t *testing.T) {
	store := testStore(t)

	first, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, first.Status)
	assert.Equal(t, StageLand, first.Stage)

	second, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateOrResumeClearsPriorError(t *testing.T) {
	store := testStore(t)

	run, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)

	run.Status = StatusFailed
	run.Stage = StagePublish
	run.Error = "publish target unavailable"
	require.NoError(t, store.Update(run))

	resumed, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, resumed.Status)
	assert.Empty(t, resumed.Error)
	assert.Equal(t, StagePublish, resumed.Stage)
}

func TestStageHistoryOrderedByExecution(t *testing.T) {
	store := testStore(t)

	run, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)

	now := time.Now().UTC()
	// Recorded out of order; loaded in stage order
	require.NoError(t, store.RecordStage(run.ID, StageRecord{Stage: StageValidate, Status: StatusCompleted, StartedAt: now}))
	require.NoError(t, store.RecordStage(run.ID, StageRecord{Stage: StageLand, Status: StatusCompleted, StartedAt: now}))

	got, err := store.Get("r1", "b1")
	require.NoError(t, err)
	require.Len(t, got.StageHistory, 2)
	assert.Equal(t, StageLand, got.StageHistory[0].Stage)
	assert.Equal(t, StageValidate, got.StageHistory[1].Stage)
	assert.True(t, got.stageCompleted(StageLand))
	assert.False(t, got.stageCompleted(StagePublish))
}

func TestRecordStageUpsertsPerStage(t *testing.T) {
	store := testStore(t)
	run, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.RecordStage(run.ID, StageRecord{Stage: StageLand, Status: StatusRunning, StartedAt: now}))
	require.NoError(t, store.RecordStage(run.ID, StageRecord{Stage: StageLand, Status: StatusCompleted, StartedAt: now, CompletedAt: &now}))

	got, err := store.Get("r1", "b1")
	require.NoError(t, err)
	require.Len(t, got.StageHistory, 1)
	assert.Equal(t, StatusCompleted, got.StageHistory[0].Status)
}

func TestGetNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.Get("nope", "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestEnqueueAndClaim(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Enqueue("r1", "b1", "payments"))
	// Re-enqueueing a known key is a no-op
	require.NoError(t, store.Enqueue("r1", "b1", "payments"))
	require.NoError(t, store.Enqueue("r2", "b1", "payments"))

	queued, err := store.List(StatusQueued, 0)
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	first, err := store.ClaimQueued()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, first.Status)

	second, err := store.ClaimQueued()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = store.ClaimQueued()
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListFiltersByStatus(t *testing.T) {
	store := testStore(t)

	run, err := store.CreateOrResume("r1", "b1", "payments")
	require.NoError(t, err)
	run.Status = StatusCompleted
	require.NoError(t, store.Update(run))
	require.NoError(t, store.Enqueue("r2", "b1", "payments"))

	completed, err := store.List(StatusCompleted, 0)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "r1", completed[0].ReleaseID)

	all, err := store.List("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
