package pipeline

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
)

// RunStore persists runs and their stage history. One row exists per
// (release_id, batch_id); re-executing the same key resumes that row.
type RunStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewRunStore creates a run store over an open database.
func NewRunStore(db *sql.DB, logger *zap.SugaredLogger) *RunStore {
	return &RunStore{db: db, logger: logger}
}

// CreateOrResume returns the run for a release+batch, creating it if this
// is the first execution. An existing run is reloaded with its stage
// history so the orchestrator can skip already-completed stages.
func (s *RunStore) CreateOrResume(releaseID, batchID, dataset string) (*Run, error) {
	existing, err := s.Get(releaseID, batchID)
	if err == nil {
		existing.Status = StatusRunning
		existing.Error = ""
		if err := s.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}

	now := time.Now().UTC()
	run := &Run{
		ID:        uuid.NewString(),
		ReleaseID: releaseID,
		BatchID:   batchID,
		Dataset:   dataset,
		Status:    StatusRunning,
		Stage:     StageLand,
		StartedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.Exec(
		`INSERT INTO pipeline_runs (id, release_id, batch_id, dataset, status, stage, error, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		run.ID, run.ReleaseID, run.BatchID, run.Dataset,
		string(run.Status), string(run.Stage), run.StartedAt, run.UpdatedAt,
	)
	if err != nil {
		// A concurrent Execute may have won the insert; resume its row.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return s.Get(releaseID, batchID)
		}
		return nil, errors.Wrap(err, "failed to create pipeline run")
	}
	return run, nil
}

// Enqueue records a run in queued state for the Runner to pick up.
// Enqueueing an already-known release+batch is a no-op.
func (s *RunStore) Enqueue(releaseID, batchID, dataset string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO pipeline_runs (id, release_id, batch_id, dataset, status, stage, error, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT (release_id, batch_id) DO NOTHING`,
		uuid.NewString(), releaseID, batchID, dataset,
		string(StatusQueued), string(StageLand), now, now,
	)
	if err != nil {
		return errors.Wrap(err, "failed to enqueue pipeline run")
	}
	return nil
}

// ClaimQueued atomically claims the oldest queued run for execution.
// Returns ErrNotFound when the queue is empty.
func (s *RunStore) ClaimQueued() (*Run, error) {
	run, err := s.scanRun(s.db.QueryRow(
		`SELECT id, release_id, batch_id, dataset, status, stage, error, started_at, completed_at, updated_at
		 FROM pipeline_runs WHERE status = ? ORDER BY started_at ASC LIMIT 1`,
		string(StatusQueued),
	))
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE pipeline_runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), time.Now().UTC(), run.ID, string(StatusQueued),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim queued run")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		// Another worker claimed it first
		return nil, errors.NewNotFoundError("no queued runs")
	}
	run.Status = StatusRunning
	return run, nil
}

// Get loads a run with its stage history by release+batch key.
func (s *RunStore) Get(releaseID, batchID string) (*Run, error) {
	run, err := s.scanRun(s.db.QueryRow(
		`SELECT id, release_id, batch_id, dataset, status, stage, error, started_at, completed_at, updated_at
		 FROM pipeline_runs WHERE release_id = ? AND batch_id = ?`,
		releaseID, batchID,
	))
	if err != nil {
		return nil, err
	}
	if err := s.loadStageHistory(run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetByID loads a run with its stage history by id.
func (s *RunStore) GetByID(id string) (*Run, error) {
	run, err := s.scanRun(s.db.QueryRow(
		`SELECT id, release_id, batch_id, dataset, status, stage, error, started_at, completed_at, updated_at
		 FROM pipeline_runs WHERE id = ?`, id,
	))
	if err != nil {
		return nil, err
	}
	if err := s.loadStageHistory(run); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns runs, newest first, optionally filtered by status.
func (s *RunStore) List(status Status, limit int) ([]*Run, error) {
	query := `SELECT id, release_id, batch_id, dataset, status, stage, error, started_at, completed_at, updated_at
	          FROM pipeline_runs`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pipeline runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating pipeline runs")
	}
	return runs, nil
}

// Update persists the run's mutable fields.
func (s *RunStore) Update(run *Run) error {
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE pipeline_runs SET status = ?, stage = ?, error = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(run.Status), string(run.Stage), run.Error, run.CompletedAt, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update pipeline run %s", run.ID)
	}
	return nil
}

// RecordStage upserts one stage-history entry.
func (s *RunStore) RecordStage(runID string, rec StageRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pipeline_run_stages (run_id, stage, status, detail, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, string(rec.Stage), string(rec.Status), rec.Detail, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record stage %s for run %s", rec.Stage, runID)
	}
	return nil
}

func (s *RunStore) loadStageHistory(run *Run) error {
	rows, err := s.db.Query(
		`SELECT stage, status, detail, started_at, completed_at
		 FROM pipeline_run_stages WHERE run_id = ?`, run.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to load stage history for run %s", run.ID)
	}
	defer rows.Close()

	records := make([]StageRecord, 0, len(stageOrder))
	for rows.Next() {
		var (
			rec         StageRecord
			stage       string
			status      string
			completedAt sql.NullTime
		)
		if err := rows.Scan(&stage, &status, &rec.Detail, &rec.StartedAt, &completedAt); err != nil {
			return errors.Wrap(err, "failed to scan stage record")
		}
		rec.Stage = Stage(stage)
		rec.Status = Status(status)
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "error iterating stage records")
	}

	// Present history in execution order
	sort.Slice(records, func(i, j int) bool {
		return stageIndex(records[i].Stage) < stageIndex(records[j].Stage)
	})
	run.StageHistory = records
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *RunStore) scanRun(sc rowScanner) (*Run, error) {
	var (
		run         Run
		status      string
		stage       string
		completedAt sql.NullTime
	)
	err := sc.Scan(
		&run.ID, &run.ReleaseID, &run.BatchID, &run.Dataset,
		&status, &stage, &run.Error, &run.StartedAt, &completedAt, &run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("pipeline run not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan pipeline run")
	}
	run.Status = Status(status)
	run.Stage = Stage(stage)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
