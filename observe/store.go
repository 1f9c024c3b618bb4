package observe

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
)

// Store persists one observability report per run, replacing any prior
// report for the same run wholesale.
type Store struct {
	db           *sql.DB
	artifactRoot string // JSON artifact dir; empty disables artifact export
	logger       *zap.SugaredLogger
}

// NewStore creates an observability report store.
func NewStore(db *sql.DB, artifactRoot string, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, artifactRoot: artifactRoot, logger: logger}
}

// Save persists the report and writes its JSON artifact.
func (s *Store) Save(report *Report) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal observability report")
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO observability_reports (run_id, overall_score, payload, created_at)
		 VALUES (?, ?, ?, ?)`,
		report.RunID, report.OverallScore, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save observability report for run %s", report.RunID)
	}

	if s.artifactRoot != "" {
		dir := filepath.Join(s.artifactRoot, "observability", report.Dataset)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create observability artifact dir")
		}
		path := filepath.Join(dir, report.RunID+".json")
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return errors.Wrap(err, "failed to write observability artifact")
		}
	}

	if s.logger != nil {
		s.logger.Infow("Observability report saved",
			"run", report.RunID,
			"overall_score", report.OverallScore,
		)
	}
	return nil
}

// Get retrieves the report for a run.
func (s *Store) Get(runID string) (*Report, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM observability_reports WHERE run_id = ?`, runID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("observability report for run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get observability report for run %s", runID)
	}

	var report Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal observability report for run %s", runID)
	}
	return &report, nil
}
