package quarantine

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
	"github.com/veridata/ingot/validate"
)

// Manager persists quarantine batches and drives the record lifecycle.
// Remediate and Escalate are the only permitted status transitions out of
// triage; both record the acting user and a timestamp.
type Manager struct {
	db           *sql.DB
	artifactRoot string // JSON artifact dir; empty disables artifact export
	logger       *zap.SugaredLogger
}

// NewManager creates a quarantine manager over an open database.
func NewManager(db *sql.DB, artifactRoot string, logger *zap.SugaredLogger) *Manager {
	return &Manager{db: db, artifactRoot: artifactRoot, logger: logger}
}

// SaveBatch persists a triaged batch and its records. Record writes use
// INSERT OR REPLACE on the derived content id, so re-running the same
// release+batch does not duplicate records.
func (m *Manager) SaveBatch(batch *Batch) error {
	tx, err := m.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin quarantine tx")
	}

	_, err = tx.Exec(
		`INSERT INTO quarantine_batches (id, dataset, release_id, batch_id, triage_priority, total_records, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.Dataset, batch.ReleaseID, batch.BatchID,
		string(batch.TriagePriority), len(batch.Records), batch.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to insert quarantine batch")
	}

	for _, r := range batch.Records {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to marshal fields for record %s", r.ID)
		}
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO quarantine_records (
				id, quarantine_batch_id, dataset, release_id, batch_id,
				rule, category, severity, status, fields, guidance,
				auto_remediable, expected_fix_minutes,
				reviewed_by, reviewed_at, notes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, batch.ID, r.Dataset, r.ReleaseID, r.BatchID,
			r.Rule, string(r.Category), string(r.Severity), string(r.Status),
			string(fields), r.Guidance, r.AutoRemediable, r.ExpectedFixMinutes,
			r.ReviewedBy, r.ReviewedAt, r.Notes, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to insert quarantine record %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit quarantine batch")
	}

	if m.artifactRoot != "" {
		if err := m.writeArtifacts(batch); err != nil {
			return err
		}
	}

	if m.logger != nil {
		m.logger.Infow("Quarantine batch saved",
			"batch", batch.ID,
			"dataset", batch.Dataset,
			"records", len(batch.Records),
		)
	}

	return nil
}

// writeArtifacts exports the batch summary and one JSON file per record
// under <root>/quarantine/<dataset>/<release_id>/.
func (m *Manager) writeArtifacts(batch *Batch) error {
	dir := filepath.Join(m.artifactRoot, "quarantine", batch.Dataset, batch.ReleaseID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create quarantine artifact dir")
	}

	summary, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal quarantine batch")
	}
	if err := os.WriteFile(filepath.Join(dir, "batch_"+batch.BatchID+".json"), summary, 0o644); err != nil {
		return errors.Wrap(err, "failed to write quarantine batch artifact")
	}

	for _, r := range batch.Records {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return errors.Wrapf(err, "failed to marshal quarantine record %s", r.ID)
		}
		if err := os.WriteFile(filepath.Join(dir, r.ID+".json"), data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write quarantine record artifact %s", r.ID)
		}
	}

	return nil
}

// GetRecord retrieves one record by id.
func (m *Manager) GetRecord(id string) (*Record, error) {
	row := m.db.QueryRow(
		`SELECT id, dataset, release_id, batch_id, rule, category, severity,
		        status, fields, guidance, auto_remediable, expected_fix_minutes,
		        reviewed_by, reviewed_at, notes, created_at, updated_at
		 FROM quarantine_records WHERE id = ?`, id,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("quarantine record %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get quarantine record %s", id)
	}
	return record, nil
}

// ListFilter narrows ListRecords output. Zero values match everything.
type ListFilter struct {
	Dataset  string
	Status   Status
	Severity validate.Severity
	Category Category
	Limit    int
}

// ListRecords returns records matching the filter, newest first.
func (m *Manager) ListRecords(filter ListFilter) ([]*Record, error) {
	query := `SELECT id, dataset, release_id, batch_id, rule, category, severity,
	                 status, fields, guidance, auto_remediable, expected_fix_minutes,
	                 reviewed_by, reviewed_at, notes, created_at, updated_at
	          FROM quarantine_records WHERE 1=1`
	var args []any

	if filter.Dataset != "" {
		query += " AND dataset = ?"
		args = append(args, filter.Dataset)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list quarantine records")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan quarantine record")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating quarantine records")
	}
	return records, nil
}

// Remediate marks a record remediated, recording the actor, notes, and
// timestamp. A missing id is reported as an error to the caller; nothing
// panics and no other record is touched.
func (m *Manager) Remediate(id, notes, actor string) error {
	return m.transition(id, StatusRemediated, notes, actor)
}

// Escalate marks a record escalated with the given reason.
func (m *Manager) Escalate(id, reason, actor string) error {
	return m.transition(id, StatusEscalated, reason, actor)
}

// Review marks a record under review.
func (m *Manager) Review(id, notes, actor string) error {
	return m.transition(id, StatusUnderReview, notes, actor)
}

// Approve accepts a reviewed record.
func (m *Manager) Approve(id, notes, actor string) error {
	return m.transition(id, StatusApproved, notes, actor)
}

// Reject discards a reviewed record.
func (m *Manager) Reject(id, notes, actor string) error {
	return m.transition(id, StatusRejected, notes, actor)
}

// transition is the single path for status changes: explicit, actor-stamped,
// and a no-op failure for unknown ids.
func (m *Manager) transition(id string, to Status, notes, actor string) error {
	if actor == "" {
		return errors.New("actor must not be empty")
	}

	now := time.Now().UTC()
	result, err := m.db.Exec(
		`UPDATE quarantine_records
		 SET status = ?, notes = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(to), notes, actor, now, now, id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update quarantine record %s", id)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return errors.NewNotFoundError("quarantine record %s", id)
	}

	if m.logger != nil {
		m.logger.Infow("Quarantine record transitioned",
			"record", id,
			"status", to,
			"actor", actor,
		)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*Record, error) {
	var (
		r          Record
		category   string
		severity   string
		status     string
		fields     string
		reviewedAt sql.NullTime
	)
	err := s.Scan(
		&r.ID, &r.Dataset, &r.ReleaseID, &r.BatchID, &r.Rule,
		&category, &severity, &status, &fields, &r.Guidance,
		&r.AutoRemediable, &r.ExpectedFixMinutes,
		&r.ReviewedBy, &reviewedAt, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Category = Category(category)
	r.Severity = validate.Severity(severity)
	r.Status = Status(status)
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal fields for record %s", r.ID)
	}
	return &r, nil
}
