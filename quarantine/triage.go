package quarantine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/tabular"
	"github.com/veridata/ingot/validate"
)

// Triager classifies validation failures into quarantine records.
type Triager struct {
	cfg    config.QuarantineConfig
	logger *zap.SugaredLogger
}

// NewTriager creates a triager. logger may be nil.
func NewTriager(cfg config.QuarantineConfig, logger *zap.SugaredLogger) *Triager {
	if cfg.MinPopulatedFields <= 0 {
		cfg.MinPopulatedFields = 3
	}
	if cfg.SizeThresholdBytes <= 0 {
		cfg.SizeThresholdBytes = 8192
	}
	return &Triager{cfg: cfg, logger: logger}
}

// Triage extracts the triggering rows for every failed rule in the report
// and classifies each independently. Whole-batch failures (no row indexes)
// produce no per-row records; the batch rejection is the report's concern.
func (t *Triager) Triage(dataset, batchID, releaseID string, report *validate.Report, rows []tabular.Row) *Batch {
	batch := &Batch{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		ReleaseID: releaseID,
		BatchID:   batchID,
		CreatedAt: time.Now().UTC(),
	}

	seen := make(map[string]bool)
	for _, result := range report.FailedResults() {
		for _, idx := range result.RowIndexes {
			if idx < 0 || idx >= len(rows) {
				continue
			}
			record := t.triageRecord(dataset, batchID, releaseID, result, rows[idx])
			if seen[record.ID] {
				continue
			}
			seen[record.ID] = true
			batch.Records = append(batch.Records, record)
		}
	}

	batch.recount()

	if t.logger != nil {
		t.logger.Infow("Quarantine triage complete",
			"dataset", dataset,
			"batch_id", batchID,
			"records", len(batch.Records),
			"triage_priority", batch.TriagePriority,
		)
	}

	return batch
}

// triageRecord classifies one violating row for one failed rule.
func (t *Triager) triageRecord(dataset, batchID, releaseID string, result validate.Result, row tabular.Row) *Record {
	category := Categorize(result.Message)
	profile := ProfileFor(category)

	severity := profile.Severity
	if t.touchesCriticalField(row) || t.exceedsSizeThreshold(row) {
		severity = validate.Escalate(severity)
	}

	now := time.Now().UTC()
	return &Record{
		ID:                 tabular.ContentID(dataset, result.Rule, row),
		Dataset:            dataset,
		ReleaseID:          releaseID,
		BatchID:            batchID,
		Rule:               result.Rule,
		Category:           category,
		Severity:           severity,
		Status:             StatusNew,
		Fields:             row,
		Guidance:           profile.Guidance,
		AutoRemediable:     t.autoRemediable(category, profile, row),
		ExpectedFixMinutes: profile.ExpectedFixMinutes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// touchesCriticalField reports whether the record has a populated value in
// any designated critical field.
func (t *Triager) touchesCriticalField(row tabular.Row) bool {
	for _, field := range t.cfg.CriticalFields {
		if v, ok := row[field]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

// exceedsSizeThreshold reports whether the serialized record is larger than
// the configured threshold.
func (t *Triager) exceedsSizeThreshold(row tabular.Row) bool {
	data, err := json.Marshal(row)
	if err != nil {
		return false
	}
	return len(data) > t.cfg.SizeThresholdBytes
}

// autoRemediable applies the eligibility rule: the category default, minus
// categories that always need a human, and only for records with enough
// populated fields to fix automatically.
func (t *Triager) autoRemediable(category Category, profile Profile, row tabular.Row) bool {
	if !profile.AutoRemediable {
		return false
	}
	if category == CategoryBusinessRule || category == CategorySchemaViolation {
		return false
	}
	populated := 0
	for _, v := range row {
		if v != nil && v != "" {
			populated++
		}
	}
	return populated >= t.cfg.MinPopulatedFields
}
