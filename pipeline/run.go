// Package pipeline sequences one ingestion run through the fixed stage
// order Land, Validate, Normalize, Enrich, Publish. Stages transition
// strictly forward; a fault stops the run at its stage, and re-executing
// the same release+batch resumes from that stage.
package pipeline

import (
	"time"

	"github.com/veridata/ingot/observe"
	"github.com/veridata/ingot/quarantine"
	"github.com/veridata/ingot/validate"
)

// Status is the lifecycle state of a pipeline run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage is one of the five fixed pipeline phases.
type Stage string

const (
	StageLand      Stage = "land"
	StageValidate  Stage = "validate"
	StageNormalize Stage = "normalize"
	StageEnrich    Stage = "enrich"
	StagePublish   Stage = "publish"
)

// stageOrder is the only permitted execution sequence. Transitions are
// single and forward; no stage is skipped or reordered.
var stageOrder = []Stage{StageLand, StageValidate, StageNormalize, StageEnrich, StagePublish}

// stageIndex returns the position of a stage in the fixed order, or -1.
func stageIndex(s Stage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// StageRecord is one entry in a run's stage history.
type StageRecord struct {
	Stage       Stage      `json:"stage"`
	Status      Status     `json:"status"`
	Detail      string     `json:"detail,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run is the persistent identity of one release+batch execution. It is
// the only entity that threads end to end through every stage.
type Run struct {
	ID           string        `json:"id"`
	ReleaseID    string        `json:"release_id"`
	BatchID      string        `json:"batch_id"`
	Dataset      string        `json:"dataset"`
	Status       Status        `json:"status"`
	Stage        Stage         `json:"stage"`
	StageHistory []StageRecord `json:"stage_history,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// stageCompleted reports whether the run already finished the given stage
// in a previous execution. Used for idempotent resume.
func (r *Run) stageCompleted(s Stage) bool {
	for _, rec := range r.StageHistory {
		if rec.Stage == s && rec.Status == StatusCompleted {
			return true
		}
	}
	return false
}

// PublishResult is what the publisher collaborator reports back.
type PublishResult struct {
	TableName         string   `json:"table_name"`
	RecordCount       int      `json:"record_count"`
	Locations         []string `json:"locations"`
	LatestViewCreated bool     `json:"latest_view_created"`
}

// EnrichmentOutcome summarizes one enrichment pass.
type EnrichmentOutcome struct {
	RecordsProcessed int     `json:"records_processed"`
	RecordsEnriched  int     `json:"records_enriched"`
	RecordsFailed    int     `json:"records_failed"`
	EnrichmentRate   float64 `json:"enrichment_rate"`
	QualityScore     float64 `json:"quality_score"`
}

// RunResult is the full outcome of one Execute call. Callers inspect
// Run.Status rather than assuming success.
type RunResult struct {
	Run           *Run               `json:"run"`
	Report        *validate.Report   `json:"report,omitempty"`
	Quarantine    *quarantine.Batch  `json:"quarantine,omitempty"`
	Enrichment    *EnrichmentOutcome `json:"enrichment,omitempty"`
	Observability *observe.Report    `json:"observability,omitempty"`
	Published     *PublishResult     `json:"published,omitempty"`
}
