package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/ingot/contract"
	"github.com/veridata/ingot/errors"
	"github.com/veridata/ingot/observe"
	"github.com/veridata/ingot/quarantine"
	"github.com/veridata/ingot/tabular"
	"github.com/veridata/ingot/validate"
)

// Options configure one orchestrator instance.
type Options struct {
	Dataset      string
	ArtifactRoot string
	// Reference tables handed to the enricher.
	Reference map[string]*tabular.Table
	// ReferenceRows enables row-count drift checks against a prior batch.
	ReferenceRows *tabular.Table
	// LandingRetries is how many times discovery and download are
	// attempted before the land stage faults. Zero means one attempt.
	LandingRetries int
}

// Orchestrator executes one ingestion run at a time through the fixed
// stage sequence. All collaborators and subsystems are injected; nothing
// here is process-global.
type Orchestrator struct {
	opts      Options
	runs      *RunStore
	registry  *contract.Registry
	engine    *validate.Engine
	triager   *quarantine.Triager
	qstore    *quarantine.Manager
	scorer    *observe.Scorer
	reports   *observe.Store
	discovery Discovery
	adapter   Adapter
	enricher  Enricher
	publisher Publisher
	logger    *zap.SugaredLogger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(
	opts Options,
	runs *RunStore,
	registry *contract.Registry,
	engine *validate.Engine,
	triager *quarantine.Triager,
	qstore *quarantine.Manager,
	scorer *observe.Scorer,
	reports *observe.Store,
	discovery Discovery,
	adapter Adapter,
	enricher Enricher,
	publisher Publisher,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		opts:      opts,
		runs:      runs,
		registry:  registry,
		engine:    engine,
		triager:   triager,
		qstore:    qstore,
		scorer:    scorer,
		reports:   reports,
		discovery: discovery,
		adapter:   adapter,
		enricher:  enricher,
		publisher: publisher,
		logger:    logger,
	}
}

// runState accumulates stage outputs as the run advances. Stage N's
// output here is the only input stage N+1 reads.
type runState struct {
	raw        *tabular.RawBatch
	tables     *tabular.Batch
	contract   *contract.Contract
	check      *contract.CheckResult
	lastUpdate time.Time
}

// Execute runs one release+batch through the pipeline. A domain failure
// (critical validation, stage fault) is reported in the result's Status
// and Error, not as a returned error; the returned error is reserved for
// persistence problems the orchestrator itself cannot record.
func (o *Orchestrator) Execute(ctx context.Context, releaseID, batchID string) (*RunResult, error) {
	run, err := o.runs.CreateOrResume(releaseID, batchID, o.opts.Dataset)
	if err != nil {
		return nil, err
	}
	if len(run.StageHistory) > 0 {
		o.logger.Infow("Resuming pipeline run",
			"run", run.ID,
			"release", releaseID,
			"batch", batchID,
			"failed_stage", run.Stage,
		)
	}

	result := &RunResult{Run: run}
	state := &runState{}

	// Every stage is idempotent per release+batch, so a resumed run
	// re-executes the full sequence; completed-stage artifacts are simply
	// overwritten with identical content.
	for _, stage := range stageOrder {
		if stage == StageValidate {
			// Normalize owns format adaptation, but the engine consumes
			// typed tables, so they are built just ahead of validation.
			// A parse fault is recorded against normalize and validation
			// never runs.
			if err := o.adaptTables(ctx, run, state); err != nil {
				return result, o.failRun(run, StageNormalize, err)
			}
		}
		if err := o.runStage(ctx, stage, run, state, result); err != nil {
			return result, o.failRun(run, stage, err)
		}
		if halted := o.checkHalt(stage, run, result); halted {
			return result, nil
		}
	}

	now := time.Now().UTC()
	run.Status = StatusCompleted
	run.CompletedAt = &now
	if err := o.runs.Update(run); err != nil {
		return result, err
	}

	o.logger.Infow("Pipeline run completed",
		"run", run.ID,
		"release", releaseID,
		"batch", batchID,
		"overall_score", result.Observability.OverallScore,
	)
	return result, nil
}

// runStage executes one stage with history bookkeeping.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, run *Run, state *runState, result *RunResult) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "run cancelled before stage %s", stage)
	}

	if run.stageCompleted(stage) {
		o.logger.Debugw("Re-executing completed stage on resume",
			"run", run.ID,
			"stage", stage,
		)
	}

	run.Stage = stage
	if err := o.runs.Update(run); err != nil {
		return err
	}

	rec := StageRecord{Stage: stage, Status: StatusRunning, StartedAt: time.Now().UTC()}
	if err := o.runs.RecordStage(run.ID, rec); err != nil {
		return err
	}

	var err error
	switch stage {
	case StageLand:
		err = o.land(ctx, run, state)
	case StageValidate:
		err = o.validateStage(ctx, run, state, result)
	case StageNormalize:
		err = o.normalize(ctx, run, state)
	case StageEnrich:
		err = o.enrich(ctx, state, result)
	case StagePublish:
		err = o.publish(ctx, run, state, result)
	}

	now := time.Now().UTC()
	rec.CompletedAt = &now
	if err != nil {
		rec.Status = StatusFailed
		rec.Detail = err.Error()
	} else if result.Report != nil && stage == StageValidate && !result.Report.Valid {
		rec.Status = StatusFailed
		rec.Detail = "critical validation failure"
	} else {
		rec.Status = StatusCompleted
	}
	if recErr := o.runs.RecordStage(run.ID, rec); recErr != nil {
		return recErr
	}
	return err
}

// checkHalt stops the run after Validate when the report carries a
// critical failure. Later stages are never invoked.
func (o *Orchestrator) checkHalt(stage Stage, run *Run, result *RunResult) bool {
	if stage != StageValidate || result.Report == nil || result.Report.Valid {
		return false
	}

	run.Status = StatusFailed
	run.Stage = StageValidate
	run.Error = "critical validation failure"
	if err := o.runs.Update(run); err != nil {
		o.logger.Errorw("Failed to record halted run", "run", run.ID, "error", err)
	}

	o.logger.Warnw("Pipeline run halted at validate",
		"run", run.ID,
		"failed_checks", result.Report.Failed,
		"quality_score", result.Report.QualityScore,
	)
	return true
}

// failRun records a stage fault on the run. Faults are never swallowed:
// they stop the run and surface in the result.
func (o *Orchestrator) failRun(run *Run, stage Stage, err error) error {
	run.Status = StatusFailed
	run.Stage = stage
	run.Error = err.Error()
	if updateErr := o.runs.Update(run); updateErr != nil {
		return updateErr
	}
	o.logger.Errorw("Pipeline stage failed",
		"run", run.ID,
		"stage", stage,
		"error", err,
	)
	return nil
}

// land invokes discovery, keeps the raw batch, and persists the manifest.
func (o *Orchestrator) land(ctx context.Context, run *Run, state *runState) error {
	raw, err := o.landWithRetry(ctx, run)
	if err != nil {
		return err
	}
	state.raw = raw

	for _, f := range raw.Files {
		if f.LastModified.After(state.lastUpdate) {
			state.lastUpdate = f.LastModified
		}
	}

	return o.writeManifest(run, raw)
}

// landWithRetry attempts discovery and download up to the configured
// number of times. Upstream portals drop connections routinely, so a
// transient fault should not fail the whole run on the first try.
func (o *Orchestrator) landWithRetry(ctx context.Context, run *Run) (*tabular.RawBatch, error) {
	attempts := o.opts.LandingRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
			o.logger.Warnw("Retrying landing",
				"release_id", run.ReleaseID,
				"attempt", attempt)
		}
		files, err := o.discovery.Discover(ctx, run.ReleaseID)
		if err != nil {
			lastErr = errors.Wrap(err, "discovery failed")
			continue
		}
		raw, err := o.discovery.Download(ctx, run.ReleaseID, run.BatchID, files)
		if err != nil {
			lastErr = errors.Wrap(err, "download failed")
			continue
		}
		return raw, nil
	}
	return nil, lastErr
}

// writeManifest persists the landed-file manifest for the run.
func (o *Orchestrator) writeManifest(run *Run, raw *tabular.RawBatch) error {
	if o.opts.ArtifactRoot == "" {
		return nil
	}
	dir := filepath.Join(o.opts.ArtifactRoot, "manifests", o.opts.Dataset, run.ReleaseID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create manifest dir")
	}

	manifest := struct {
		ReleaseID string               `json:"release_id"`
		BatchID   string               `json:"batch_id"`
		Files     []tabular.SourceFile `json:"files"`
	}{raw.ReleaseID, raw.BatchID, raw.Files}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal manifest")
	}
	path := filepath.Join(dir, "manifest_"+run.BatchID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}
	return nil
}

// adaptTables runs the format adapter over every landed file. Faults are
// stamped into the stage history under normalize, the stage that owns
// adaptation.
func (o *Orchestrator) adaptTables(ctx context.Context, run *Run, state *runState) error {
	state.tables = tabular.NewBatch()
	for _, name := range sortedFilenames(state.raw) {
		file := fileByName(state.raw, name)
		table, err := o.adapter.Adapt(ctx, file, state.raw.Content[name])
		if err != nil {
			err = errors.Wrapf(err, "adapter failed for %s", name)
			now := time.Now().UTC()
			rec := StageRecord{
				Stage:       StageNormalize,
				Status:      StatusFailed,
				Detail:      err.Error(),
				StartedAt:   now,
				CompletedAt: &now,
			}
			if recErr := o.runs.RecordStage(run.ID, rec); recErr != nil {
				return recErr
			}
			return err
		}
		state.tables.Add(table)
	}
	return nil
}

// validateStage runs the validation engine over the adapted tables.
// Critical failures write a quarantine batch and halt the run via
// checkHalt.
func (o *Orchestrator) validateStage(ctx context.Context, run *Run, state *runState, result *RunResult) error {
	c, err := o.registry.Latest(o.opts.Dataset)
	if err != nil && !errors.IsNotFoundError(err) {
		return errors.Wrap(err, "failed to load contract")
	}
	state.contract = c

	key := tabular.RunKey{ReleaseID: run.ReleaseID, BatchID: run.BatchID, Dataset: o.opts.Dataset}
	for _, name := range state.tables.TableNames() {
		table := state.tables.Get(name)
		report, err := o.engine.ValidateRun(ctx, key, table, c, o.opts.ReferenceRows)
		if err != nil {
			return err
		}
		result.Report = report

		if failed := report.FailedResults(); len(failed) > 0 {
			batch := o.triager.Triage(o.opts.Dataset, run.BatchID, run.ReleaseID, report, table.Rows)
			if len(batch.Records) > 0 {
				if err := o.qstore.SaveBatch(batch); err != nil {
					return err
				}
				result.Quarantine = batch
			}
		}
		if !report.Valid {
			return nil // checkHalt stops the run
		}
	}
	return nil
}

// normalize runs the registered contract check over every table. Check
// findings are structured errors and metrics feeding the schema pillar,
// never a stage fault; only CRITICAL validation rules block a run.
func (o *Orchestrator) normalize(ctx context.Context, run *Run, state *runState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state.contract == nil {
		return nil // nothing registered for this dataset yet
	}

	for _, name := range state.tables.TableNames() {
		check := state.contract.Check(state.tables.Get(name))
		if state.check == nil || state.check.Valid {
			state.check = check
		}
		if !check.Valid {
			o.logger.Warnw("Contract check reported findings",
				"run", run.ID,
				"table", name,
				"errors", len(check.Errors),
				"warnings", len(check.Warnings),
			)
		}
	}
	return nil
}

// enrich hands each table to the enricher with the reference tables.
func (o *Orchestrator) enrich(ctx context.Context, state *runState, result *RunResult) error {
	for _, name := range state.tables.TableNames() {
		enriched, outcome, err := o.enricher.Enrich(ctx, state.tables.Get(name), o.opts.Reference)
		if err != nil {
			return errors.Wrapf(err, "enrichment failed for table %s", name)
		}
		state.tables.Add(enriched)
		result.Enrichment = outcome
	}
	return nil
}

// publish writes every table, then computes and persists the run's
// observability report.
func (o *Orchestrator) publish(ctx context.Context, run *Run, state *runState, result *RunResult) error {
	key := tabular.RunKey{ReleaseID: run.ReleaseID, BatchID: run.BatchID, Dataset: o.opts.Dataset}

	published := &PublishResult{TableName: o.opts.Dataset}
	for _, name := range state.tables.TableNames() {
		pr, err := o.publisher.Publish(ctx, state.tables.Get(name), key)
		if err != nil {
			return errors.Wrapf(err, "publish failed for table %s", name)
		}
		published.RecordCount += pr.RecordCount
		published.Locations = append(published.Locations, pr.Locations...)
		published.LatestViewCreated = published.LatestViewCreated || pr.LatestViewCreated
	}
	result.Published = published

	report := o.scorer.Score(o.buildObservabilityInputs(run, state, result))
	if err := o.reports.Save(report); err != nil {
		return err
	}
	result.Observability = report
	return nil
}

// buildObservabilityInputs assembles pillar inputs from the accumulated
// stage metadata.
func (o *Orchestrator) buildObservabilityInputs(run *Run, state *runState, result *RunResult) observe.Inputs {
	in := observe.Inputs{
		RunID:     run.ID,
		Dataset:   o.opts.Dataset,
		ReleaseID: run.ReleaseID,
		BatchID:   run.BatchID,
		Freshness: observe.FreshnessInputs{LastUpdate: state.lastUpdate},
		Schema:    observe.SchemaInputs{CheckValid: true},
		Lineage: observe.LineageInputs{
			// Normalize, enrich, and publish each transform the batch
			TransformSteps: 3,
		},
	}

	if result.Published != nil {
		in.Volume.ActualRows = result.Published.RecordCount
	}
	if result.Report != nil {
		in.Quality.QualityScore = result.Report.QualityScore
	}
	if state.check != nil {
		in.Schema.CheckValid = state.check.Valid
		in.Schema.NonBreakingChanges = len(state.check.Warnings)
	}
	if state.raw != nil {
		in.Lineage.SourcesTotal = len(state.raw.Files)
		for _, f := range state.raw.Files {
			if f.URL != "" && f.Checksum != "" {
				in.Lineage.SourcesWithChecksum++
			}
		}
	}
	return in
}

func sortedFilenames(raw *tabular.RawBatch) []string {
	names := make([]string, 0, len(raw.Content))
	for name := range raw.Content {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fileByName(raw *tabular.RawBatch, name string) tabular.SourceFile {
	for _, f := range raw.Files {
		if f.Name == name {
			return f
		}
	}
	return tabular.SourceFile{Name: name}
}
