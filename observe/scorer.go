package observe

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/ingot/config"
)

// FreshnessInputs feed the freshness pillar.
type FreshnessInputs struct {
	LastUpdate      time.Time
	ExpectedCadence time.Duration
	Now             time.Time // zero means time.Now
}

// VolumeInputs feed the volume pillar. ExpectedRows 0 means no expectation
// is configured and the pillar scores a full 1.0.
type VolumeInputs struct {
	ExpectedRows int
	ActualRows   int
}

// SchemaInputs feed the schema pillar from the registry's contract check.
type SchemaInputs struct {
	CheckValid         bool
	BreakingChanges    int
	NonBreakingChanges int
}

// QualityInputs feed the quality pillar from the validation report.
type QualityInputs struct {
	QualityScore float64
}

// LineageInputs feed the lineage pillar from the run's accumulated
// provenance.
type LineageInputs struct {
	SourcesTotal        int // files landed
	SourcesWithChecksum int // files carrying both url and checksum
	TransformSteps      int // recorded stage transforms
}

// Inputs carries every pillar's raw material plus the run identity.
type Inputs struct {
	RunID     string
	Dataset   string
	ReleaseID string
	BatchID   string
	Freshness FreshnessInputs
	Volume    VolumeInputs
	Schema    SchemaInputs
	Quality   QualityInputs
	Lineage   LineageInputs
}

// criticalKeywords route a pillar alert onto the critical list.
var criticalKeywords = []string{"failed", "breaking", "critical", "stale"}

// Scorer computes observability reports. Constructed per process and
// injected where needed.
type Scorer struct {
	cfg    config.ObservabilityConfig
	logger *zap.SugaredLogger
}

// NewScorer creates a scorer. logger may be nil.
func NewScorer(cfg config.ObservabilityConfig, logger *zap.SugaredLogger) *Scorer {
	return &Scorer{cfg: cfg, logger: logger}
}

// Score computes all five pillars and the weighted overall score.
// Configured defaults fill any zero-valued expectation in the inputs.
func (s *Scorer) Score(in Inputs) *Report {
	if in.Freshness.ExpectedCadence == 0 && s.cfg.ExpectedCadenceHours > 0 {
		in.Freshness.ExpectedCadence = time.Duration(s.cfg.ExpectedCadenceHours * float64(time.Hour))
	}
	if in.Volume.ExpectedRows == 0 {
		in.Volume.ExpectedRows = s.cfg.ExpectedRowCount
	}

	pillars := map[Pillar]PillarMetrics{
		PillarFreshness: scoreFreshness(in.Freshness),
		PillarVolume:    scoreVolume(in.Volume),
		PillarSchema:    scoreSchema(in.Schema),
		PillarQuality:   scoreQuality(in.Quality),
		PillarLineage:   scoreLineage(in.Lineage),
	}

	report := &Report{
		RunID:       in.RunID,
		Dataset:     in.Dataset,
		ReleaseID:   in.ReleaseID,
		BatchID:     in.BatchID,
		Pillars:     pillars,
		GeneratedAt: time.Now().UTC(),
	}

	report.OverallScore = clip(
		weightFreshness*pillars[PillarFreshness].Score +
			weightVolume*pillars[PillarVolume].Score +
			weightSchema*pillars[PillarSchema].Score +
			weightQuality*pillars[PillarQuality].Score +
			weightLineage*pillars[PillarLineage].Score,
	)

	for _, p := range []Pillar{PillarFreshness, PillarVolume, PillarSchema, PillarQuality, PillarLineage} {
		for _, alert := range pillars[p].Alerts {
			if isCriticalAlert(alert) {
				report.CriticalAlerts = append(report.CriticalAlerts, alert)
			} else {
				report.WarningAlerts = append(report.WarningAlerts, alert)
			}
		}
	}

	if s.logger != nil {
		s.logger.Infow("Observability report computed",
			"run", in.RunID,
			"dataset", in.Dataset,
			"overall_score", report.OverallScore,
			"critical_alerts", len(report.CriticalAlerts),
		)
	}

	return report
}

// isCriticalAlert checks the alert text against the keyword list.
func isCriticalAlert(alert string) bool {
	lower := strings.ToLower(alert)
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// scoreFreshness: full score up to 1.5x the expected cadence, then a
// linear decay reaching 0 at 3x.
func scoreFreshness(in FreshnessInputs) PillarMetrics {
	m := PillarMetrics{Pillar: PillarFreshness, Score: 1.0}
	if in.ExpectedCadence <= 0 || in.LastUpdate.IsZero() {
		m.Detail = "no cadence expectation configured"
		return m
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	staleness := now.Sub(in.LastUpdate)
	ratio := float64(staleness) / float64(in.ExpectedCadence)

	switch {
	case ratio <= 1.5:
		m.Score = 1.0
	case ratio >= 3.0:
		m.Score = 0.0
	default:
		m.Score = (3.0 - ratio) / 1.5
	}
	m.Score = clip(m.Score)
	m.Detail = fmt.Sprintf("staleness %.1fh against %.1fh cadence", staleness.Hours(), in.ExpectedCadence.Hours())

	if ratio > 1.5 {
		m.Alerts = append(m.Alerts, fmt.Sprintf("data is stale: %.1fh since last update, expected every %.1fh", staleness.Hours(), in.ExpectedCadence.Hours()))
	}
	return m
}

// scoreVolume: 1.0 within 20% of expected, 0.7 within 50%, else 0.3.
func scoreVolume(in VolumeInputs) PillarMetrics {
	m := PillarMetrics{Pillar: PillarVolume, Score: 1.0}
	if in.ExpectedRows <= 0 {
		m.Detail = "no row-count expectation configured"
		return m
	}

	delta := float64(in.ActualRows-in.ExpectedRows) / float64(in.ExpectedRows)
	abs := delta
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs <= 0.2:
		m.Score = 1.0
	case abs <= 0.5:
		m.Score = 0.7
		m.Alerts = append(m.Alerts, fmt.Sprintf("row count deviates %.0f%% from expected %d", delta*100, in.ExpectedRows))
	default:
		m.Score = 0.3
		m.Alerts = append(m.Alerts, fmt.Sprintf("critical volume deviation: got %d rows, expected %d", in.ActualRows, in.ExpectedRows))
	}
	m.Detail = fmt.Sprintf("%d rows against expected %d", in.ActualRows, in.ExpectedRows)
	return m
}

// scoreSchema: 0.0 on a failed contract check, 0.3 on any breaking change,
// 0.7 on more than five non-breaking changes, else 1.0.
func scoreSchema(in SchemaInputs) PillarMetrics {
	m := PillarMetrics{Pillar: PillarSchema}
	switch {
	case !in.CheckValid:
		m.Score = 0.0
		m.Detail = "contract check failed"
		m.Alerts = append(m.Alerts, "schema contract check failed")
	case in.BreakingChanges > 0:
		m.Score = 0.3
		m.Detail = fmt.Sprintf("%d breaking changes", in.BreakingChanges)
		m.Alerts = append(m.Alerts, fmt.Sprintf("%d breaking schema changes detected", in.BreakingChanges))
	case in.NonBreakingChanges > 5:
		m.Score = 0.7
		m.Detail = fmt.Sprintf("%d non-breaking changes", in.NonBreakingChanges)
		m.Alerts = append(m.Alerts, fmt.Sprintf("%d non-breaking schema changes this release", in.NonBreakingChanges))
	default:
		m.Score = 1.0
		m.Detail = "schema stable"
	}
	return m
}

// scoreQuality passes the validation engine's quality score through.
func scoreQuality(in QualityInputs) PillarMetrics {
	m := PillarMetrics{
		Pillar: PillarQuality,
		Score:  clip(in.QualityScore),
		Detail: fmt.Sprintf("validation quality score %.3f", in.QualityScore),
	}
	if m.Score < 0.5 {
		m.Alerts = append(m.Alerts, fmt.Sprintf("critical quality score %.3f", m.Score))
	} else if m.Score < 0.9 {
		m.Alerts = append(m.Alerts, fmt.Sprintf("quality score %.3f below target", m.Score))
	}
	return m
}

// scoreLineage: 0.5 on incomplete provenance, 0.7 on fewer than three
// transform steps, else 1.0.
func scoreLineage(in LineageInputs) PillarMetrics {
	m := PillarMetrics{Pillar: PillarLineage}
	switch {
	case in.SourcesTotal > 0 && in.SourcesWithChecksum < in.SourcesTotal:
		m.Score = 0.5
		m.Detail = fmt.Sprintf("%d of %d sources missing provenance", in.SourcesTotal-in.SourcesWithChecksum, in.SourcesTotal)
		m.Alerts = append(m.Alerts, "incomplete source provenance: missing urls or checksums")
	case in.TransformSteps < 3:
		m.Score = 0.7
		m.Detail = fmt.Sprintf("only %d transform steps recorded", in.TransformSteps)
	default:
		m.Score = 1.0
		m.Detail = fmt.Sprintf("%d transform steps, full provenance", in.TransformSteps)
	}
	return m
}
