// Package observe computes pipeline health as five independent pillar
// scores (freshness, volume, schema, quality, lineage) combined into a
// weighted overall score. Reports are recomputed whole per run, never
// patched.
package observe

import (
	"time"
)

// Pillar names one observability dimension.
type Pillar string

const (
	PillarFreshness Pillar = "freshness"
	PillarVolume    Pillar = "volume"
	PillarSchema    Pillar = "schema"
	PillarQuality   Pillar = "quality"
	PillarLineage   Pillar = "lineage"
)

// Fixed pillar weights. They sum to 1.0.
const (
	weightFreshness = 0.25
	weightVolume    = 0.20
	weightSchema    = 0.20
	weightQuality   = 0.25
	weightLineage   = 0.10
)

// PillarMetrics is one pillar's outcome: a score in [0,1], a short
// explanation, and any alerts the pillar raised.
type PillarMetrics struct {
	Pillar Pillar   `json:"pillar"`
	Score  float64  `json:"score"`
	Detail string   `json:"detail,omitempty"`
	Alerts []string `json:"alerts,omitempty"`
}

// Report is the full health assessment for one run.
type Report struct {
	RunID          string                   `json:"run_id"`
	Dataset        string                   `json:"dataset"`
	ReleaseID      string                   `json:"release_id"`
	BatchID        string                   `json:"batch_id"`
	Pillars        map[Pillar]PillarMetrics `json:"pillars"`
	OverallScore   float64                  `json:"overall_score"`
	CriticalAlerts []string                 `json:"critical_alerts,omitempty"`
	WarningAlerts  []string                 `json:"warning_alerts,omitempty"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

// clip bounds a score to [0,1].
func clip(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
