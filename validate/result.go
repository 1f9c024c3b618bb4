package validate

import (
	"time"
)

// Result is the outcome of evaluating one rule against a batch.
// Results are immutable once produced.
type Result struct {
	Rule      string   `json:"rule"`
	Severity  Severity `json:"severity"`
	Passed    bool     `json:"passed"`
	Message   string   `json:"message"`
	Threshold *float64 `json:"threshold,omitempty"`
	Actual    *float64 `json:"actual,omitempty"`
	// Sample holds up to the configured cap of violating values, for reporting
	Sample []string `json:"sample,omitempty"`
	// RowIndexes identifies the violating rows in the validated table.
	// Empty for whole-batch failures (e.g. a missing column), where the
	// batch is rejected as a unit rather than per row.
	RowIndexes []int `json:"row_indexes,omitempty"`
}

// Report aggregates every rule outcome for one batch in one stage
// invocation. Produced once and never mutated.
type Report struct {
	Dataset      string    `json:"dataset"`
	ReleaseID    string    `json:"release_id"`
	BatchID      string    `json:"batch_id"`
	Results      []Result  `json:"results"`
	Passed       int       `json:"passed_checks"`
	Failed       int       `json:"failed_checks"`
	Warned       int       `json:"warned_checks"`
	QualityScore float64   `json:"quality_score"`
	Valid        bool      `json:"valid"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// buildReport aggregates results into a report. QualityScore is exactly
// passed/total; Valid holds iff no critical-severity rule failed.
func buildReport(dataset, releaseID, batchID string, results []Result) *Report {
	r := &Report{
		Dataset:     dataset,
		ReleaseID:   releaseID,
		BatchID:     batchID,
		Results:     results,
		Valid:       true,
		GeneratedAt: time.Now().UTC(),
	}

	for _, res := range results {
		if res.Passed {
			r.Passed++
			continue
		}
		r.Failed++
		switch res.Severity {
		case SeverityCritical:
			r.Valid = false
		case SeverityWarning:
			r.Warned++
		}
	}

	if total := len(results); total > 0 {
		r.QualityScore = float64(r.Passed) / float64(total)
	} else {
		r.QualityScore = 1.0
	}

	return r
}

// FailedResults returns the subset of results that did not pass.
func (r *Report) FailedResults() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// CriticalFailures returns failed results with critical severity.
func (r *Report) CriticalFailures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed && res.Severity == SeverityCritical {
			out = append(out, res)
		}
	}
	return out
}
