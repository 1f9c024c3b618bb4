// Package quarantine captures, classifies, and manages records rejected by
// validation. Nothing is silently dropped: every violating record becomes a
// triaged QuarantineRecord with a recoverable lifecycle.
package quarantine

import (
	"time"

	"github.com/veridata/ingot/validate"
)

// Status is the lifecycle state of a quarantined record.
// Transitions happen only through explicit triage actions, never implicitly.
type Status string

const (
	StatusNew         Status = "new"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusRemediated  Status = "remediated"
	StatusEscalated   Status = "escalated"
)

// IsValidStatus returns true if the string is a known Status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusNew, StatusUnderReview, StatusApproved, StatusRejected,
		StatusRemediated, StatusEscalated:
		return true
	default:
		return false
	}
}

// Record is one quarantined row, keyed by a derived content identifier so
// re-triaging the same violating row is idempotent.
type Record struct {
	ID                 string            `json:"id"`
	Dataset            string            `json:"dataset"`
	ReleaseID          string            `json:"release_id"`
	BatchID            string            `json:"batch_id"`
	Rule               string            `json:"rule"` // the one originating validation result
	Category           Category          `json:"category"`
	Severity           validate.Severity `json:"severity"`
	Status             Status            `json:"status"`
	Fields             map[string]any    `json:"fields"` // original field values
	Guidance           string            `json:"guidance,omitempty"`
	AutoRemediable     bool              `json:"auto_remediable"`
	ExpectedFixMinutes int               `json:"expected_fix_minutes"`
	ReviewedBy         string            `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time        `json:"reviewed_at,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Batch groups every record produced by one validation pass, with aggregate
// counts and a derived triage priority.
type Batch struct {
	ID             string            `json:"id"`
	Dataset        string            `json:"dataset"`
	ReleaseID      string            `json:"release_id"`
	BatchID        string            `json:"batch_id"`
	Records        []*Record         `json:"records"`
	ByStatus       map[Status]int    `json:"by_status"`
	BySeverity     map[string]int    `json:"by_severity"`
	ByCategory     map[Category]int  `json:"by_category"`
	ByRule         map[string]int    `json:"by_rule"`
	TriagePriority validate.Severity `json:"triage_priority"` // max severity present
	CreatedAt      time.Time         `json:"created_at"`
}

// recount rebuilds the aggregate maps and triage priority from the records.
func (b *Batch) recount() {
	b.ByStatus = make(map[Status]int)
	b.BySeverity = make(map[string]int)
	b.ByCategory = make(map[Category]int)
	b.ByRule = make(map[string]int)
	b.TriagePriority = validate.SeverityInfo

	for _, r := range b.Records {
		b.ByStatus[r.Status]++
		b.BySeverity[string(r.Severity)]++
		b.ByCategory[r.Category]++
		b.ByRule[r.Rule]++
		if validate.MoreSevere(r.Severity, b.TriagePriority) {
			b.TriagePriority = r.Severity
		}
	}
}
