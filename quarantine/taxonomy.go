package quarantine

import (
	"strings"

	"github.com/veridata/ingot/validate"
)

// Category is the error-taxonomy bucket assigned to a quarantined record.
type Category string

const (
	CategorySchemaViolation   Category = "schema_violation"
	CategoryDataQuality       Category = "data_quality"
	CategoryBusinessRule      Category = "business_rule"
	CategoryFormatError       Category = "format_error"
	CategoryValidationFailure Category = "validation_failure"
	CategoryDuplicate         Category = "duplicate"
	CategoryMissingRequired   Category = "missing_required"
	CategoryOutOfRange        Category = "out_of_range"
	CategoryInvalidFormat     Category = "invalid_format"
)

// keywordRule maps a keyword found in a rule's error text to a category.
// Matching walks the table in order and takes the first hit, so
// categorization is deterministic and pure in the message text.
type keywordRule struct {
	keyword  string
	category Category
}

var keywordTable = []keywordRule{
	{"missing required", CategoryMissingRequired},
	{"duplicate", CategoryDuplicate},
	{"out of range", CategoryOutOfRange},
	{"invalid format", CategoryInvalidFormat},
	{"format error", CategoryFormatError},
	{"schema", CategorySchemaViolation},
	{"business rule", CategoryBusinessRule},
	{"data quality", CategoryDataQuality},
	{"null", CategoryDataQuality},
	{"validation", CategoryValidationFailure},
}

// Categorize classifies a rule failure by its error text. Unmatched text
// falls back to validation_failure.
func Categorize(message string) Category {
	lower := strings.ToLower(message)
	for _, kr := range keywordTable {
		if strings.Contains(lower, kr.keyword) {
			return kr.category
		}
	}
	return CategoryValidationFailure
}

// Profile is the static triage quadruple looked up per category.
type Profile struct {
	Severity           validate.Severity
	Priority           Priority
	AutoRemediable     bool
	ExpectedFixMinutes int
	Guidance           string
}

// Priority orders remediation work.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var profiles = map[Category]Profile{
	CategorySchemaViolation: {
		Severity:           validate.SeverityCritical,
		Priority:           PriorityHigh,
		AutoRemediable:     false,
		ExpectedFixMinutes: 240,
		Guidance:           "Compare the source layout against the registered contract; register a new contract version if the upstream schema legitimately changed.",
	},
	CategoryMissingRequired: {
		Severity:           validate.SeverityCritical,
		Priority:           PriorityHigh,
		AutoRemediable:     false,
		ExpectedFixMinutes: 120,
		Guidance:           "Confirm the upstream release includes the required field; re-land the batch once the source is corrected.",
	},
	CategoryDuplicate: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityLow,
		AutoRemediable:     true,
		ExpectedFixMinutes: 30,
		Guidance:           "Deduplicate on the declared primary key, keeping the latest record by modification time.",
	},
	CategoryOutOfRange: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityMedium,
		AutoRemediable:     true,
		ExpectedFixMinutes: 60,
		Guidance:           "Check for unit mismatches (cents vs dollars) before clamping or rejecting the value.",
	},
	CategoryInvalidFormat: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityMedium,
		AutoRemediable:     true,
		ExpectedFixMinutes: 45,
		Guidance:           "Normalize the value to the declared pattern; common causes are locale-specific dates and stray whitespace.",
	},
	CategoryFormatError: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityMedium,
		AutoRemediable:     true,
		ExpectedFixMinutes: 45,
		Guidance:           "Re-run the format adapter with corrected column mappings.",
	},
	CategoryDataQuality: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityMedium,
		AutoRemediable:     true,
		ExpectedFixMinutes: 60,
		Guidance:           "Backfill from the reference source where possible; otherwise flag the rows for upstream correction.",
	},
	CategoryBusinessRule: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityMedium,
		AutoRemediable:     false,
		ExpectedFixMinutes: 180,
		Guidance:           "Business-rule violations need analyst review; do not auto-correct.",
	},
	CategoryValidationFailure: {
		Severity:           validate.SeverityWarning,
		Priority:           PriorityLow,
		AutoRemediable:     false,
		ExpectedFixMinutes: 90,
		Guidance:           "Inspect the triggering rule output; reclassify once the failure mode is understood.",
	},
}

// ProfileFor returns the static triage profile for a category.
func ProfileFor(c Category) Profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profiles[CategoryValidationFailure]
}
