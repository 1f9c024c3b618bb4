package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/veridata/ingot/contract"
	"github.com/veridata/ingot/tabular"
)

// Kind names the closed set of rule variants. Rules are evaluated in kind
// order: structural, then domain, then statistical, then business.
type Kind string

const (
	KindStructural  Kind = "structural"
	KindDomain      Kind = "domain"
	KindStatistical Kind = "statistical"
	KindBusiness    Kind = "business"
)

// Rule is one validation check. Each variant carries its own typed
// parameters and produces exactly one Result per evaluation.
type Rule interface {
	Name() string
	Kind() Kind
	Evaluate(table *tabular.Table) Result
}

// ---- structural rules ----

// RequiredColumnsRule fails when any declared column is absent from the
// table. A failure rejects the whole batch; no per-row indexes are recorded.
type RequiredColumnsRule struct {
	Columns []string
}

func (r RequiredColumnsRule) Name() string { return "required_columns" }
func (r RequiredColumnsRule) Kind() Kind   { return KindStructural }

func (r RequiredColumnsRule) Evaluate(table *tabular.Table) Result {
	var missing []string
	for _, col := range r.Columns {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Result{
			Rule:     r.Name(),
			Severity: SeverityCritical,
			Passed:   false,
			Message:  fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
			Sample:   missing,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: SeverityCritical,
		Passed:   true,
		Message:  fmt.Sprintf("all %d required columns present", len(r.Columns)),
	}
}

// TypeMatchRule fails when values in a column do not conform to the
// declared type.
type TypeMatchRule struct {
	Column    string
	Type      contract.ColumnType
	SampleCap int
}

func (r TypeMatchRule) Name() string { return "type_match:" + r.Column }
func (r TypeMatchRule) Kind() Kind   { return KindStructural }

func (r TypeMatchRule) Evaluate(table *tabular.Table) Result {
	if !table.HasColumn(r.Column) {
		// Presence is the required-columns rule's concern
		return Result{
			Rule:     r.Name(),
			Severity: SeverityCritical,
			Passed:   true,
			Message:  fmt.Sprintf("column %q absent, type check skipped", r.Column),
		}
	}

	var rows []int
	var sample []string
	for i, row := range table.Rows {
		v := row[r.Column]
		if !contract.MatchesType(v, r.Type) {
			rows = append(rows, i)
			if len(sample) < r.SampleCap {
				sample = append(sample, fmt.Sprint(v))
			}
		}
	}

	if len(rows) > 0 {
		return Result{
			Rule:       r.Name(),
			Severity:   SeverityCritical,
			Passed:     false,
			Message:    fmt.Sprintf("schema violation: %d values in column %q do not match declared type %s", len(rows), r.Column, r.Type),
			Sample:     sample,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: SeverityCritical,
		Passed:   true,
		Message:  fmt.Sprintf("column %q conforms to type %s", r.Column, r.Type),
	}
}

// RowCountRule fails when the batch is outside the declared row bounds.
// Max of 0 means unbounded.
type RowCountRule struct {
	Min int
	Max int
}

func (r RowCountRule) Name() string { return "row_count" }
func (r RowCountRule) Kind() Kind   { return KindStructural }

func (r RowCountRule) Evaluate(table *tabular.Table) Result {
	n := table.NumRows()
	actual := float64(n)

	if n < r.Min {
		threshold := float64(r.Min)
		return Result{
			Rule:      r.Name(),
			Severity:  SeverityCritical,
			Passed:    false,
			Message:   fmt.Sprintf("row count %d below minimum %d", n, r.Min),
			Threshold: &threshold,
			Actual:    &actual,
		}
	}
	if r.Max > 0 && n > r.Max {
		threshold := float64(r.Max)
		return Result{
			Rule:      r.Name(),
			Severity:  SeverityCritical,
			Passed:    false,
			Message:   fmt.Sprintf("row count %d above maximum %d", n, r.Max),
			Threshold: &threshold,
			Actual:    &actual,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: SeverityCritical,
		Passed:   true,
		Message:  fmt.Sprintf("row count %d within bounds", n),
		Actual:   &actual,
	}
}

// ---- domain rules ----

// AllowedValuesRule fails when a column holds values outside its enumerated
// domain. Either the rule fully passes or it records every violating row,
// with the reported sample capped.
type AllowedValuesRule struct {
	Column    string
	Allowed   []string
	Level     Severity
	SampleCap int
}

func (r AllowedValuesRule) Name() string { return "allowed_values:" + r.Column }
func (r AllowedValuesRule) Kind() Kind   { return KindDomain }

func (r AllowedValuesRule) Evaluate(table *tabular.Table) Result {
	allowed := make(map[string]bool, len(r.Allowed))
	for _, v := range r.Allowed {
		allowed[v] = true
	}

	var rows []int
	var sample []string
	for i, row := range table.Rows {
		v := row[r.Column]
		if v == nil {
			continue
		}
		if !allowed[fmt.Sprint(v)] {
			rows = append(rows, i)
			if len(sample) < r.SampleCap {
				sample = append(sample, fmt.Sprint(v))
			}
		}
	}

	if len(rows) > 0 {
		return Result{
			Rule:       r.Name(),
			Severity:   r.Level,
			Passed:     false,
			Message:    fmt.Sprintf("invalid format: %d values in column %q outside enumerated domain", len(rows), r.Column),
			Sample:     sample,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: r.Level,
		Passed:   true,
		Message:  fmt.Sprintf("column %q within enumerated domain", r.Column),
	}
}

// PatternRule fails when string values do not match the declared pattern.
type PatternRule struct {
	Column    string
	Pattern   string
	Level     Severity
	SampleCap int
}

func (r PatternRule) Name() string { return "pattern:" + r.Column }
func (r PatternRule) Kind() Kind   { return KindDomain }

func (r PatternRule) Evaluate(table *tabular.Table) Result {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return Result{
			Rule:     r.Name(),
			Severity: r.Level,
			Passed:   false,
			Message:  fmt.Sprintf("validation failure: pattern %q does not compile: %v", r.Pattern, err),
		}
	}

	var rows []int
	var sample []string
	for i, row := range table.Rows {
		v := row[r.Column]
		if v == nil {
			continue
		}
		if !re.MatchString(fmt.Sprint(v)) {
			rows = append(rows, i)
			if len(sample) < r.SampleCap {
				sample = append(sample, fmt.Sprint(v))
			}
		}
	}

	if len(rows) > 0 {
		return Result{
			Rule:       r.Name(),
			Severity:   r.Level,
			Passed:     false,
			Message:    fmt.Sprintf("invalid format: %d values in column %q do not match pattern", len(rows), r.Column),
			Sample:     sample,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: r.Level,
		Passed:   true,
		Message:  fmt.Sprintf("column %q matches pattern", r.Column),
	}
}

// RangeRule fails when numeric values fall outside the declared bounds.
type RangeRule struct {
	Column    string
	Min       *float64
	Max       *float64
	Level     Severity
	SampleCap int
}

func (r RangeRule) Name() string { return "range:" + r.Column }
func (r RangeRule) Kind() Kind   { return KindDomain }

func (r RangeRule) Evaluate(table *tabular.Table) Result {
	var rows []int
	var sample []string
	for i, row := range table.Rows {
		v := row[r.Column]
		f, ok := contract.AsFloat(v)
		if !ok {
			continue
		}
		outside := (r.Min != nil && f < *r.Min) || (r.Max != nil && f > *r.Max)
		if outside {
			rows = append(rows, i)
			if len(sample) < r.SampleCap {
				sample = append(sample, fmt.Sprint(v))
			}
		}
	}

	if len(rows) > 0 {
		return Result{
			Rule:       r.Name(),
			Severity:   r.Level,
			Passed:     false,
			Message:    fmt.Sprintf("out of range: %d values in column %q outside numeric range", len(rows), r.Column),
			Sample:     sample,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: r.Level,
		Passed:   true,
		Message:  fmt.Sprintf("column %q within numeric range", r.Column),
	}
}

// ---- statistical rules ----

// NullRateRule fails when a column's null rate exceeds the threshold.
// Statistical by nature, so WARNING severity by default.
type NullRateRule struct {
	Column    string
	Threshold float64
	Level     Severity
	SampleCap int
}

func (r NullRateRule) Name() string { return "null_rate:" + r.Column }
func (r NullRateRule) Kind() Kind   { return KindStatistical }

func (r NullRateRule) Evaluate(table *tabular.Table) Result {
	n := table.NumRows()
	threshold := r.Threshold
	if n == 0 {
		zero := 0.0
		return Result{
			Rule:      r.Name(),
			Severity:  r.Level,
			Passed:    true,
			Message:   fmt.Sprintf("column %q empty batch, null rate 0", r.Column),
			Threshold: &threshold,
			Actual:    &zero,
		}
	}

	var rows []int
	for i, row := range table.Rows {
		if v, ok := row[r.Column]; !ok || v == nil || v == "" {
			rows = append(rows, i)
		}
	}
	rate := float64(len(rows)) / float64(n)

	if rate > r.Threshold {
		return Result{
			Rule:       r.Name(),
			Severity:   r.Level,
			Passed:     false,
			Message:    fmt.Sprintf("data quality: null rate %.4f in column %q exceeds threshold %.4f", rate, r.Column, r.Threshold),
			Threshold:  &threshold,
			Actual:     &rate,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:      r.Name(),
		Severity:  r.Level,
		Passed:    true,
		Message:   fmt.Sprintf("column %q null rate %.4f within threshold", r.Column, rate),
		Threshold: &threshold,
		Actual:    &rate,
	}
}

// DuplicateRateRule fails when the share of rows duplicating an earlier
// row's primary key exceeds the threshold.
type DuplicateRateRule struct {
	Key       []string
	Threshold float64
	Level     Severity
	SampleCap int
}

func (r DuplicateRateRule) Name() string { return "duplicate_rate" }
func (r DuplicateRateRule) Kind() Kind   { return KindStatistical }

func (r DuplicateRateRule) Evaluate(table *tabular.Table) Result {
	n := table.NumRows()
	threshold := r.Threshold
	if n == 0 || len(r.Key) == 0 {
		zero := 0.0
		return Result{
			Rule:      r.Name(),
			Severity:  r.Level,
			Passed:    true,
			Message:   "no primary key declared or empty batch, duplicate check skipped",
			Threshold: &threshold,
			Actual:    &zero,
		}
	}

	seen := make(map[string]bool, n)
	var rows []int
	var sample []string
	for i, row := range table.Rows {
		parts := make([]string, len(r.Key))
		for j, k := range r.Key {
			parts[j] = fmt.Sprint(row[k])
		}
		composite := strings.Join(parts, "\x00")
		if seen[composite] {
			rows = append(rows, i)
			if len(sample) < r.SampleCap {
				sample = append(sample, strings.Join(parts, ","))
			}
		}
		seen[composite] = true
	}
	rate := float64(len(rows)) / float64(n)

	if rate > r.Threshold {
		return Result{
			Rule:       r.Name(),
			Severity:   r.Level,
			Passed:     false,
			Message:    fmt.Sprintf("duplicate rows: rate %.4f over key (%s) exceeds threshold %.4f", rate, strings.Join(r.Key, ", "), r.Threshold),
			Threshold:  &threshold,
			Actual:     &rate,
			Sample:     sample,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:      r.Name(),
		Severity:  r.Level,
		Passed:    true,
		Message:   fmt.Sprintf("duplicate rate %.4f within threshold", rate),
		Threshold: &threshold,
		Actual:    &rate,
	}
}

// DriftRule compares the batch row count against a prior reference batch.
// Relative delta above WarnRatio is a WARNING; it escalates to CRITICAL
// only when CriticalRatio > 0 and the delta exceeds it.
type DriftRule struct {
	ReferenceRows int
	WarnRatio     float64
	CriticalRatio float64 // 0 disables escalation
}

func (r DriftRule) Name() string { return "row_count_drift" }
func (r DriftRule) Kind() Kind   { return KindStatistical }

func (r DriftRule) Evaluate(table *tabular.Table) Result {
	threshold := r.WarnRatio
	if r.ReferenceRows <= 0 {
		zero := 0.0
		return Result{
			Rule:      r.Name(),
			Severity:  SeverityWarning,
			Passed:    true,
			Message:   "no reference batch, drift check skipped",
			Threshold: &threshold,
			Actual:    &zero,
		}
	}

	n := table.NumRows()
	delta := float64(n-r.ReferenceRows) / float64(r.ReferenceRows)
	abs := delta
	if abs < 0 {
		abs = -abs
	}

	severity := SeverityWarning
	if r.CriticalRatio > 0 && abs > r.CriticalRatio {
		severity = SeverityCritical
	}

	if abs > r.WarnRatio {
		return Result{
			Rule:      r.Name(),
			Severity:  severity,
			Passed:    false,
			Message:   fmt.Sprintf("row count drift %.2f%% from reference %d exceeds threshold", delta*100, r.ReferenceRows),
			Threshold: &threshold,
			Actual:    &abs,
		}
	}
	return Result{
		Rule:      r.Name(),
		Severity:  SeverityWarning,
		Passed:    true,
		Message:   fmt.Sprintf("row count drift %.2f%% within threshold", delta*100),
		Threshold: &threshold,
		Actual:    &abs,
	}
}

// ---- business rules ----

// RowPredicate reports whether a row satisfies a business rule.
type RowPredicate func(row tabular.Row) bool

// BusinessRule folds a custom predicate into the validation pass under the
// same severity semantics as built-in rules.
type BusinessRule struct {
	RuleName  string
	Level     Severity
	Predicate RowPredicate
	SampleCap int
}

func (r BusinessRule) Name() string { return "business:" + r.RuleName }
func (r BusinessRule) Kind() Kind   { return KindBusiness }

func (r BusinessRule) Evaluate(table *tabular.Table) Result {
	var rows []int
	var sample []string
	for i, row := range table.Rows {
		if !r.Predicate(row) {
			rows = append(rows, i)
			if len(sample) < r.SampleCap {
				sample = append(sample, fmt.Sprintf("row %d", i))
			}
		}
	}

	if len(rows) > 0 {
		return Result{
			Rule:       r.Name(),
			Severity:   r.Level,
			Passed:     false,
			Message:    fmt.Sprintf("business rule %q violated by %d rows", r.RuleName, len(rows)),
			Sample:     sample,
			RowIndexes: rows,
		}
	}
	return Result{
		Rule:     r.Name(),
		Severity: r.Level,
		Passed:   true,
		Message:  fmt.Sprintf("business rule %q satisfied", r.RuleName),
	}
}
