package validate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/contract"
	"github.com/veridata/ingot/tabular"
)

// Engine runs an ordered set of structural, domain, statistical, and
// business rules against a batch and produces a Report.
type Engine struct {
	cfg      config.ValidationConfig
	business []BusinessRule
	logger   *zap.SugaredLogger
}

// NewEngine creates a validation engine with the given thresholds.
// logger may be nil for silent operation.
func NewEngine(cfg config.ValidationConfig, logger *zap.SugaredLogger) *Engine {
	if cfg.SampleCap <= 0 {
		cfg.SampleCap = 10
	}
	return &Engine{cfg: cfg, logger: logger}
}

// AddBusinessRule folds a custom predicate into every subsequent validation
// pass. Business rules run after the built-in rules, under the same
// severity semantics.
func (e *Engine) AddBusinessRule(name string, severity Severity, predicate RowPredicate) {
	e.business = append(e.business, BusinessRule{
		RuleName:  name,
		Level:     severity,
		Predicate: predicate,
		SampleCap: e.cfg.SampleCap,
	})
}

// Validate evaluates all rules against the table in fixed order:
// structural, domain, statistical, business. contract and reference may be
// nil; rules that depend on them are skipped. Each rule yields exactly one
// Result; a panic inside a rule is recovered into a failed Result rather
// than aborting the pass.
func (e *Engine) Validate(ctx context.Context, table *tabular.Table, c *contract.Contract, reference *tabular.Table) (*Report, error) {
	key := tabular.RunKey{Dataset: table.Name}
	return e.ValidateRun(ctx, key, table, c, reference)
}

// ValidateRun is Validate with an explicit run key threaded into the report.
func (e *Engine) ValidateRun(ctx context.Context, key tabular.RunKey, table *tabular.Table, c *contract.Contract, reference *tabular.Table) (*Report, error) {
	rules := e.buildRules(table, c, reference)

	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, evaluateSafe(rule, table))
	}

	dataset := key.Dataset
	if dataset == "" {
		dataset = table.Name
	}
	report := buildReport(dataset, key.ReleaseID, key.BatchID, results)

	if e.logger != nil {
		e.logger.Infow("Validation pass complete",
			"dataset", dataset,
			"rules", len(results),
			"passed", report.Passed,
			"failed", report.Failed,
			"quality_score", report.QualityScore,
			"valid", report.Valid,
		)
	}

	return report, nil
}

// evaluateSafe runs one rule, converting a panic into a failed Result so a
// faulty rule can never abort the whole validation pass.
func evaluateSafe(rule Rule, table *tabular.Table) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			// A broken rule is recorded, not allowed to block the run
			result = Result{
				Rule:     rule.Name(),
				Severity: SeverityWarning,
				Passed:   false,
				Message:  fmt.Sprintf("validation failure: rule panicked: %v", r),
			}
		}
	}()
	return rule.Evaluate(table)
}

// buildRules assembles the ordered rule list for this batch.
func (e *Engine) buildRules(table *tabular.Table, c *contract.Contract, reference *tabular.Table) []Rule {
	var rules []Rule

	// (a) structural
	if c != nil {
		rules = append(rules, RequiredColumnsRule{Columns: c.ColumnNames()})
		for _, col := range c.Columns {
			rules = append(rules, TypeMatchRule{
				Column:    col.Name,
				Type:      col.Type,
				SampleCap: e.cfg.SampleCap,
			})
		}
	}
	rules = append(rules, RowCountRule{Min: e.cfg.MinRows, Max: e.cfg.MaxRows})

	// (b) domain
	if c != nil {
		for _, col := range c.Columns {
			if len(col.AllowedValues) > 0 {
				rules = append(rules, AllowedValuesRule{
					Column:    col.Name,
					Allowed:   col.AllowedValues,
					Level:     SeverityWarning,
					SampleCap: e.cfg.SampleCap,
				})
			}
			if col.Pattern != "" {
				rules = append(rules, PatternRule{
					Column:    col.Name,
					Pattern:   col.Pattern,
					Level:     SeverityWarning,
					SampleCap: e.cfg.SampleCap,
				})
			}
			if col.Min != nil || col.Max != nil {
				rules = append(rules, RangeRule{
					Column:    col.Name,
					Min:       col.Min,
					Max:       col.Max,
					Level:     SeverityWarning,
					SampleCap: e.cfg.SampleCap,
				})
			}
		}
	}

	// (c) statistical
	nullThreshold := e.cfg.NullRateThreshold
	dupThreshold := e.cfg.DuplicateRateThreshold
	if c != nil {
		if c.Thresholds.MaxNullRate != nil {
			nullThreshold = *c.Thresholds.MaxNullRate
		}
		if c.Thresholds.MaxDuplicateRate != nil {
			dupThreshold = *c.Thresholds.MaxDuplicateRate
		}
		for _, col := range c.Columns {
			if col.Nullable {
				continue
			}
			// An absent column is the structural rule's finding, not a
			// per-row null-rate signal
			if !table.HasColumn(col.Name) {
				continue
			}
			rules = append(rules, NullRateRule{
				Column:    col.Name,
				Threshold: nullThreshold,
				Level:     SeverityWarning,
				SampleCap: e.cfg.SampleCap,
			})
		}
		if len(c.PrimaryKey) > 0 {
			rules = append(rules, DuplicateRateRule{
				Key:       c.PrimaryKey,
				Threshold: dupThreshold,
				Level:     SeverityWarning,
				SampleCap: e.cfg.SampleCap,
			})
		}
	}
	if reference != nil {
		rules = append(rules, DriftRule{
			ReferenceRows: reference.NumRows(),
			WarnRatio:     e.cfg.DriftWarnRatio,
			CriticalRatio: e.cfg.DriftCriticalRatio,
		})
	}

	// (d) business
	for _, b := range e.business {
		rules = append(rules, b)
	}

	return rules
}
