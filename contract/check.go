package contract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/veridata/ingot/tabular"
)

// ColumnMetrics carries observed per-column statistics. Metrics are emitted
// for every declared column regardless of pass/fail so downstream
// observability works even for an invalid batch.
type ColumnMetrics struct {
	NullCount   int     `json:"null_count"`
	NullRate    float64 `json:"null_rate"`
	UniqueCount int     `json:"unique_count"`
}

// CheckResult is the outcome of validating a batch against a contract.
// Check failures are structured error strings, never raw panics.
type CheckResult struct {
	Dataset  string                   `json:"dataset"`
	Version  string                   `json:"version"`
	Valid    bool                     `json:"valid"`
	Errors   []string                 `json:"errors,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
	Metrics  map[string]ColumnMetrics `json:"metrics"`
}

// Check validates a table against the latest contract for the dataset.
func (r *Registry) Check(table *tabular.Table, dataset string) (*CheckResult, error) {
	c, err := r.Latest(dataset)
	if err != nil {
		return nil, err
	}
	return c.Check(table), nil
}

// Check validates a table against this contract: column presence,
// nullability, domain membership, numeric bounds, and primary-key
// uniqueness.
func (c *Contract) Check(table *tabular.Table) *CheckResult {
	result := &CheckResult{
		Dataset: c.Dataset,
		Version: c.Version,
		Valid:   true,
		Metrics: make(map[string]ColumnMetrics, len(c.Columns)),
	}

	for _, col := range c.Columns {
		result.Metrics[col.Name] = observeColumn(table, col.Name)

		if !table.HasColumn(col.Name) {
			result.fail("column %q: required column missing", col.Name)
			continue
		}

		nulls := table.NullCount(col.Name)
		if !col.Nullable && nulls > 0 {
			result.fail("column %q: %d null values in non-nullable column", col.Name, nulls)
		}

		checkDomain(table, col, result)
		checkBounds(table, col, result)
		checkPattern(table, col, result)
	}

	checkPrimaryKey(table, c.PrimaryKey, result)

	return result
}

func (r *CheckResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *CheckResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func observeColumn(table *tabular.Table, name string) ColumnMetrics {
	m := ColumnMetrics{NullCount: table.NullCount(name)}
	if n := table.NumRows(); n > 0 {
		m.NullRate = float64(m.NullCount) / float64(n)
	}

	unique := make(map[string]struct{})
	for _, v := range table.ColumnValues(name) {
		if v == nil {
			continue
		}
		unique[fmt.Sprint(v)] = struct{}{}
	}
	m.UniqueCount = len(unique)
	return m
}

func checkDomain(table *tabular.Table, col ColumnSpec, result *CheckResult) {
	if len(col.AllowedValues) == 0 {
		return
	}
	allowed := make(map[string]bool, len(col.AllowedValues))
	for _, v := range col.AllowedValues {
		allowed[v] = true
	}
	violations := 0
	for _, v := range table.ColumnValues(col.Name) {
		if v == nil {
			continue
		}
		if !allowed[fmt.Sprint(v)] {
			violations++
		}
	}
	if violations > 0 {
		result.fail("column %q: %d values outside allowed domain", col.Name, violations)
	}
}

func checkBounds(table *tabular.Table, col ColumnSpec, result *CheckResult) {
	if col.Min == nil && col.Max == nil {
		return
	}
	violations := 0
	for _, v := range table.ColumnValues(col.Name) {
		f, ok := AsFloat(v)
		if !ok {
			continue
		}
		if col.Min != nil && f < *col.Min {
			violations++
		} else if col.Max != nil && f > *col.Max {
			violations++
		}
	}
	if violations > 0 {
		result.fail("column %q: %d values outside numeric range", col.Name, violations)
	}
}

func checkPattern(table *tabular.Table, col ColumnSpec, result *CheckResult) {
	if col.Pattern == "" {
		return
	}
	re, err := regexp.Compile(col.Pattern)
	if err != nil {
		// Registration validates patterns; an invalid stored pattern is a
		// contract defect, reported as a warning rather than a batch failure
		result.warn("column %q: unparseable pattern %q", col.Name, col.Pattern)
		return
	}
	violations := 0
	for _, v := range table.ColumnValues(col.Name) {
		if v == nil {
			continue
		}
		if !re.MatchString(fmt.Sprint(v)) {
			violations++
		}
	}
	if violations > 0 {
		result.fail("column %q: %d values not matching pattern", col.Name, violations)
	}
}

func checkPrimaryKey(table *tabular.Table, key []string, result *CheckResult) {
	if len(key) == 0 {
		return
	}
	for _, k := range key {
		if !table.HasColumn(k) {
			// Missing key column already reported by the presence check
			return
		}
	}

	seen := make(map[string]int, table.NumRows())
	duplicates := 0
	for _, row := range table.Rows {
		parts := make([]string, len(key))
		for i, k := range key {
			parts[i] = fmt.Sprint(row[k])
		}
		composite := strings.Join(parts, "\x00")
		seen[composite]++
		if seen[composite] == 2 {
			duplicates++
		}
	}
	if duplicates > 0 {
		result.fail("primary key (%s): %d duplicate key values", strings.Join(key, ", "), duplicates)
	}
}

// AsFloat coerces a cell value to float64 where sensible.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// MatchesType reports whether a cell value conforms to the declared column
// type. Nil values are type-conformant; nullability is checked separately.
func MatchesType(v any, t ColumnType) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		switch x := v.(type) {
		case int, int64:
			return true
		case float64:
			return x == float64(int64(x))
		case string:
			_, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			return err == nil
		}
		return false
	case TypeFloat:
		_, ok := AsFloat(v)
		return ok
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return true
		case string:
			_, err := strconv.ParseBool(strings.TrimSpace(x))
			return err == nil
		}
		return false
	case TypeDate:
		s, ok := v.(string)
		if !ok {
			_, isTime := v.(time.Time)
			return isTime
		}
		_, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		return err == nil
	case TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			_, isTime := v.(time.Time)
			return isTime
		}
		_, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		return err == nil
	default:
		return false
	}
}
