package validate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/contract"
	"github.com/veridata/ingot/tabular"
)

func floatPtr(f float64) *float64 { return &f }

func testConfig() config.ValidationConfig {
	return config.ValidationConfig{
		MinRows:                1,
		NullRateThreshold:      0.05,
		DuplicateRateThreshold: 0.01,
		DriftWarnRatio:         0.3,
		SampleCap:              10,
	}
}

func testContract() *contract.Contract {
	return &contract.Contract{
		Dataset:    "payments",
		Version:    "1.0.0",
		PrimaryKey: []string{"payment_id"},
		Columns: []contract.ColumnSpec{
			{Name: "payment_id", Type: contract.TypeString, Nullable: false},
			{Name: "amount", Type: contract.TypeFloat, Nullable: false, Min: floatPtr(0)},
			{Name: "agency", Type: contract.TypeString, Nullable: true,
				AllowedValues: []string{"treasury", "transport"}},
		},
	}
}

func cleanTable(rows int) *tabular.Table {
	t := &tabular.Table{
		Name:    "payments",
		Columns: []string{"payment_id", "amount", "agency"},
	}
	for i := 0; i < rows; i++ {
		t.Rows = append(t.Rows, tabular.Row{
			"payment_id": fmt.Sprintf("P%d", i),
			"amount":     float64(i) + 0.5,
			"agency":     "treasury",
		})
	}
	return t
}

func TestValidateCleanBatch(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	report, err := engine.Validate(context.Background(), cleanTable(100), testContract(), nil)
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.Equal(t, 0, report.Failed)
	// Every rule passing means quality score exactly 1.0
	assert.Equal(t, 1.0, report.QualityScore)
}

func TestQualityScoreIsPassedOverTotal(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	table := cleanTable(100)
	table.Rows[0]["agency"] = "not-an-agency" // one domain failure

	report, err := engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	total := len(report.Results)
	assert.Equal(t, float64(report.Passed)/float64(total), report.QualityScore)
	assert.Less(t, report.QualityScore, 1.0)
}

func TestMissingRequiredColumnIsCriticalWholeBatch(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	table := cleanTable(10)
	table.Columns = []string{"payment_id", "agency"}
	for i := range table.Rows {
		delete(table.Rows[i], "amount")
	}

	report, err := engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	critical := report.CriticalFailures()
	require.NotEmpty(t, critical)
	assert.Equal(t, "required_columns", critical[0].Rule)
	// Whole-batch rejection: no per-row indexes on the structural failure
	assert.Empty(t, critical[0].RowIndexes)
}

func TestNullRateWarningDoesNotInvalidate(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	table := cleanTable(1000)
	for i := 0; i < 50; i++ {
		table.Rows[i]["amount"] = nil
	}

	report, err := engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	// 5% nulls exactly matches the threshold edge: use 51 to exceed
	table.Rows[50]["amount"] = nil
	report, err = engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	assert.True(t, report.Valid, "warning failures never block")

	var nullResult *Result
	for i := range report.Results {
		if report.Results[i].Rule == "null_rate:amount" {
			nullResult = &report.Results[i]
		}
	}
	require.NotNil(t, nullResult)
	assert.False(t, nullResult.Passed)
	assert.Equal(t, SeverityWarning, nullResult.Severity)
	assert.Len(t, nullResult.RowIndexes, 51)
}

func TestTypeMismatchIsCritical(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	table := cleanTable(10)
	table.Rows[3]["amount"] = "not-a-number"

	report, err := engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	critical := report.CriticalFailures()
	require.Len(t, critical, 1)
	assert.Equal(t, "type_match:amount", critical[0].Rule)
	assert.Equal(t, []int{3}, critical[0].RowIndexes)
}

func TestSampleCapBoundsReportedValues(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCap = 3
	engine := NewEngine(cfg, nil)

	table := cleanTable(50)
	for i := 0; i < 20; i++ {
		table.Rows[i]["agency"] = fmt.Sprintf("bad-%d", i)
	}

	report, err := engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	for _, res := range report.FailedResults() {
		if res.Rule == "allowed_values:agency" {
			assert.Len(t, res.Sample, 3, "sample capped")
			assert.Len(t, res.RowIndexes, 20, "all violating rows recorded")
			return
		}
	}
	t.Fatal("allowed_values rule did not fire")
}

func TestDriftWarningByDefault(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	reference := cleanTable(1000)
	table := cleanTable(500) // -50% drift

	report, err := engine.Validate(context.Background(), table, testContract(), reference)
	require.NoError(t, err)

	assert.True(t, report.Valid, "drift is WARNING by default, never blocks")

	var drift *Result
	for i := range report.Results {
		if report.Results[i].Rule == "row_count_drift" {
			drift = &report.Results[i]
		}
	}
	require.NotNil(t, drift)
	assert.False(t, drift.Passed)
	assert.Equal(t, SeverityWarning, drift.Severity)
}

func TestDriftEscalatesWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.DriftCriticalRatio = 0.8
	engine := NewEngine(cfg, nil)

	reference := cleanTable(1000)
	table := cleanTable(100) // -90% drift, beyond the critical ratio

	report, err := engine.Validate(context.Background(), table, testContract(), reference)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	critical := report.CriticalFailures()
	require.Len(t, critical, 1)
	assert.Equal(t, "row_count_drift", critical[0].Rule)
}

func TestBusinessRuleFoldedIn(t *testing.T) {
	engine := NewEngine(testConfig(), nil)
	engine.AddBusinessRule("amount-under-1000", SeverityWarning, func(row tabular.Row) bool {
		f, ok := contract.AsFloat(row["amount"])
		return ok && f < 1000
	})

	table := cleanTable(10)
	table.Rows[4]["amount"] = 5000.0

	report, err := engine.Validate(context.Background(), table, testContract(), nil)
	require.NoError(t, err)

	assert.True(t, report.Valid)
	var business *Result
	for i := range report.Results {
		if report.Results[i].Rule == "business:amount-under-1000" {
			business = &report.Results[i]
		}
	}
	require.NotNil(t, business)
	assert.False(t, business.Passed)
	assert.Equal(t, []int{4}, business.RowIndexes)
}

func TestRulePanicBecomesFailedResult(t *testing.T) {
	engine := NewEngine(testConfig(), nil)
	engine.AddBusinessRule("panics", SeverityWarning, func(row tabular.Row) bool {
		panic("boom")
	})

	report, err := engine.Validate(context.Background(), cleanTable(5), testContract(), nil)
	require.NoError(t, err, "a panicking rule must not abort the pass")

	var panicked *Result
	for i := range report.Results {
		if report.Results[i].Rule == "business:panics" {
			panicked = &report.Results[i]
		}
	}
	require.NotNil(t, panicked)
	assert.False(t, panicked.Passed)
	assert.Contains(t, panicked.Message, "panicked")
}

func TestValidateRespectsContextCancellation(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Validate(ctx, cleanTable(10), testContract(), nil)
	assert.Error(t, err)
}

func TestRuleOrderStructuralFirst(t *testing.T) {
	engine := NewEngine(testConfig(), nil)

	report, err := engine.Validate(context.Background(), cleanTable(10), testContract(), cleanTable(10))
	require.NoError(t, err)

	// Fixed order: structural rules first, then domain, then statistical
	require.True(t, len(report.Results) > 3)
	assert.Equal(t, "required_columns", report.Results[0].Rule)
	last := report.Results[len(report.Results)-1]
	assert.Equal(t, "row_count_drift", last.Rule)
}
