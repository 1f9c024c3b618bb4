package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/ingot/tabular"
)

func paymentsTable() *tabular.Table {
	return &tabular.Table{
		Name:    "payments",
		Columns: []string{"payment_id", "amount", "agency"},
		Rows: []tabular.Row{
			{"payment_id": "P1", "amount": 100.0, "agency": "treasury"},
			{"payment_id": "P2", "amount": 40.5, "agency": "transport"},
			{"payment_id": "P3", "amount": 12.0, "agency": "treasury"},
		},
	}
}

func TestCheckValidBatch(t *testing.T) {
	result := paymentsContract("1.0.0").Check(paymentsTable())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	// Metrics always emitted per declared column
	require.Contains(t, result.Metrics, "amount")
	assert.Equal(t, 0, result.Metrics["amount"].NullCount)
	assert.Equal(t, 3, result.Metrics["payment_id"].UniqueCount)
}

func TestCheckMissingColumn(t *testing.T) {
	table := paymentsTable()
	table.Columns = []string{"payment_id", "agency"}
	for i := range table.Rows {
		delete(table.Rows[i], "amount")
	}

	result := paymentsContract("1.0.0").Check(table)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "required column missing")

	// Metrics still emitted for the missing column
	require.Contains(t, result.Metrics, "amount")
	assert.Equal(t, 3, result.Metrics["amount"].NullCount)
}

func TestCheckNullabilityViolation(t *testing.T) {
	table := paymentsTable()
	table.Rows[1]["amount"] = nil

	result := paymentsContract("1.0.0").Check(table)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "non-nullable")
	assert.InDelta(t, 1.0/3.0, result.Metrics["amount"].NullRate, 1e-9)
}

func TestCheckDomainViolation(t *testing.T) {
	table := paymentsTable()
	table.Rows[0]["agency"] = "unknown-agency"

	result := paymentsContract("1.0.0").Check(table)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "allowed domain")
}

func TestCheckBoundsViolation(t *testing.T) {
	table := paymentsTable()
	table.Rows[2]["amount"] = -5.0

	result := paymentsContract("1.0.0").Check(table)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "numeric range")
}

func TestCheckPatternViolation(t *testing.T) {
	table := paymentsTable()
	table.Rows[0]["payment_id"] = "X1"

	result := paymentsContract("1.0.0").Check(table)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "pattern")
}

func TestCheckPrimaryKeyDuplicates(t *testing.T) {
	table := paymentsTable()
	table.Rows[1]["payment_id"] = "P1"

	result := paymentsContract("1.0.0").Check(table)
	assert.False(t, result.Valid)

	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "duplicate key") {
			found = true
		}
	}
	assert.True(t, found, "expected a duplicate key error, got %v", result.Errors)
}
