package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func paymentsContract(version string) *Contract {
	return &Contract{
		Dataset:    "payments",
		Version:    version,
		PrimaryKey: []string{"payment_id"},
		Columns: []ColumnSpec{
			{Name: "payment_id", Type: TypeString, Nullable: false, Pattern: `^P\d+$`},
			{Name: "amount", Type: TypeFloat, Nullable: false, Min: floatPtr(0)},
			{Name: "agency", Type: TypeString, Nullable: true,
				AllowedValues: []string{"treasury", "transport"}},
		},
	}
}

func TestContractValidate(t *testing.T) {
	c := paymentsContract("1.0.0")
	require.NoError(t, c.Validate())
}

func TestContractValidateRejectsBadVersion(t *testing.T) {
	c := paymentsContract("not-a-version")
	assert.Error(t, c.Validate())
}

func TestContractValidateRejectsUnknownType(t *testing.T) {
	c := paymentsContract("1.0.0")
	c.Columns[0].Type = "decimal"
	assert.Error(t, c.Validate())
}

func TestContractValidateRejectsDuplicateColumn(t *testing.T) {
	c := paymentsContract("1.0.0")
	c.Columns = append(c.Columns, ColumnSpec{Name: "amount", Type: TypeFloat})
	assert.Error(t, c.Validate())
}

func TestContractValidateRejectsUndeclaredKeyColumn(t *testing.T) {
	c := paymentsContract("1.0.0")
	c.PrimaryKey = []string{"missing"}
	assert.Error(t, c.Validate())
}

func TestContractValidateRejectsInvertedRange(t *testing.T) {
	c := paymentsContract("1.0.0")
	c.Columns[1].Min = floatPtr(10)
	c.Columns[1].Max = floatPtr(1)
	assert.Error(t, c.Validate())
}

func TestColumnLookup(t *testing.T) {
	c := paymentsContract("1.0.0")
	require.NotNil(t, c.Column("amount"))
	assert.Equal(t, TypeFloat, c.Column("amount").Type)
	assert.Nil(t, c.Column("missing"))
	assert.Equal(t, []string{"payment_id", "amount", "agency"}, c.ColumnNames())
}

func TestMatchesType(t *testing.T) {
	assert.True(t, MatchesType("hello", TypeString))
	assert.False(t, MatchesType(42, TypeString))

	assert.True(t, MatchesType(42, TypeInteger))
	assert.True(t, MatchesType(42.0, TypeInteger))
	assert.False(t, MatchesType(42.5, TypeInteger))
	assert.True(t, MatchesType("17", TypeInteger))

	assert.True(t, MatchesType(3.14, TypeFloat))
	assert.True(t, MatchesType("3.14", TypeFloat))
	assert.False(t, MatchesType("abc", TypeFloat))

	assert.True(t, MatchesType(true, TypeBoolean))
	assert.True(t, MatchesType("true", TypeBoolean))

	assert.True(t, MatchesType("2025-01-31", TypeDate))
	assert.False(t, MatchesType("31/01/2025", TypeDate))

	assert.True(t, MatchesType("2025-01-31T10:00:00Z", TypeTimestamp))

	// Nil is always type-conformant; nullability is a separate check
	assert.True(t, MatchesType(nil, TypeInteger))
}

func TestParseYAML(t *testing.T) {
	c, err := Parse([]byte(`
dataset: payments
version: 1.2.0
primary_key: [payment_id]
columns:
  - name: payment_id
    type: string
    nullable: false
  - name: amount
    type: float
    nullable: false
    min: 0
    max: 1000000
`))
	require.NoError(t, err)
	assert.Equal(t, "payments", c.Dataset)
	assert.Equal(t, "1.2.0", c.Version)
	require.Len(t, c.Columns, 2)
	require.NotNil(t, c.Columns[1].Min)
	assert.Equal(t, 0.0, *c.Columns[1].Min)
}

func TestParseYAMLRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(`dataset: payments`))
	assert.Error(t, err)
}
