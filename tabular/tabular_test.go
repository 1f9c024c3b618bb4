package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return &Table{
		Name:    "payments",
		Columns: []string{"id", "amount", "agency"},
		Rows: []Row{
			{"id": "1", "amount": 100.0, "agency": "treasury"},
			{"id": "2", "amount": nil, "agency": "treasury"},
			{"id": "3", "amount": 250.5, "agency": ""},
		},
	}
}

func TestTableHelpers(t *testing.T) {
	tbl := sampleTable()

	assert.Equal(t, 3, tbl.NumRows())
	assert.True(t, tbl.HasColumn("amount"))
	assert.False(t, tbl.HasColumn("missing"))

	values := tbl.ColumnValues("amount")
	require.Len(t, values, 3)
	assert.Equal(t, 100.0, values[0])
	assert.Nil(t, values[1])
}

func TestNullCountTreatsEmptyStringAsNull(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, 1, tbl.NullCount("amount"))
	assert.Equal(t, 1, tbl.NullCount("agency"))
	assert.Equal(t, 0, tbl.NullCount("id"))
	// An undeclared column is null in every row
	assert.Equal(t, 3, tbl.NullCount("missing"))
}

func TestBatchTableNamesSorted(t *testing.T) {
	b := NewBatch()
	b.Add(&Table{Name: "zeta"})
	b.Add(&Table{Name: "alpha"})

	assert.Equal(t, []string{"alpha", "zeta"}, b.TableNames())
	assert.NotNil(t, b.Get("alpha"))
	assert.Nil(t, b.Get("gone"))
}

func TestContentIDDeterministic(t *testing.T) {
	row := Row{"id": "7", "amount": 12.5}
	same := Row{"amount": 12.5, "id": "7"} // key order must not matter

	a := ContentID("payments", "null_rate:amount", row)
	b := ContentID("payments", "null_rate:amount", same)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	// Different rule, different id
	c := ContentID("payments", "range:amount", row)
	assert.NotEqual(t, a, c)
}

func TestChecksum(t *testing.T) {
	sum := Checksum([]byte("hello"))
	assert.Len(t, sum, 64)
	assert.Equal(t, Checksum([]byte("hello")), sum)
	assert.NotEqual(t, Checksum([]byte("world")), sum)
}
