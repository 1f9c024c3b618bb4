package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/ingot/tabular"
)

func payments() *tabular.Table {
	return &tabular.Table{
		Name:    "payments",
		Columns: []string{"payment_id", "agency_code"},
		Rows: []tabular.Row{
			{"payment_id": "P1", "agency_code": "TR"},
			{"payment_id": "P2", "agency_code": "DOT"},
			{"payment_id": "P3", "agency_code": "XX"},
		},
	}
}

func agencies() *tabular.Table {
	return &tabular.Table{
		Name:    "agencies",
		Columns: []string{"agency_code", "agency_name"},
		Rows: []tabular.Row{
			{"agency_code": "TR", "agency_name": "Treasury"},
			{"agency_code": "DOT", "agency_name": "Transportation"},
		},
	}
}

func TestEnrichJoinsOnSharedColumn(t *testing.T) {
	table, outcome, err := NewJoiner(nil).Enrich(context.Background(), payments(),
		map[string]*tabular.Table{"agencies": agencies()})
	require.NoError(t, err)

	assert.Equal(t, "Treasury", table.Rows[0]["agency_name"])
	assert.Equal(t, "Transportation", table.Rows[1]["agency_name"])
	assert.Nil(t, table.Rows[2]["agency_name"]) // no reference match
	assert.True(t, table.HasColumn("agency_name"))

	assert.Equal(t, 3, outcome.RecordsProcessed)
	assert.Equal(t, 2, outcome.RecordsEnriched)
	assert.Equal(t, 1, outcome.RecordsFailed)
	assert.InDelta(t, 2.0/3.0, outcome.EnrichmentRate, 1e-9)
}

func TestEnrichWithoutReferenceIsPassThrough(t *testing.T) {
	table, outcome, err := NewJoiner(nil).Enrich(context.Background(), payments(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"payment_id", "agency_code"}, table.Columns)
	assert.Equal(t, 3, outcome.RecordsProcessed)
	assert.Equal(t, 1.0, outcome.QualityScore)
}

func TestEnrichSkipsUnjoinableReference(t *testing.T) {
	unrelated := &tabular.Table{
		Name:    "rates",
		Columns: []string{"currency", "rate"},
		Rows:    []tabular.Row{{"currency": "USD", "rate": 1.0}},
	}

	table, outcome, err := NewJoiner(nil).Enrich(context.Background(), payments(),
		map[string]*tabular.Table{"rates": unrelated})
	require.NoError(t, err)

	assert.False(t, table.HasColumn("rate"))
	assert.Equal(t, 0, outcome.RecordsEnriched)
}

func TestEnrichDoesNotOverwriteExistingValues(t *testing.T) {
	table := payments()
	table.Columns = append(table.Columns, "agency_name")
	table.Rows[0]["agency_name"] = "Already Set"

	enriched, _, err := NewJoiner(nil).Enrich(context.Background(), table,
		map[string]*tabular.Table{"agencies": agencies()})
	require.NoError(t, err)
	assert.Equal(t, "Already Set", enriched.Rows[0]["agency_name"])
}
