// Package enrich joins reference tables onto a dataset during the Enrich
// stage.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/veridata/ingot/pipeline"
	"github.com/veridata/ingot/tabular"
)

// Joiner left-joins reference tables onto the dataset. A reference table
// joins when it shares its first column with the dataset; matched rows
// contribute every column the dataset row does not already carry.
// Implements pipeline.Enricher.
type Joiner struct {
	logger *zap.SugaredLogger
}

// NewJoiner creates a joiner. logger may be nil.
func NewJoiner(logger *zap.SugaredLogger) *Joiner {
	return &Joiner{logger: logger}
}

// Enrich joins each applicable reference table and reports the outcome.
// A row counts as enriched when at least one reference value landed on it.
func (j *Joiner) Enrich(ctx context.Context, table *tabular.Table, reference map[string]*tabular.Table) (*tabular.Table, *pipeline.EnrichmentOutcome, error) {
	outcome := &pipeline.EnrichmentOutcome{RecordsProcessed: table.NumRows()}
	if len(reference) == 0 || table.NumRows() == 0 {
		outcome.QualityScore = 1.0
		return table, outcome, nil
	}

	enrichedRows := make(map[int]bool)
	for _, ref := range reference {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if len(ref.Columns) == 0 {
			continue
		}
		key := ref.Columns[0]
		if !table.HasColumn(key) {
			continue
		}

		index := make(map[any]tabular.Row, ref.NumRows())
		for _, row := range ref.Rows {
			if v := row[key]; v != nil {
				index[v] = row
			}
		}

		added := make(map[string]bool)
		for i, row := range table.Rows {
			match, ok := index[row[key]]
			if !ok {
				continue
			}
			for _, col := range ref.Columns[1:] {
				if _, exists := row[col]; exists {
					continue
				}
				row[col] = match[col]
				added[col] = true
				enrichedRows[i] = true
			}
		}
		for _, col := range ref.Columns[1:] {
			if added[col] && !table.HasColumn(col) {
				table.Columns = append(table.Columns, col)
			}
		}
	}

	outcome.RecordsEnriched = len(enrichedRows)
	outcome.RecordsFailed = outcome.RecordsProcessed - outcome.RecordsEnriched
	if outcome.RecordsProcessed > 0 {
		outcome.EnrichmentRate = float64(outcome.RecordsEnriched) / float64(outcome.RecordsProcessed)
	}
	outcome.QualityScore = outcome.EnrichmentRate

	if j.logger != nil {
		j.logger.Infow("Enrichment complete",
			"table", table.Name,
			"processed", outcome.RecordsProcessed,
			"enriched", outcome.RecordsEnriched,
			"rate", outcome.EnrichmentRate,
		)
	}
	return table, outcome, nil
}
