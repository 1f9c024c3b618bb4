// Package adapt turns landed raw bytes into tabular datasets. The CSV
// adapter covers the dominant government-portal format; other formats plug
// in behind the same pipeline.Adapter interface.
package adapt

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
	"github.com/veridata/ingot/tabular"
)

// CSVAdapter parses one CSV file into a table named after the file.
// Implements pipeline.Adapter.
type CSVAdapter struct {
	// ColumnMapping renames source headers to contract column names.
	// Unmapped headers pass through unchanged.
	ColumnMapping map[string]string
	logger        *zap.SugaredLogger
}

// NewCSVAdapter creates a CSV adapter. logger may be nil.
func NewCSVAdapter(mapping map[string]string, logger *zap.SugaredLogger) *CSVAdapter {
	return &CSVAdapter{ColumnMapping: mapping, logger: logger}
}

// Adapt parses the file content. Values are typed by shape: numeric text
// becomes float64, true/false become bool, empty cells become nil, and
// everything else stays a string.
func (a *CSVAdapter) Adapt(ctx context.Context, file tabular.SourceFile, content []byte) (*tabular.Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read CSV header from %s", file.Name)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if mapped, ok := a.ColumnMapping[name]; ok {
			name = mapped
		}
		columns[i] = name
	}

	table := &tabular.Table{Name: tableName(file.Name), Columns: columns}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse CSV row in %s", file.Name)
		}

		row := make(tabular.Row, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				row[col] = nil
				continue
			}
			row[col] = typedValue(record[i])
		}
		table.Rows = append(table.Rows, row)
	}

	if a.logger != nil {
		a.logger.Debugw("Adapted CSV file",
			"file", file.Name,
			"table", table.Name,
			"columns", len(columns),
			"rows", table.NumRows(),
		)
	}
	return table, nil
}

// tableName strips the extension so payments.csv becomes payments.
func tableName(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[:idx]
	}
	return filename
}

// typedValue converts raw cell text into the value kinds the validation
// engine understands.
func typedValue(cell string) any {
	v := strings.TrimSpace(cell)
	if v == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}
