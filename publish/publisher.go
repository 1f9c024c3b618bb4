// Package publish writes finished datasets to their output locations.
// Output is keyed by release+batch, so re-publishing the same run
// overwrites its own files instead of duplicating rows.
package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
	"github.com/veridata/ingot/pipeline"
	"github.com/veridata/ingot/tabular"
)

// FilePublisher writes each table as JSON under
// <root>/<dataset>/<release>/<batch>/ and maintains a latest-effective
// view per dataset. Implements pipeline.Publisher.
type FilePublisher struct {
	root   string
	logger *zap.SugaredLogger
}

// NewFilePublisher creates a publisher rooted at the output directory.
func NewFilePublisher(root string, logger *zap.SugaredLogger) *FilePublisher {
	return &FilePublisher{root: root, logger: logger}
}

// Publish writes the table and refreshes the dataset's latest view.
func (p *FilePublisher) Publish(ctx context.Context, table *tabular.Table, key tabular.RunKey) (*pipeline.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(p.root, key.Dataset, key.ReleaseID, key.BatchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create publish dir")
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal table %s", table.Name)
	}

	path := filepath.Join(dir, table.Name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write table %s", table.Name)
	}

	// Latest view points at the most recently published batch
	latest := filepath.Join(p.root, key.Dataset, "latest_"+table.Name+".json")
	latestCreated := false
	if err := os.WriteFile(latest, data, 0o644); err == nil {
		latestCreated = true
	} else if p.logger != nil {
		p.logger.Warnw("Failed to refresh latest view", "table", table.Name, "error", err)
	}

	if p.logger != nil {
		p.logger.Infow("Table published",
			"table", table.Name,
			"rows", table.NumRows(),
			"path", path,
		)
	}

	return &pipeline.PublishResult{
		TableName:         table.Name,
		RecordCount:       table.NumRows(),
		Locations:         []string{path},
		LatestViewCreated: latestCreated,
	}, nil
}
