package pipeline

import (
	"context"

	"github.com/veridata/ingot/tabular"
)

// Discovery finds and lands the upstream files for one release.
// Implementations own download mechanics, retries, and timeouts.
type Discovery interface {
	// Discover lists the source files for the release.
	Discover(ctx context.Context, releaseID string) ([]tabular.SourceFile, error)
	// Download fetches the listed files and returns the landed batch.
	Download(ctx context.Context, releaseID, batchID string, files []tabular.SourceFile) (*tabular.RawBatch, error)
}

// Adapter turns one landed file into a named tabular dataset. Normalize
// owns adaptation and its faults, though tables are parsed just ahead of
// validation because the engine consumes them.
type Adapter interface {
	Adapt(ctx context.Context, file tabular.SourceFile, content []byte) (*tabular.Table, error)
}

// Enricher joins reference tables onto a dataset during Enrich.
type Enricher interface {
	Enrich(ctx context.Context, table *tabular.Table, reference map[string]*tabular.Table) (*tabular.Table, *EnrichmentOutcome, error)
}

// Publisher writes the final dataset to its output locations.
// Publishing must be idempotent per release+batch: re-publishing the same
// key overwrites or merges, never duplicates rows.
type Publisher interface {
	Publish(ctx context.Context, table *tabular.Table, key tabular.RunKey) (*PublishResult, error)
}
