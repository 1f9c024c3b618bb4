// Package tabular defines the data types that flow through the ingestion
// pipeline: source file descriptors, raw landed batches, and the named
// tabular datasets the stages hand forward.
//
// A Batch is owned by exactly one stage at a time. Stages receive it,
// mutate it, and hand it to the next stage; nothing mutates it concurrently.
package tabular

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SourceFile is an immutable descriptor of one upstream file.
// Produced by the discovery collaborator; consumed read-only downstream.
type SourceFile struct {
	URL          string    `json:"source_url"`
	Name         string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified,omitempty"`
	Checksum     string    `json:"checksum"`
}

// RawBatch holds the landed bytes for one release. Owned exclusively by the
// Land stage until handed to Validate.
type RawBatch struct {
	ReleaseID string            `json:"release_id"`
	BatchID   string            `json:"batch_id"`
	Files     []SourceFile      `json:"files"`
	Content   map[string][]byte `json:"-"` // filename -> raw bytes
}

// Row is one record of a tabular dataset.
type Row = map[string]any

// Table is one named tabular dataset.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnValues returns every value in the named column, one per row.
// Missing keys yield nil entries.
func (t *Table) ColumnValues(name string) []any {
	values := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[name])
	}
	return values
}

// NullCount returns how many rows have a nil or absent value for the column.
func (t *Table) NullCount(name string) int {
	count := 0
	for _, row := range t.Rows {
		if v, ok := row[name]; !ok || v == nil || v == "" {
			count++
		}
	}
	return count
}

// Batch is the tabular payload produced by Normalize and carried through
// Enrich to Publish: one or more named datasets plus free-form metadata.
type Batch struct {
	Tables   map[string]*Table `json:"tables"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewBatch returns an empty batch ready to receive tables.
func NewBatch() *Batch {
	return &Batch{
		Tables:   make(map[string]*Table),
		Metadata: make(map[string]string),
	}
}

// Add registers a table under its name, replacing any previous table of the
// same name.
func (b *Batch) Add(t *Table) {
	b.Tables[t.Name] = t
}

// Get returns the named table, or nil if absent.
func (b *Batch) Get(name string) *Table {
	return b.Tables[name]
}

// TableNames returns the table names in sorted order.
func (b *Batch) TableNames() []string {
	names := make([]string, 0, len(b.Tables))
	for name := range b.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunKey identifies one pipeline run end to end. It threads through every
// stage, report, and artifact.
type RunKey struct {
	ReleaseID string `json:"release_id"`
	BatchID   string `json:"batch_id"`
	Dataset   string `json:"dataset"`
}

// String renders the key as release/batch for logging.
func (k RunKey) String() string {
	return fmt.Sprintf("%s/%s", k.ReleaseID, k.BatchID)
}

// ContentID derives a stable identifier for a row: sha256 over the dataset,
// rule id, and the row's canonical JSON, truncated to 16 hex chars. The same
// violating row triaged twice yields the same id, which keeps quarantine
// writes idempotent across re-runs.
func ContentID(dataset, rule string, row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(dataset))
	h.Write([]byte{0})
	h.Write([]byte(rule))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		// json.Marshal of a single value cannot fail for the scalar types
		// rows carry after parsing
		v, _ := json.Marshal(row[k])
		h.Write(v)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Checksum computes the sha256 hex digest of raw content, as recorded in
// the landing manifest.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
