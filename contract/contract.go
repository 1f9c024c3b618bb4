// Package contract implements versioned schema contracts and the registry
// that stores them. A contract declares a dataset's expected columns and
// constraints; it is immutable once registered, and changing one means
// registering a new semantic version.
package contract

import (
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/veridata/ingot/errors"
)

// ColumnType enumerates the declared types a column may carry.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
)

// validColumnTypes is the closed set of declarable types.
var validColumnTypes = map[ColumnType]bool{
	TypeString:    true,
	TypeInteger:   true,
	TypeFloat:     true,
	TypeBoolean:   true,
	TypeDate:      true,
	TypeTimestamp: true,
}

// ColumnSpec declares one column's contract.
type ColumnSpec struct {
	Name          string     `json:"name" yaml:"name"`
	Type          ColumnType `json:"type" yaml:"type"`
	Nullable      bool       `json:"nullable" yaml:"nullable"`
	Unit          string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	AllowedValues []string   `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
	Min           *float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64   `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern       string     `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// QualityThresholds carries per-dataset statistical limits that override the
// engine defaults when set.
type QualityThresholds struct {
	MaxNullRate      *float64 `json:"max_null_rate,omitempty" yaml:"max_null_rate,omitempty"`
	MaxDuplicateRate *float64 `json:"max_duplicate_rate,omitempty" yaml:"max_duplicate_rate,omitempty"`
	MinQualityScore  *float64 `json:"min_quality_score,omitempty" yaml:"min_quality_score,omitempty"`
}

// Contract is a versioned, immutable declaration of a dataset's expected
// columns and constraints.
type Contract struct {
	Dataset       string            `json:"dataset" yaml:"dataset"`
	Version       string            `json:"version" yaml:"version"`
	Columns       []ColumnSpec      `json:"columns" yaml:"columns"`
	PrimaryKey    []string          `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	PartitionBy   []string          `json:"partition_by,omitempty" yaml:"partition_by,omitempty"`
	BusinessRules []string          `json:"business_rules,omitempty" yaml:"business_rules,omitempty"`
	Thresholds    QualityThresholds `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	RegisteredAt  time.Time         `json:"registered_at,omitempty" yaml:"-"`
}

// Column returns the spec for the named column, or nil if undeclared.
func (c *Contract) Column(name string) *ColumnSpec {
	for i := range c.Columns {
		if c.Columns[i].Name == name {
			return &c.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the declared column names in contract order.
func (c *Contract) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Validate checks the contract itself for structural soundness before
// registration: parseable semver, valid column types, compilable patterns,
// and key columns that actually exist.
func (c *Contract) Validate() error {
	if c.Dataset == "" {
		return errors.New("contract dataset must not be empty")
	}
	if _, err := semver.NewVersion(c.Version); err != nil {
		return errors.Wrapf(err, "contract %s: invalid version %q", c.Dataset, c.Version)
	}
	if len(c.Columns) == 0 {
		return errors.Newf("contract %s@%s declares no columns", c.Dataset, c.Version)
	}

	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return errors.Newf("contract %s@%s: column with empty name", c.Dataset, c.Version)
		}
		if seen[col.Name] {
			return errors.Newf("contract %s@%s: duplicate column %q", c.Dataset, c.Version, col.Name)
		}
		seen[col.Name] = true

		if !validColumnTypes[col.Type] {
			return errors.Newf("contract %s@%s: column %q has unknown type %q",
				c.Dataset, c.Version, col.Name, col.Type)
		}
		if col.Pattern != "" {
			if _, err := regexp.Compile(col.Pattern); err != nil {
				return errors.Wrapf(err, "contract %s@%s: column %q pattern", c.Dataset, c.Version, col.Name)
			}
		}
		if col.Min != nil && col.Max != nil && *col.Min > *col.Max {
			return errors.Newf("contract %s@%s: column %q min %v exceeds max %v",
				c.Dataset, c.Version, col.Name, *col.Min, *col.Max)
		}
	}

	for _, key := range c.PrimaryKey {
		if !seen[key] {
			return errors.Newf("contract %s@%s: primary key column %q not declared", c.Dataset, c.Version, key)
		}
	}
	for _, part := range c.PartitionBy {
		if !seen[part] {
			return errors.Newf("contract %s@%s: partition column %q not declared", c.Dataset, c.Version, part)
		}
	}

	return nil
}
