package contract

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/veridata/ingot/errors"
)

// Registry stores versioned contracts. Registration is append-only per
// (dataset, version): the sqlite primary key serializes concurrent writers
// and surfaces the loser as ErrConflict. Reads are unlimited.
type Registry struct {
	db           *sql.DB
	artifactRoot string // JSON artifact dir; empty disables artifact export
	logger       *zap.SugaredLogger
}

// NewRegistry creates a contract registry over an open database.
// artifactRoot may be empty to skip writing contract JSON artifacts.
func NewRegistry(db *sql.DB, artifactRoot string, logger *zap.SugaredLogger) *Registry {
	return &Registry{db: db, artifactRoot: artifactRoot, logger: logger}
}

// Register stores a new contract version. Re-registering an existing
// (dataset, version) pair returns ErrConflict; previously registered
// versions are never mutated.
func (r *Registry) Register(c *Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}

	registered := *c
	registered.RegisteredAt = time.Now().UTC()

	payload, err := json.Marshal(&registered)
	if err != nil {
		return errors.Wrap(err, "failed to marshal contract")
	}

	_, err = r.db.Exec(
		`INSERT INTO schema_contracts (dataset, version, payload, registered_at) VALUES (?, ?, ?, ?)`,
		registered.Dataset, registered.Version, string(payload), registered.RegisteredAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") ||
			strings.Contains(err.Error(), "PRIMARY KEY constraint") {
			return errors.NewConflictError("contract %s@%s already registered", registered.Dataset, registered.Version)
		}
		return errors.Wrapf(err, "failed to register contract %s@%s", registered.Dataset, registered.Version)
	}

	if r.artifactRoot != "" {
		if err := r.writeArtifact(&registered, payload); err != nil {
			return err
		}
	}

	if r.logger != nil {
		r.logger.Infow("Contract registered",
			"dataset", registered.Dataset,
			"version", registered.Version,
			"columns", len(registered.Columns),
		)
	}

	return nil
}

// writeArtifact exports the contract JSON under
// <root>/contracts/<dataset>/<version>.json.
func (r *Registry) writeArtifact(c *Contract, payload []byte) error {
	dir := filepath.Join(r.artifactRoot, "contracts", c.Dataset)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create contract artifact dir")
	}
	path := filepath.Join(dir, c.Version+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write contract artifact %s", path)
	}
	return nil
}

// Get retrieves a specific contract version.
func (r *Registry) Get(dataset, version string) (*Contract, error) {
	var payload string
	err := r.db.QueryRow(
		`SELECT payload FROM schema_contracts WHERE dataset = ? AND version = ?`,
		dataset, version,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("contract %s@%s", dataset, version)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get contract %s@%s", dataset, version)
	}
	return unmarshalContract(payload)
}

// Latest returns the highest registered semver for the dataset.
func (r *Registry) Latest(dataset string) (*Contract, error) {
	rows, err := r.db.Query(
		`SELECT version, payload FROM schema_contracts WHERE dataset = ?`, dataset,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list contract versions for %s", dataset)
	}
	defer rows.Close()

	var (
		best        *semver.Version
		bestPayload string
	)
	for rows.Next() {
		var version, payload string
		if err := rows.Scan(&version, &payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan contract row")
		}
		v, err := semver.NewVersion(version)
		if err != nil {
			// Registration validates versions, so this indicates row corruption
			return nil, errors.Wrapf(err, "stored contract %s@%s has invalid version", dataset, version)
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestPayload = payload
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating contract versions")
	}
	if best == nil {
		return nil, errors.NewNotFoundError("no contract registered for dataset %s", dataset)
	}
	return unmarshalContract(bestPayload)
}

// Versions returns all registered versions for the dataset in ascending
// semver order.
func (r *Registry) Versions(dataset string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT version FROM schema_contracts WHERE dataset = ?`, dataset,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list contract versions for %s", dataset)
	}
	defer rows.Close()

	var parsed semver.Collection
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, errors.Wrap(err, "failed to scan version row")
		}
		v, err := semver.NewVersion(version)
		if err != nil {
			return nil, errors.Wrapf(err, "stored contract %s@%s has invalid version", dataset, version)
		}
		parsed = append(parsed, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating contract versions")
	}

	sort.Sort(parsed)
	out := make([]string, len(parsed))
	for i, v := range parsed {
		out[i] = v.Original()
	}
	return out, nil
}

// Datasets returns the names of all datasets with at least one contract.
func (r *Registry) Datasets() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT dataset FROM schema_contracts ORDER BY dataset`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list datasets")
	}
	defer rows.Close()

	var datasets []string
	for rows.Next() {
		var dataset string
		if err := rows.Scan(&dataset); err != nil {
			return nil, errors.Wrap(err, "failed to scan dataset row")
		}
		datasets = append(datasets, dataset)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating datasets")
	}
	return datasets, nil
}

func unmarshalContract(payload string) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal stored contract")
	}
	return &c, nil
}
