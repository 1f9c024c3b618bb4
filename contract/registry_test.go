package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/ingot/errors"
	qtest "github.com/veridata/ingot/internal/testing"
)

func TestRegisterAndGet(t *testing.T) {
	db := qtest.CreateTestDB(t)
	reg := NewRegistry(db, "", nil)

	require.NoError(t, reg.Register(paymentsContract("1.0.0")))

	got, err := reg.Get("payments", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "payments", got.Dataset)
	assert.Equal(t, []string{"payment_id"}, got.PrimaryKey)
	assert.False(t, got.RegisteredAt.IsZero())
}

func TestRegisterDuplicateVersionRejected(t *testing.T) {
	db := qtest.CreateTestDB(t)
	reg := NewRegistry(db, "", nil)

	require.NoError(t, reg.Register(paymentsContract("1.0.0")))

	err := reg.Register(paymentsContract("1.0.0"))
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestRegisterNewVersionDoesNotMutatePrior(t *testing.T) {
	db := qtest.CreateTestDB(t)
	reg := NewRegistry(db, "", nil)

	v1 := paymentsContract("1.0.0")
	require.NoError(t, reg.Register(v1))

	v2 := paymentsContract("2.0.0")
	v2.Columns = append(v2.Columns, ColumnSpec{Name: "paid_at", Type: TypeDate, Nullable: true})
	require.NoError(t, reg.Register(v2))

	prior, err := reg.Get("payments", "1.0.0")
	require.NoError(t, err)
	assert.Len(t, prior.Columns, 3)
}

func TestLatestPicksHighestSemver(t *testing.T) {
	db := qtest.CreateTestDB(t)
	reg := NewRegistry(db, "", nil)

	for _, v := range []string{"1.0.0", "1.10.0", "1.2.0"} {
		require.NoError(t, reg.Register(paymentsContract(v)))
	}

	latest, err := reg.Latest("payments")
	require.NoError(t, err)
	// Semver ordering, not lexicographic: 1.10.0 > 1.2.0
	assert.Equal(t, "1.10.0", latest.Version)

	versions, err := reg.Versions("payments")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.2.0", "1.10.0"}, versions)
}

func TestLatestUnknownDataset(t *testing.T) {
	db := qtest.CreateTestDB(t)
	reg := NewRegistry(db, "", nil)

	_, err := reg.Latest("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDatasets(t *testing.T) {
	db := qtest.CreateTestDB(t)
	reg := NewRegistry(db, "", nil)

	require.NoError(t, reg.Register(paymentsContract("1.0.0")))
	grants := paymentsContract("1.0.0")
	grants.Dataset = "grants"
	require.NoError(t, reg.Register(grants))

	datasets, err := reg.Datasets()
	require.NoError(t, err)
	assert.Equal(t, []string{"grants", "payments"}, datasets)
}

func TestRegisterWritesArtifact(t *testing.T) {
	db := qtest.CreateTestDB(t)
	root := t.TempDir()
	reg := NewRegistry(db, root, nil)

	require.NoError(t, reg.Register(paymentsContract("1.0.0")))

	path := filepath.Join(root, "contracts", "payments", "1.0.0.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dataset":"payments"`)
}

func TestRegisterSurfacesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO schema_contracts").
		WillReturnError(errors.New("disk I/O error"))

	reg := NewRegistry(db, "", nil)
	err = reg.Register(paymentsContract("1.0.0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.False(t, errors.IsConflictError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
