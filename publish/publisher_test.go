package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/ingot/tabular"
)

func testTable(rows int) *tabular.Table {
	t := &tabular.Table{Name: "payments", Columns: []string{"payment_id"}}
	for i := 0; i < rows; i++ {
		t.Rows = append(t.Rows, tabular.Row{"payment_id": i})
	}
	return t
}

func TestPublishWritesTableAndLatestView(t *testing.T) {
	root := t.TempDir()
	p := NewFilePublisher(root, nil)
	key := tabular.RunKey{ReleaseID: "r1", BatchID: "b1", Dataset: "payments"}

	result, err := p.Publish(context.Background(), testTable(3), key)
	require.NoError(t, err)

	assert.Equal(t, "payments", result.TableName)
	assert.Equal(t, 3, result.RecordCount)
	assert.True(t, result.LatestViewCreated)
	require.Len(t, result.Locations, 1)
	assert.FileExists(t, result.Locations[0])
	assert.FileExists(t, filepath.Join(root, "payments", "latest_payments.json"))
}

func TestRepublishSameKeyOverwrites(t *testing.T) {
	root := t.TempDir()
	p := NewFilePublisher(root, nil)
	key := tabular.RunKey{ReleaseID: "r1", BatchID: "b1", Dataset: "payments"}

	_, err := p.Publish(context.Background(), testTable(5), key)
	require.NoError(t, err)
	result, err := p.Publish(context.Background(), testTable(5), key)
	require.NoError(t, err)

	// Same location, same row count: overwrite, not append
	data, err := os.ReadFile(result.Locations[0])
	require.NoError(t, err)
	var table tabular.Table
	require.NoError(t, json.Unmarshal(data, &table))
	assert.Len(t, table.Rows, 5)
}

func TestLatestViewTracksNewestBatch(t *testing.T) {
	root := t.TempDir()
	p := NewFilePublisher(root, nil)

	_, err := p.Publish(context.Background(), testTable(3),
		tabular.RunKey{ReleaseID: "r1", BatchID: "b1", Dataset: "payments"})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), testTable(7),
		tabular.RunKey{ReleaseID: "r2", BatchID: "b1", Dataset: "payments"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "payments", "latest_payments.json"))
	require.NoError(t, err)
	var table tabular.Table
	require.NoError(t, json.Unmarshal(data, &table))
	assert.Len(t, table.Rows, 7)
}
