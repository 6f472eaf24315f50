package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func TestTargetCreateWriteAndSourceRead(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	tg, err := NewTarget(dbPath + "#widgets")
	require.NoError(t, err)
	require.NoError(t, tg.Connect(ctx))

	schema := rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
		{Name: "name", DataType: rowschema.TypeString, Nullable: true},
	}}
	require.NoError(t, tg.CreateTable(ctx, "widgets", schema))

	n, err := tg.WriteBatch(ctx, []rowschema.Row{
		{"id": rowschema.Integer(1), "name": rowschema.String("alice")},
		{"id": rowschema.Integer(2), "name": rowschema.String("bob")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tg.Finalize(ctx))

	src, err := New(dbPath + "#widgets")
	require.NoError(t, err)

	schemaOut, err := src.InferSchema(ctx, 10)
	require.NoError(t, err)
	require.Len(t, schemaOut.Columns, 2)

	require.NoError(t, src.Reset(ctx))
	rows, err := src.ReadBatch(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.False(t, src.HasMore())
}

func TestTargetExistsAndTruncate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	tg, err := NewTarget(dbPath + "#widgets")
	require.NoError(t, err)
	require.NoError(t, tg.Connect(ctx))

	exists, err := tg.Exists(ctx, "widgets")
	require.NoError(t, err)
	assert.False(t, exists)

	schema := rowschema.Schema{Columns: []rowschema.Column{{Name: "id", DataType: rowschema.TypeInteger}}}
	require.NoError(t, tg.CreateTable(ctx, "widgets", schema))

	exists, err = tg.Exists(ctx, "widgets")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = tg.WriteBatch(ctx, []rowschema.Row{{"id": rowschema.Integer(1)}})
	require.NoError(t, err)

	require.NoError(t, tg.Truncate(ctx, "widgets"))
	n, err := tg.WriteBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewRequiresTableFragment(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "test.db"))
	assert.Error(t, err)
}

func TestNewTargetDefaultsTableToData(t *testing.T) {
	tg, err := NewTarget(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	assert.Equal(t, "data", tg.table)
}

func TestTargetSupportsAppend(t *testing.T) {
	tg, err := NewTarget(filepath.Join(t.TempDir(), "test.db") + "#x")
	require.NoError(t, err)
	assert.True(t, tg.SupportsAppend())
}
