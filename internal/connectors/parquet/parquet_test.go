package parquet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func TestTargetWriteThenSourceRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	ctx := context.Background()

	tg := NewTarget(path)
	require.NoError(t, tg.Connect(ctx))

	schema := rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
		{Name: "name", DataType: rowschema.TypeString},
		{Name: "active", DataType: rowschema.TypeBoolean},
	}}
	require.NoError(t, tg.CreateTable(ctx, "widgets", schema))

	n, err := tg.WriteBatch(ctx, []rowschema.Row{
		{"id": rowschema.Integer(1), "name": rowschema.String("alice"), "active": rowschema.Boolean(true)},
		{"id": rowschema.Integer(2), "name": rowschema.String("bob"), "active": rowschema.Boolean(false)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tg.Finalize(ctx))

	src := New(path)
	inferred, err := src.InferSchema(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, inferred.Columns, 3)

	require.NoError(t, src.Reset(ctx))
	rows, err := src.ReadBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	name, ok := rows[0].Get("name").AsString()
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.False(t, src.HasMore())
}

func TestTargetExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	tg := NewTarget(path)
	ctx := context.Background()

	exists, err := tg.Exists(ctx, "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTargetSupportsAppend(t *testing.T) {
	tg := NewTarget(filepath.Join(t.TempDir(), "out.parquet"))
	assert.False(t, tg.SupportsAppend())
}
