package avro

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func TestTargetWriteThenSourceRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avro")
	ctx := context.Background()

	tg := NewTarget(path)
	require.NoError(t, tg.Connect(ctx))

	schema := rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
		{Name: "name", DataType: rowschema.TypeString},
	}}
	require.NoError(t, tg.CreateTable(ctx, "widgets", schema))

	n, err := tg.WriteBatch(ctx, []rowschema.Row{
		{"id": rowschema.Integer(1), "name": rowschema.String("alice")},
		{"id": rowschema.Integer(2), "name": rowschema.Null()},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tg.Finalize(ctx))

	src := New(path)
	inferred, err := src.InferSchema(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, inferred.Columns, 2)

	require.NoError(t, src.Reset(ctx))
	rows, err := src.ReadBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Get("name").IsNull())
	assert.False(t, src.HasMore())
}

func TestAvroSchemaJSON(t *testing.T) {
	schema := rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
	}}
	j := avroSchemaJSON(schema)
	assert.Contains(t, j, `"name": "id"`)
	assert.Contains(t, j, `"long"`)
}

func TestTargetSupportsAppend(t *testing.T) {
	tg := NewTarget(filepath.Join(t.TempDir(), "out.avro"))
	assert.False(t, tg.SupportsAppend())
}
