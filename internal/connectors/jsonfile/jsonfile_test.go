package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func TestSourceReadsArrayOfObjects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,"name":"alice"},{"id":2,"name":"bob"}]`), 0o644))

	s := New(path)
	ctx := context.Background()

	schema, err := s.InferSchema(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, schema.Columns, 2)

	rows, err := s.ReadBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, s.HasMore() == false)
}

func TestSourceRejectsNonArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":1}`), 0o644))

	s := New(path)
	err := s.Connect(context.Background())
	assert.Error(t, err)
}

func TestTargetFinalizeWritesJSONArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	tg := NewTarget(path)
	ctx := context.Background()
	require.NoError(t, tg.Connect(ctx))

	schema := rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
		{Name: "name", DataType: rowschema.TypeString},
	}}
	require.NoError(t, tg.CreateTable(ctx, "widgets", schema))

	n, err := tg.WriteBatch(ctx, []rowschema.Row{
		{"id": rowschema.Integer(1), "name": rowschema.String("alice")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tg.Finalize(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "alice", decoded[0]["name"])
	assert.Equal(t, float64(1), decoded[0]["id"])
}

func TestTargetCreateTablePreloadsExistingRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,"name":"alice"}]`), 0o644))

	tg := NewTarget(path)
	ctx := context.Background()
	require.NoError(t, tg.Connect(ctx))

	schema := rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
		{Name: "name", DataType: rowschema.TypeString},
	}}
	require.NoError(t, tg.CreateTable(ctx, "widgets", schema))

	_, err := tg.WriteBatch(ctx, []rowschema.Row{
		{"id": rowschema.Integer(2), "name": rowschema.String("bob")},
	})
	require.NoError(t, err)
	require.NoError(t, tg.Finalize(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)
}

func TestTargetSupportsAppend(t *testing.T) {
	tg := NewTarget(filepath.Join(t.TempDir(), "out.json"))
	assert.True(t, tg.SupportsAppend())
}
