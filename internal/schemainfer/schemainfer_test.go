package schemainfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func TestInferSingleType(t *testing.T) {
	rows := []rowschema.Row{
		{"id": rowschema.Integer(1), "name": rowschema.String("Alice")},
		{"id": rowschema.Integer(2), "name": rowschema.String("Bob")},
	}
	schema := Infer(rows)

	id, ok := schema.FindColumn("id")
	require.True(t, ok)
	assert.Equal(t, rowschema.TypeInteger, id.DataType)
	assert.True(t, id.Nullable)

	name, ok := schema.FindColumn("name")
	require.True(t, ok)
	assert.Equal(t, rowschema.TypeString, name.DataType)
}

func TestInferMixedTypeWidensToString(t *testing.T) {
	rows := []rowschema.Row{
		{"v": rowschema.Integer(1)},
		{"v": rowschema.String("x")},
	}
	schema := Infer(rows)
	col, _ := schema.FindColumn("v")
	assert.Equal(t, rowschema.TypeString, col.DataType)
}

func TestInferAllNullColumnDefaultsToString(t *testing.T) {
	rows := []rowschema.Row{
		{"v": rowschema.Null()},
		{"v": rowschema.Null()},
	}
	schema := Infer(rows)
	col, _ := schema.FindColumn("v")
	assert.Equal(t, rowschema.TypeString, col.DataType)
	assert.True(t, col.Nullable)
}

func TestInferMissingKeyCountsAsNull(t *testing.T) {
	rows := []rowschema.Row{
		{"a": rowschema.Integer(1), "b": rowschema.Integer(2)},
		{"a": rowschema.Integer(3)},
	}
	schema := Infer(rows)
	b, ok := schema.FindColumn("b")
	require.True(t, ok)
	assert.Equal(t, rowschema.TypeInteger, b.DataType)
}

func TestInferEmptySampleYieldsEmptySchema(t *testing.T) {
	schema := Infer(nil)
	assert.Empty(t, schema.Columns)
	require.NotNil(t, schema.EstimatedRows)
	assert.Equal(t, 0, *schema.EstimatedRows)
}
