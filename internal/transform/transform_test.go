package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func TestDisabledTransformerIsIdentity(t *testing.T) {
	tr, err := New(Config{})
	require.NoError(t, err)
	defer tr.Close()

	assert.False(t, tr.Enabled())

	rows := []rowschema.Row{{"a": rowschema.Integer(1)}}
	out, err := tr.TransformBatch(rows)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestInlineExpressionTransformsEachRow(t *testing.T) {
	tr, err := New(Config{Inline: "doubled = row.n * 2"})
	require.NoError(t, err)
	defer tr.Close()

	require.True(t, tr.Enabled())

	rows := []rowschema.Row{
		{"n": rowschema.Integer(2)},
		{"n": rowschema.Integer(3)},
	}
	out, err := tr.TransformBatch(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)

	doubled, ok := out[0]["doubled"].ToF64()
	require.True(t, ok)
	assert.Equal(t, 4.0, doubled)
}

func TestInlineTransformKeepsRow(t *testing.T) {
	tr, err := New(Config{Inline: "keep = row.n"})
	require.NoError(t, err)
	defer tr.Close()

	rows := []rowschema.Row{{"n": rowschema.Integer(1)}}
	out, err := tr.TransformBatch(rows)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestInvalidColumnNameRejected(t *testing.T) {
	_, err := New(Config{Inline: "bad name = 1"})
	assert.Error(t, err)
}

func TestScriptFormAllowsLocalVariableChaining(t *testing.T) {
	tr, err := New(Config{Script: "base = row.n + 1\ntotal = base * 2"})
	require.NoError(t, err)
	defer tr.Close()

	rows := []rowschema.Row{{"n": rowschema.Integer(1)}}
	out, err := tr.TransformBatch(rows)
	require.NoError(t, err)
	require.Len(t, out, 1)

	total, ok := out[0]["total"].ToF64()
	require.True(t, ok)
	assert.Equal(t, 4.0, total)
}
