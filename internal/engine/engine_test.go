package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/etlconfig"
	"tinyetl/internal/rowschema"
)

type mockSource struct {
	rows     []rowschema.Row
	position int
}

func (m *mockSource) Connect(ctx context.Context) error { return nil }

func (m *mockSource) InferSchema(ctx context.Context, sampleSize int) (rowschema.Schema, error) {
	return rowschema.Schema{Columns: []rowschema.Column{
		{Name: "id", DataType: rowschema.TypeInteger},
		{Name: "name", DataType: rowschema.TypeString},
	}}, nil
}

func (m *mockSource) ReadBatch(ctx context.Context, batchSize int) ([]rowschema.Row, error) {
	end := m.position + batchSize
	if end > len(m.rows) {
		end = len(m.rows)
	}
	batch := m.rows[m.position:end]
	m.position = end
	return batch, nil
}

func (m *mockSource) EstimatedRowCount(ctx context.Context) (*int, error) {
	n := len(m.rows)
	return &n, nil
}

func (m *mockSource) Reset(ctx context.Context) error {
	m.position = 0
	return nil
}

func (m *mockSource) HasMore() bool { return m.position < len(m.rows) }

type mockTarget struct {
	written      []rowschema.Row
	tableCreated bool
	exists       bool
	truncated    bool
}

func (m *mockTarget) Connect(ctx context.Context) error { return nil }
func (m *mockTarget) Exists(ctx context.Context, tableName string) (bool, error) {
	return m.exists, nil
}
func (m *mockTarget) Truncate(ctx context.Context, tableName string) error {
	m.truncated = true
	return nil
}
func (m *mockTarget) CreateTable(ctx context.Context, tableName string, schema rowschema.Schema) error {
	m.tableCreated = true
	return nil
}
func (m *mockTarget) WriteBatch(ctx context.Context, rows []rowschema.Row) (int, error) {
	m.written = append(m.written, rows...)
	return len(rows), nil
}
func (m *mockTarget) Finalize(ctx context.Context) error { return nil }
func (m *mockTarget) SupportsAppend() bool               { return true }

func testConfig() etlconfig.Config {
	c := etlconfig.Default()
	c.Source = "in.csv"
	c.Target = "out.db#widgets"
	return c
}

func TestExecuteCopiesAllRows(t *testing.T) {
	src := &mockSource{rows: []rowschema.Row{
		{"id": rowschema.Integer(1), "name": rowschema.String("a")},
		{"id": rowschema.Integer(2), "name": rowschema.String("b")},
	}}
	tgt := &mockTarget{}

	e := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	stats, err := e.Execute(context.Background(), src, tgt)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalRows)
	assert.True(t, tgt.tableCreated)
	assert.Len(t, tgt.written, 2)
}

func TestExecuteSkipsExistingTarget(t *testing.T) {
	src := &mockSource{rows: []rowschema.Row{{"id": rowschema.Integer(1)}}}
	tgt := &mockTarget{exists: true}

	c := testConfig()
	c.SkipExisting = true

	e := New(c, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	stats, err := e.Execute(context.Background(), src, tgt)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalRows)
	assert.False(t, tgt.tableCreated)
}

func TestExecuteTruncatesWhenRequested(t *testing.T) {
	src := &mockSource{rows: []rowschema.Row{{"id": rowschema.Integer(1)}}}
	tgt := &mockTarget{exists: true}

	c := testConfig()
	c.Truncate = true

	e := New(c, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	_, err := e.Execute(context.Background(), src, tgt)
	require.NoError(t, err)

	assert.True(t, tgt.truncated)
}

func TestExecutePreviewDoesNotWrite(t *testing.T) {
	src := &mockSource{rows: []rowschema.Row{{"id": rowschema.Integer(1)}}}
	tgt := &mockTarget{}

	c := testConfig()
	n := 10
	c.Preview = &n

	e := New(c, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	stats, err := e.Execute(context.Background(), src, tgt)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalRows)
	assert.Empty(t, tgt.written)
	assert.False(t, tgt.tableCreated)
}

func TestExecuteDryRunDoesNotWrite(t *testing.T) {
	src := &mockSource{rows: []rowschema.Row{{"id": rowschema.Integer(1)}}}
	tgt := &mockTarget{}

	c := testConfig()
	c.DryRun = true

	e := New(c, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	_, err := e.Execute(context.Background(), src, tgt)
	require.NoError(t, err)

	assert.False(t, tgt.tableCreated)
	assert.Empty(t, tgt.written)
}

func TestExtractTableName(t *testing.T) {
	assert.Equal(t, "widgets", ExtractTableName("sqlite://out.db#widgets"))
	assert.Equal(t, "employees", ExtractTableName("employees.csv"))
	assert.Equal(t, "data", ExtractTableName(""))
}
