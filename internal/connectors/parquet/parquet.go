// Package parquet implements the Parquet connector on
// github.com/parquet-go/parquet-go. Columns typed Json are written as
// plain string leaves without the "tinyetl:type"="json" metadata tag of
// internal/rowschema's columnar lowering; on read, any string leaf that
// starts with '{' or '[' and parses as JSON comes back as Json, and other
// JSON values (numbers, strings, booleans) come back as String.
package parquet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	pq "github.com/parquet-go/parquet-go"

	"tinyetl/internal/connectors"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/schemainfer"
	"tinyetl/internal/tetlerr"
)

// Source reads every row group of a Parquet file into memory up front;
// ReadBatch then slices the buffered rows.
type Source struct {
	path    string
	schema  *pq.Schema
	rows    []rowschema.Row
	offset  int
}

// New returns a Parquet Source reading path.
func New(path string) *Source {
	return &Source{path: path}
}

var _ connectors.Source = (*Source)(nil)

func (s *Source) Connect(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "parquet file not found: %s", s.path)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "opening parquet file %s", s.path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "stat-ing parquet file %s", s.path)
	}

	reader, err := pq.OpenFile(f, info.Size())
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "opening parquet reader for %s", s.path)
	}
	s.schema = reader.Schema()

	pr := pq.NewGenericReader[map[string]any](f)
	defer pr.Close()

	rows := make([]map[string]any, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && n == 0 {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "reading rows from %s", s.path)
	}

	s.rows = make([]rowschema.Row, 0, n)
	for _, raw := range rows[:n] {
		row := make(rowschema.Row, len(raw))
		for k, v := range raw {
			row[k] = fromParquetAny(v)
		}
		s.rows = append(s.rows, row)
	}

	return nil
}

// fromParquetAny converts a decoded Parquet leaf value back to a Value.
// A string value shaped like a JSON object or array is reparsed as Json;
// no column metadata is consulted, so this applies to every string leaf.
func fromParquetAny(v any) rowschema.Value {
	switch x := v.(type) {
	case nil:
		return rowschema.Null()
	case int64:
		return rowschema.Integer(x)
	case int32:
		return rowschema.Integer(int64(x))
	case float64:
		return rowschema.Decimal(strconv.FormatFloat(x, 'f', -1, 64))
	case float32:
		return rowschema.Decimal(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case bool:
		return rowschema.Boolean(x)
	case string:
		if len(x) > 0 && (x[0] == '{' || x[0] == '[') {
			var parsed any
			if err := json.Unmarshal([]byte(x), &parsed); err == nil {
				return rowschema.JSON(parsed)
			}
		}
		return rowschema.String(x)
	case []byte:
		return rowschema.String(string(x))
	default:
		return rowschema.JSON(x)
	}
}

func toParquetAny(v rowschema.Value) any {
	switch v.Kind() {
	case rowschema.KindNull:
		return nil
	case rowschema.KindJSON:
		j, _ := v.ToJSON()
		b, err := json.Marshal(j)
		if err != nil {
			return "{}"
		}
		return string(b)
	case rowschema.KindDate:
		s, _ := v.ToStringForArrow()
		return s
	case rowschema.KindInteger:
		i, _ := v.ToI64()
		return i
	case rowschema.KindDecimal:
		f, _ := v.ToF64()
		return f
	case rowschema.KindBoolean:
		b, _ := v.ToBool()
		return b
	default:
		s, _ := v.ToStringForArrow()
		return s
	}
}

func (s *Source) InferSchema(ctx context.Context, sampleSize int) (rowschema.Schema, error) {
	if s.rows == nil {
		if err := s.Connect(ctx); err != nil {
			return rowschema.Schema{}, err
		}
	}
	n := sampleSize
	if n > len(s.rows) {
		n = len(s.rows)
	}
	schema := schemainfer.Infer(s.rows[:n])
	total := len(s.rows)
	schema.EstimatedRows = &total
	return schema, nil
}

func (s *Source) ReadBatch(ctx context.Context, batchSize int) ([]rowschema.Row, error) {
	if s.rows == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}
	end := s.offset + batchSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	batch := s.rows[s.offset:end]
	s.offset = end
	return batch, nil
}

func (s *Source) EstimatedRowCount(ctx context.Context) (*int, error) {
	if s.rows == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}
	n := len(s.rows)
	return &n, nil
}

func (s *Source) Reset(ctx context.Context) error {
	s.offset = 0
	return nil
}

func (s *Source) HasMore() bool {
	return s.offset < len(s.rows)
}

// Target writes rows to a Parquet file. Rows are buffered and the schema
// required by parquet-go's GenericWriter is only known once CreateTable
// supplies it, so writing happens in a single pass on Finalize.
type Target struct {
	path    string
	schema  rowschema.Schema
	rows    []rowschema.Row
}

// NewTarget returns a Parquet Target writing to path.
func NewTarget(path string) *Target {
	return &Target{path: path}
}

var _ connectors.Target = (*Target)(nil)

func (t *Target) Connect(ctx context.Context) error {
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return tetlerr.Wrap(tetlerr.Connection, err, "creating directory for %s", t.path)
		}
	}
	return nil
}

func (t *Target) Exists(ctx context.Context, tableName string) (bool, error) {
	_, err := os.Stat(t.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, tetlerr.Wrap(tetlerr.Connection, err, "checking %s", t.path)
}

func (t *Target) Truncate(ctx context.Context, tableName string) error {
	t.rows = nil
	return os.Remove(t.path)
}

func (t *Target) CreateTable(ctx context.Context, tableName string, schema rowschema.Schema) error {
	t.schema = schema
	return nil
}

func (t *Target) WriteBatch(ctx context.Context, rows []rowschema.Row) (int, error) {
	t.rows = append(t.rows, rows...)
	return len(rows), nil
}

func (t *Target) Finalize(ctx context.Context) error {
	f, err := os.Create(t.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "creating parquet file %s", t.path)
	}
	defer f.Close()

	group := pq.Group{}
	for _, col := range t.schema.Columns {
		group[col.Name] = pq.Optional(leafFor(col.DataType))
	}
	schema := pq.NewSchema("row", group)

	writer := pq.NewGenericWriter[map[string]any](f, schema)
	for _, row := range t.rows {
		record := make(map[string]any, len(t.schema.Columns))
		for _, col := range t.schema.Columns {
			record[col.Name] = toParquetAny(row.Get(col.Name))
		}
		if _, err := writer.Write([]map[string]any{record}); err != nil {
			writer.Close()
			return tetlerr.Wrap(tetlerr.DataTransfer, err, "writing parquet row to %s", t.path)
		}
	}

	if err := writer.Close(); err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "closing parquet writer for %s", t.path)
	}
	return nil
}

func leafFor(dt rowschema.DataType) pq.Node {
	switch dt {
	case rowschema.TypeInteger:
		return pq.Leaf(pq.Int64Type)
	case rowschema.TypeDecimal:
		return pq.Leaf(pq.DoubleType)
	case rowschema.TypeBoolean:
		return pq.Leaf(pq.BooleanType)
	default:
		return pq.String()
	}
}

func (t *Target) SupportsAppend() bool {
	return false
}
