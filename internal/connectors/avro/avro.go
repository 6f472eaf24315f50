// Package avro implements the Avro connector on the linkedin/goavro/v2
// OCF (object container file) reader and writer.
package avro

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/linkedin/goavro/v2"

	"tinyetl/internal/connectors"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/schemainfer"
	"tinyetl/internal/tetlerr"
)

// Source reads every record of an Avro OCF file into memory up front;
// ReadBatch then slices the buffered rows.
type Source struct {
	path   string
	rows   []rowschema.Row
	offset int
}

// New returns an Avro Source reading path.
func New(path string) *Source {
	return &Source{path: path}
}

var _ connectors.Source = (*Source)(nil)

func (s *Source) Connect(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "avro file not found: %s", s.path)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "opening avro file %s", s.path)
	}
	defer f.Close()

	reader, err := goavro.NewOCFReader(f)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Configuration, err, "reading avro container header of %s", s.path)
	}

	s.rows = nil
	for reader.Scan() {
		datum, err := reader.Read()
		if err != nil {
			return tetlerr.Wrap(tetlerr.DataTransfer, err, "reading avro record from %s", s.path)
		}
		obj, ok := datum.(map[string]any)
		if !ok {
			continue
		}
		row := make(rowschema.Row, len(obj))
		for k, v := range obj {
			row[k] = fromAvroAny(v)
		}
		s.rows = append(s.rows, row)
	}
	if err := reader.Err(); err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "scanning avro file %s", s.path)
	}

	return nil
}

// fromAvroAny unwraps goavro's union representation
// (map[string]any{"type": value}) and converts Go native scalars to
// Values.
func fromAvroAny(v any) rowschema.Value {
	switch x := v.(type) {
	case nil:
		return rowschema.Null()
	case map[string]any:
		for _, inner := range x {
			return fromAvroAny(inner)
		}
		return rowschema.Null()
	case int32:
		return rowschema.Integer(int64(x))
	case int64:
		return rowschema.Integer(x)
	case float32:
		return rowschema.Decimal(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case float64:
		return rowschema.Decimal(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		return rowschema.Boolean(x)
	case string:
		return rowschema.String(x)
	case []byte:
		var parsed any
		if err := json.Unmarshal(x, &parsed); err == nil {
			return rowschema.JSON(parsed)
		}
		return rowschema.String(string(x))
	default:
		return rowschema.JSON(x)
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

// Target writes rows to an Avro OCF file using a schema synthesised from
// the column list CreateTable is given; every field is declared a
// nullable union since source data can contain nulls in any column.
type Target struct {
	path   string
	schema rowschema.Schema
	rows   []rowschema.Row
}

// NewTarget returns an Avro Target writing to path.
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
	schemaJSON := avroSchemaJSON(t.schema)

	f, err := os.Create(t.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "creating avro file %s", t.path)
	}
	defer f.Close()

	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:      f,
		Schema: schemaJSON,
	})
	if err != nil {
		return tetlerr.Wrap(tetlerr.Configuration, err, "building avro schema for %s", t.path)
	}

	records := make([]any, 0, len(t.rows))
	for _, row := range t.rows {
		record := make(map[string]any, len(t.schema.Columns))
		for _, col := range t.schema.Columns {
			record[col.Name] = toAvroUnion(row.Get(col.Name))
		}
		records = append(records, record)
	}

	if err := writer.Append(records); err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "appending avro records to %s", t.path)
	}
	return nil
}

func (t *Target) SupportsAppend() bool {
	return false
}

func avroSchemaJSON(schema rowschema.Schema) string {
	var fields []string
	for _, col := range schema.Columns {
		fields = append(fields, fmt.Sprintf(`{"name": %q, "type": ["null", %s], "default": null}`, col.Name, avroTypeFor(col.DataType)))
	}
	return fmt.Sprintf(`{"type": "record", "name": "Row", "fields": [%s]}`, strings.Join(fields, ", "))
}

func avroTypeFor(dt rowschema.DataType) string {
	switch dt {
	case rowschema.TypeInteger:
		return `"long"`
	case rowschema.TypeDecimal:
		return `"double"`
	case rowschema.TypeBoolean:
		return `"boolean"`
	default:
		return `"string"`
	}
}

// toAvroUnion wraps a Value for a nullable union field, which goavro
// expects as either nil or a single-key map naming the concrete branch.
func toAvroUnion(v rowschema.Value) any {
	switch v.Kind() {
	case rowschema.KindNull:
		return nil
	case rowschema.KindInteger:
		i, _ := v.ToI64()
		return map[string]any{"long": i}
	case rowschema.KindDecimal:
		f, _ := v.ToF64()
		return map[string]any{"double": f}
	case rowschema.KindBoolean:
		b, _ := v.ToBool()
		return map[string]any{"boolean": b}
	case rowschema.KindJSON:
		j, _ := v.ToJSON()
		b, err := json.Marshal(j)
		if err != nil {
			return map[string]any{"string": "{}"}
		}
		return map[string]any{"string": string(b)}
	default:
		s, _ := v.ToStringForArrow()
		return map[string]any{"string": s}
	}
}
