// Package jsonfile implements the JSON connector: a Source that reads a
// file containing a JSON array of objects, and a Target that accumulates
// written rows and serialises them on Finalize.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"tinyetl/internal/connectors"
	"tinyetl/internal/dateparser"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/schemainfer"
	"tinyetl/internal/tetlerr"
)

// Source reads rows from a JSON file holding a top-level array of objects.
type Source struct {
	path  string
	rows  []rowschema.Row
	index int
}

// New returns a JSON Source reading path.
func New(path string) *Source {
	return &Source{path: path}
}

var _ connectors.Source = (*Source)(nil)

func (s *Source) Connect(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "json file not found: %s", s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "reading json file %s", s.path)
	}

	array, err := decodeObjectArray(data)
	if err != nil {
		return tetlerr.Configurationf("json file %s must contain an array of objects: %v", s.path, err)
	}

	s.rows = make([]rowschema.Row, 0, len(array))
	for _, obj := range array {
		row := make(rowschema.Row, len(obj))
		for k, v := range obj {
			row[k] = fromJSONAny(v)
		}
		s.rows = append(s.rows, row)
	}
	s.index = 0
	return nil
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
	return schemainfer.Infer(s.rows[:n]), nil
}

func (s *Source) ReadBatch(ctx context.Context, batchSize int) ([]rowschema.Row, error) {
	if s.rows == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	end := s.index + batchSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	batch := s.rows[s.index:end]
	s.index = end
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
	s.index = 0
	return nil
}

func (s *Source) HasMore() bool {
	return s.index < len(s.rows)
}

// decodeObjectArray decodes a top-level JSON array of objects with
// UseNumber so a NUMERIC field's exact digits survive the decode instead
// of being rounded through float64.
func decodeObjectArray(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var array []map[string]any
	if err := dec.Decode(&array); err != nil {
		return nil, err
	}
	return array, nil
}

// fromJSONAny converts a decoded JSON scalar to a Value, trying a date
// parse on strings before falling back to String, matching the source
// connectors' shared type cascade.
func fromJSONAny(v any) rowschema.Value {
	switch x := v.(type) {
	case nil:
		return rowschema.Null()
	case string:
		if parsed, ok := dateparser.TryParse(x); ok {
			return parsed
		}
		return rowschema.String(x)
	case json.Number:
		text := x.String()
		if !strings.ContainsAny(text, ".eE") {
			if i, err := x.Int64(); err == nil {
				return rowschema.Integer(i)
			}
		}
		return rowschema.Decimal(text)
	case bool:
		return rowschema.Boolean(x)
	case []any, map[string]any:
		return rowschema.JSON(x)
	default:
		return rowschema.String("")
	}
}

func toJSONAny(v rowschema.Value) any {
	switch v.Kind() {
	case rowschema.KindNull:
		return nil
	case rowschema.KindJSON:
		j, _ := v.ToJSON()
		return j
	case rowschema.KindDate:
		s, _ := v.ToStringForArrow()
		return s
	default:
		s, ok := v.ToStringForArrow()
		if !ok {
			return nil
		}
		switch v.Kind() {
		case rowschema.KindInteger:
			i, _ := v.ToI64()
			return i
		case rowschema.KindDecimal:
			d, _ := v.ToDecimalString()
			return json.Number(d)
		case rowschema.KindBoolean:
			b, _ := v.ToBool()
			return b
		default:
			return s
		}
	}
}

// Target accumulates written rows in memory and serialises them as a
// single JSON array on Finalize.
type Target struct {
	path   string
	schema rowschema.Schema
	rows   []rowschema.Row
}

// NewTarget returns a JSON Target writing to path.
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

// CreateTable records the schema and, if the file already exists,
// preloads its rows so WriteBatch appends rather than overwrites.
func (t *Target) CreateTable(ctx context.Context, tableName string, schema rowschema.Schema) error {
	t.schema = schema

	existing, err := t.loadExisting()
	if err != nil {
		return err
	}
	t.rows = existing

	return nil
}

func (t *Target) loadExisting() ([]rowschema.Row, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, tetlerr.Wrap(tetlerr.Connection, err, "reading existing json file %s", t.path)
	}

	array, err := decodeObjectArray(data)
	if err != nil {
		return nil, nil
	}

	rows := make([]rowschema.Row, 0, len(array))
	for _, obj := range array {
		row := make(rowschema.Row, len(obj))
		for k, v := range obj {
			row[k] = fromJSONAny(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Target) WriteBatch(ctx context.Context, rows []rowschema.Row) (int, error) {
	t.rows = append(t.rows, rows...)
	return len(rows), nil
}

func (t *Target) Finalize(ctx context.Context) error {
	array := make([]map[string]any, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]any, len(t.schema.Columns))
		if len(t.schema.Columns) > 0 {
			for _, col := range t.schema.Columns {
				obj[col.Name] = toJSONAny(row.Get(col.Name))
			}
		} else {
			for k, v := range row {
				obj[k] = toJSONAny(v)
			}
		}
		array = append(array, obj)
	}

	data, err := json.MarshalIndent(array, "", "  ")
	if err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "marshalling json output for %s", t.path)
	}

	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "writing json file %s", t.path)
	}
	return nil
}

func (t *Target) SupportsAppend() bool {
	return true
}
