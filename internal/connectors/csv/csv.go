// Package csv implements the CSV connector: a Source that type-sniffs
// every field and a Target that writes rows back out in schema column
// order. There is no third-party CSV library in the retrieval pack's own
// source (only transitively, via test fixtures), so this connector is
// built on encoding/csv.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"tinyetl/internal/connectors"
	"tinyetl/internal/dateparser"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/schemainfer"
	"tinyetl/internal/tetlerr"
)

// Source reads rows from a CSV file, sniffing each field's type the same
// way on every pass so infer_schema and read_batch agree.
type Source struct {
	path    string
	headers []string
	file    *os.File
	reader  *csv.Reader
	hasMore bool
}

// New returns a CSV Source reading path.
func New(path string) *Source {
	return &Source{path: path, hasMore: true}
}

var _ connectors.Source = (*Source)(nil)

func (s *Source) Connect(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "csv file not found: %s", s.path)
	}
	return s.openAt(0)
}

func (s *Source) openAt(offset int64) error {
	if s.file != nil {
		s.file.Close()
	}

	f, err := os.Open(s.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "opening csv file %s", s.path)
	}
	s.file = f
	s.reader = csv.NewReader(bufio.NewReader(f))

	headers, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			s.headers = nil
			s.hasMore = false
			return nil
		}
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "reading csv header of %s", s.path)
	}
	s.headers = headers
	s.hasMore = true
	return nil
}

func (s *Source) InferSchema(ctx context.Context, sampleSize int) (rowschema.Schema, error) {
	if s.reader == nil {
		if err := s.Connect(ctx); err != nil {
			return rowschema.Schema{}, err
		}
	}

	rows, err := s.readN(sampleSize)
	if err != nil {
		return rowschema.Schema{}, err
	}
	if err := s.Reset(ctx); err != nil {
		return rowschema.Schema{}, err
	}

	schema := schemainfer.Infer(rows)
	return orderColumns(schema, s.headers), nil
}

// orderColumns reorders an inferred schema's columns to match header
// order, since map iteration inside schemainfer.Infer does not preserve it.
func orderColumns(schema rowschema.Schema, headers []string) rowschema.Schema {
	ordered := make([]rowschema.Column, 0, len(headers))
	for _, h := range headers {
		if col, ok := schema.FindColumn(h); ok {
			ordered = append(ordered, col)
		}
	}
	schema.Columns = ordered
	return schema
}

func (s *Source) ReadBatch(ctx context.Context, batchSize int) ([]rowschema.Row, error) {
	if s.reader == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return s.readN(batchSize)
}

func (s *Source) readN(n int) ([]rowschema.Row, error) {
	rows := make([]rowschema.Row, 0, n)
	if s.reader == nil {
		return rows, nil
	}

	for len(rows) < n {
		record, err := s.reader.Read()
		if err == io.EOF {
			s.hasMore = false
			break
		}
		if err != nil {
			return nil, tetlerr.Wrap(tetlerr.DataTransfer, err, "reading csv record from %s", s.path)
		}

		row := make(rowschema.Row, len(s.headers))
		for i, field := range record {
			if i >= len(s.headers) {
				break
			}
			row[s.headers[i]] = parseValue(field)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (s *Source) EstimatedRowCount(ctx context.Context) (*int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, tetlerr.Wrap(tetlerr.Connection, err, "opening csv file %s", s.path)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return nil, tetlerr.Wrap(tetlerr.DataTransfer, err, "counting lines in %s", s.path)
	}

	count := lines - 1
	if count < 0 {
		count = 0
	}
	return &count, nil
}

func (s *Source) Reset(ctx context.Context) error {
	return s.openAt(0)
}

func (s *Source) HasMore() bool {
	return s.hasMore && s.reader != nil
}

// parseValue sniffs a raw CSV field the same way the source's own type
// cascade works: integer, decimal, boolean, date, then string, with an
// empty field read as Null.
func parseValue(field string) rowschema.Value {
	if field == "" {
		return rowschema.Null()
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return rowschema.Integer(i)
	}
	if _, err := strconv.ParseFloat(field, 64); err == nil {
		return rowschema.Decimal(field)
	}
	if b, err := strconv.ParseBool(field); err == nil {
		return rowschema.Boolean(b)
	}
	if dateparser.MightBeDate(field) {
		if v, ok := dateparser.TryParse(field); ok {
			return v
		}
	}
	return rowschema.String(field)
}

func valueToString(v rowschema.Value) string {
	switch v.Kind() {
	case rowschema.KindNull:
		return ""
	case rowschema.KindJSON:
		j, _ := v.ToJSON()
		b, err := json.Marshal(j)
		if err != nil {
			return "{}"
		}
		return string(b)
	default:
		s, _ := v.ToStringForArrow()
		return s
	}
}

// Target writes rows to a CSV file in the column order CreateTable was
// given.
type Target struct {
	path    string
	file    *os.File
	writer  *csv.Writer
	columns []string
}

// NewTarget returns a CSV Target writing to path.
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

	f, err := os.Create(t.path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "creating csv file %s", t.path)
	}
	t.file = f
	t.writer = csv.NewWriter(f)
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
	return t.Connect(ctx)
}

func (t *Target) CreateTable(ctx context.Context, tableName string, schema rowschema.Schema) error {
	if t.writer == nil {
		if err := t.Connect(ctx); err != nil {
			return err
		}
	}

	t.columns = schema.Names()
	if err := t.writer.Write(t.columns); err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "writing csv header to %s", t.path)
	}
	return nil
}

func (t *Target) WriteBatch(ctx context.Context, rows []rowschema.Row) (int, error) {
	if t.writer == nil {
		return 0, tetlerr.Connectionf("csv target not connected: %s", t.path)
	}

	for _, row := range rows {
		record := make([]string, len(t.columns))
		for i, col := range t.columns {
			record[i] = valueToString(row.Get(col))
		}
		if err := t.writer.Write(record); err != nil {
			return 0, tetlerr.Wrap(tetlerr.DataTransfer, err, "writing csv record to %s", t.path)
		}
	}
	return len(rows), nil
}

func (t *Target) Finalize(ctx context.Context) error {
	if t.writer != nil {
		t.writer.Flush()
		if err := t.writer.Error(); err != nil {
			return tetlerr.Wrap(tetlerr.DataTransfer, err, "flushing csv writer for %s", t.path)
		}
	}
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

func (t *Target) SupportsAppend() bool {
	return false
}
