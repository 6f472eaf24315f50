// Package sqlite implements the SQLite connector on database/sql and the
// mattn/go-sqlite3 driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"tinyetl/internal/connectors"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/tetlerr"
)

// Source reads a single table from a SQLite database file, paginating
// with LIMIT/OFFSET.
type Source struct {
	dbPath    string
	table     string
	db        *sql.DB
	offset    int
	totalRows *int
}

// New builds a Source from a "path/to.db#table" descriptor.
func New(descriptor string) (*Source, error) {
	dbPath, table, err := splitTableDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, tetlerr.Configurationf("sqlite source requires table specification: file.db#table")
	}
	return &Source{dbPath: dbPath, table: table}, nil
}

var _ connectors.Source = (*Source)(nil)

func splitTableDescriptor(descriptor string) (path, table string, err error) {
	d := strings.TrimPrefix(strings.TrimPrefix(descriptor, "sqlite://"), "sqlite:")
	if idx := strings.Index(d, "#"); idx >= 0 {
		return d[:idx], d[idx+1:], nil
	}
	return d, "", nil
}

func (s *Source) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "failed to connect to sqlite database %q", s.dbPath)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return tetlerr.Wrap(tetlerr.Connection, err, "failed to connect to sqlite database %q; make sure the file exists and is readable", s.dbPath)
	}
	s.db = db
	return nil
}

func (s *Source) InferSchema(ctx context.Context, sampleSize int) (rowschema.Schema, error) {
	if s.db == nil {
		if err := s.Connect(ctx); err != nil {
			return rowschema.Schema{}, err
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, s.table))
	if err != nil {
		return rowschema.Schema{}, tetlerr.Wrap(tetlerr.SchemaInference, err, "reading table_info for %q", s.table)
	}
	defer rows.Close()

	var columns []rowschema.Column
	for rows.Next() {
		var cid int
		var name, sqlType string
		var notNull int
		var dfltValue any
		var pk int
		if err := rows.Scan(&cid, &name, &sqlType, &notNull, &dfltValue, &pk); err != nil {
			return rowschema.Schema{}, tetlerr.Wrap(tetlerr.SchemaInference, err, "scanning table_info row for %q", s.table)
		}
		columns = append(columns, rowschema.Column{
			Name:     name,
			DataType: mapSQLiteType(sqlType),
			Nullable: notNull == 0,
		})
	}

	var count int
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, s.table))
	if err := row.Scan(&count); err != nil {
		return rowschema.Schema{}, tetlerr.Wrap(tetlerr.SchemaInference, err, "counting rows in %q", s.table)
	}
	s.totalRows = &count

	return rowschema.Schema{Columns: columns, EstimatedRows: &count}, nil
}

func mapSQLiteType(sqlType string) rowschema.DataType {
	switch strings.ToUpper(sqlType) {
	case "INTEGER", "INT":
		return rowschema.TypeInteger
	case "REAL", "FLOAT", "DOUBLE", "NUMERIC", "DECIMAL":
		return rowschema.TypeDecimal
	case "TEXT", "VARCHAR":
		return rowschema.TypeString
	case "BOOLEAN", "BOOL":
		return rowschema.TypeBoolean
	case "DATE":
		return rowschema.TypeDate
	case "DATETIME", "TIMESTAMP":
		return rowschema.TypeDateTime
	default:
		return rowschema.TypeString
	}
}

func (s *Source) ReadBatch(ctx context.Context, batchSize int) ([]rowschema.Row, error) {
	if s.db == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	query := fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d OFFSET %d`, s.table, batchSize, s.offset)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, tetlerr.Wrap(tetlerr.DataTransfer, err, "reading batch from %q", s.table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, tetlerr.Wrap(tetlerr.DataTransfer, err, "reading columns of %q", s.table)
	}

	var result []rowschema.Row
	for rows.Next() {
		scanned := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, tetlerr.Wrap(tetlerr.DataTransfer, err, "scanning row from %q", s.table)
		}

		row := make(rowschema.Row, len(cols))
		for i, col := range cols {
			row[col] = fromSQLAny(scanned[i])
		}
		result = append(result, row)
	}

	s.offset += len(result)
	return result, nil
}

func fromSQLAny(v any) rowschema.Value {
	switch x := v.(type) {
	case nil:
		return rowschema.Null()
	case int64:
		return rowschema.Integer(x)
	case float64:
		return rowschema.Decimal(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		return rowschema.Boolean(x)
	case []byte:
		return rowschema.String(string(x))
	case string:
		return rowschema.String(x)
	default:
		return rowschema.String(fmt.Sprintf("%v", x))
	}
}

func (s *Source) EstimatedRowCount(ctx context.Context) (*int, error) {
	if s.db == nil {
		return nil, nil
	}
	var count int
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, s.table))
	if err := row.Scan(&count); err != nil {
		return nil, tetlerr.Wrap(tetlerr.DataTransfer, err, "counting rows in %q", s.table)
	}
	return &count, nil
}

func (s *Source) Reset(ctx context.Context) error {
	s.offset = 0
	return nil
}

func (s *Source) HasMore() bool {
	if s.totalRows == nil {
		return false
	}
	return s.offset < *s.totalRows
}

// Target writes rows into a table, creating it with CREATE TABLE IF NOT
// EXISTS so repeated runs append by default.
type Target struct {
	dbPath string
	table  string
	db     *sql.DB
}

// NewTarget builds a Target from a "path/to.db", "path/to.db#table",
// "sqlite:path" or "sqlite://path" descriptor. When no table fragment is
// given, the table defaults to "data".
func NewTarget(descriptor string) (*Target, error) {
	path, table, err := splitTableDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = "data"
	}
	return &Target{dbPath: path, table: table}, nil
}

var _ connectors.Target = (*Target)(nil)

func (t *Target) Connect(ctx context.Context) error {
	if dir := filepath.Dir(t.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return tetlerr.Wrap(tetlerr.Connection, err, "creating directory for %s", t.dbPath)
		}
	}

	db, err := sql.Open("sqlite3", t.dbPath)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Connection, err, "failed to connect to sqlite database %q", t.dbPath)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return tetlerr.Wrap(tetlerr.Connection, err, "failed to connect to sqlite database %q; check file path and permissions", t.dbPath)
	}
	t.db = db
	return nil
}

func (t *Target) Exists(ctx context.Context, tableName string) (bool, error) {
	if t.db == nil {
		if err := t.Connect(ctx); err != nil {
			return false, err
		}
	}
	var name string
	row := t.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, tableName)
	switch err := row.Scan(&name); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, tetlerr.Wrap(tetlerr.DataTransfer, err, "checking existence of %q", tableName)
	}
}

func (t *Target) Truncate(ctx context.Context, tableName string) error {
	if t.db == nil {
		if err := t.Connect(ctx); err != nil {
			return err
		}
	}
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"`, tableName))
	if err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "truncating %q", tableName)
	}
	return nil
}

func (t *Target) CreateTable(ctx context.Context, tableName string, schema rowschema.Schema) error {
	if t.db == nil {
		if err := t.Connect(ctx); err != nil {
			return err
		}
	}
	if tableName != "" {
		t.table = tableName
	}

	defs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		nullable := ""
		if !col.Nullable {
			nullable = " NOT NULL"
		}
		defs[i] = fmt.Sprintf(`"%s" %s%s`, col.Name, sqliteTypeFor(col.DataType), nullable)
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s)`, t.table, strings.Join(defs, ", "))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return tetlerr.Wrap(tetlerr.DataTransfer, err, "creating table %q", t.table)
	}
	return nil
}

func sqliteTypeFor(dt rowschema.DataType) string {
	switch dt {
	case rowschema.TypeInteger, rowschema.TypeBoolean:
		return "INTEGER"
	case rowschema.TypeDecimal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// maxVariablesPerChunk caps the number of bound variables in one
// multi-row INSERT, staying under SQLite's ~999-variable limit.
const maxVariablesPerChunk = 900

func (t *Target) WriteBatch(ctx context.Context, rows []rowschema.Row) (int, error) {
	if t.db == nil {
		return 0, tetlerr.Connectionf("sqlite target not connected: %s", t.dbPath)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	columns := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		columns = append(columns, k)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	placeholdersPerRow := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	maxRowsPerChunk := maxVariablesPerChunk / len(columns)
	if maxRowsPerChunk < 1 {
		maxRowsPerChunk = 1
	}

	total := 0
	for start := 0; start < len(rows); start += maxRowsPerChunk {
		end := start + maxRowsPerChunk
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		groups := strings.TrimSuffix(strings.Repeat(placeholdersPerRow+", ", len(chunk)), ", ")
		stmt := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES %s`, t.table, strings.Join(quoted, ", "), groups)

		args := make([]any, 0, len(chunk)*len(columns))
		for _, row := range chunk {
			for _, col := range columns {
				args = append(args, toSQLAny(row.Get(col)))
			}
		}

		res, err := t.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, tetlerr.Wrap(tetlerr.DataTransfer, err, "inserting into %q", t.table)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}

	return total, nil
}

func toSQLAny(v rowschema.Value) any {
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
		d, _ := v.ToDecimalString()
		return d
	case rowschema.KindBoolean:
		b, _ := v.ToBool()
		return b
	default:
		s, _ := v.ToStringForArrow()
		return s
	}
}

func (t *Target) Finalize(ctx context.Context) error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *Target) SupportsAppend() bool {
	return true
}
