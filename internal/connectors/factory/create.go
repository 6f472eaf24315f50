package factory

import (
	"context"
	"strings"

	"tinyetl/internal/connectors"
	"tinyetl/internal/connectors/avro"
	"tinyetl/internal/connectors/csv"
	"tinyetl/internal/connectors/jsonfile"
	"tinyetl/internal/connectors/mssql"
	"tinyetl/internal/connectors/mysql"
	"tinyetl/internal/connectors/parquet"
	"tinyetl/internal/connectors/postgres"
	"tinyetl/internal/connectors/sqlite"
	"tinyetl/internal/protocols/file"
	"tinyetl/internal/protocols/http"
	"tinyetl/internal/protocols/sshfetch"
	"tinyetl/internal/tetlerr"
)

// protocolFetchers resolve a network-addressed connection string to a
// local file path before connector dispatch. Only "data at rest on a
// remote host" protocols go through here; database network protocols
// (postgres://, mysql://, ...) are handled directly by their connector.
var protocolFetchers = map[string]func(context.Context, string) (string, func(), error){
	"file": func(_ context.Context, raw string) (string, func(), error) {
		path, err := file.Resolve(raw)
		return path, func() {}, err
	},
	"http":  http.Fetch,
	"https": http.Fetch,
	"ssh":   sshfetch.Fetch,
}

// CreateSource builds the Source implementation selected by
// connectionString, per §4.4's factory dispatch: a network database
// protocol builds a live connector directly; a remote file protocol
// (file://, http(s)://, ssh://) is first fetched to a local path and then
// dispatched by its extension.
func CreateSource(ctx context.Context, connectionString string) (connectors.Source, func(), error) {
	d := ParseDescriptor(connectionString)
	noop := func() {}

	if fetch, ok := protocolFetchers[strings.ToLower(d.Protocol)]; ok {
		localPath, cleanup, err := fetch(ctx, connectionString)
		if err != nil {
			return nil, noop, err
		}
		if d.Fragment != "" {
			localPath = localPath + "#" + d.Fragment
		}
		src, err := createFileOrDBSource(localPath)
		return src, cleanup, err
	}

	switch strings.ToLower(d.Protocol) {
	case "sqlite":
		src, err := sqlite.New(connectionString)
		return src, noop, err
	case "postgres", "postgresql":
		src, err := postgres.New(connectionString)
		return src, noop, err
	case "mysql":
		return nil, noop, tetlerr.Configurationf("mysql source connector is not implemented; MySQL is supported as a target only")
	case "mssql", "sqlserver":
		src, err := mssql.New(connectionString)
		return src, noop, err
	}

	src, err := createFileOrDBSource(connectionString)
	return src, noop, err
}

func createFileOrDBSource(path string) (connectors.Source, error) {
	d := ParseDescriptor(path)
	dialect, err := Dialect(d)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case "csv":
		return csv.New(d.Path), nil
	case "jsonfile":
		return jsonfile.New(d.Path), nil
	case "parquet":
		return parquet.New(d.Path), nil
	case "avro":
		return avro.New(d.Path), nil
	case "sqlite":
		return sqlite.New(path)
	default:
		return nil, tetlerr.Configurationf("no source connector registered for dialect %q", dialect)
	}
}

// CreateTarget builds the Target implementation selected by
// connectionString.
func CreateTarget(ctx context.Context, connectionString string) (connectors.Target, error) {
	d := ParseDescriptor(connectionString)

	switch strings.ToLower(d.Protocol) {
	case "sqlite":
		return sqlite.NewTarget(connectionString)
	case "postgres", "postgresql":
		return postgres.NewTarget(connectionString)
	case "mysql":
		return mysql.NewTarget(connectionString)
	case "mssql", "sqlserver":
		return mssql.NewTarget(connectionString)
	}

	dialect, err := Dialect(d)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case "csv":
		return csv.NewTarget(d.Path), nil
	case "jsonfile":
		return jsonfile.NewTarget(d.Path), nil
	case "parquet":
		return parquet.NewTarget(d.Path), nil
	case "avro":
		return avro.NewTarget(d.Path), nil
	case "sqlite":
		return sqlite.NewTarget(connectionString)
	default:
		return nil, tetlerr.Configurationf("no target connector registered for dialect %q", dialect)
	}
}
