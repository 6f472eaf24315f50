package factory

import (
	"net/url"
	"strings"

	"tinyetl/internal/tetlerr"
)

// Descriptor is a parsed connection string: either a bare filesystem path
// (Protocol == "") or a "scheme://..." URI.
type Descriptor struct {
	Raw      string
	Protocol string
	Path     string
	Fragment string
	Query    url.Values
}

// fileExtensionDialect maps a lowercased file extension to the connector
// family that reads/writes it.
var fileExtensionDialect = map[string]string{
	".csv":     "csv",
	".json":    "jsonfile",
	".parquet": "parquet",
	".avro":    "avro",
	".db":      "sqlite",
	".sqlite":  "sqlite",
	".sqlite3": "sqlite",
}

// protocolDialect maps a connection string's scheme to the connector family
// that handles it.
var protocolDialect = map[string]string{
	"sqlite":     "sqlite",
	"postgres":   "postgres",
	"postgresql": "postgres",
	"mysql":      "mysql",
	"mssql":      "mssql",
	"sqlserver":  "mssql",
}

// ParseDescriptor splits a connection string into its protocol and path
// components. A "table.db#orders" style fragment selects a table within a
// file-based database; "scheme://host/..." selects a network protocol.
func ParseDescriptor(raw string) Descriptor {
	d := Descriptor{Raw: raw}

	if idx := strings.Index(raw, "#"); idx >= 0 {
		d.Fragment = raw[idx+1:]
		raw = raw[:idx]
	}

	if idx := strings.Index(raw, "://"); idx >= 0 {
		d.Protocol = raw[:idx]
		d.Path = raw
		if u, err := url.Parse(raw); err == nil {
			d.Query = u.Query()
		}
		return d
	}

	d.Path = raw
	return d
}

// Dialect resolves the connector family name for a descriptor, consulting
// the protocol table first and falling back to the file extension.
func Dialect(d Descriptor) (string, error) {
	if d.Protocol != "" {
		if dialect, ok := protocolDialect[strings.ToLower(d.Protocol)]; ok {
			return dialect, nil
		}
		return "", tetlerr.Configurationf("unsupported connection protocol %q in %q", d.Protocol, d.Raw)
	}

	ext := extensionOf(d.Path)
	if dialect, ok := fileExtensionDialect[ext]; ok {
		return dialect, nil
	}

	return "", tetlerr.Configurationf("cannot determine connector for %q: unrecognised file extension %q", d.Raw, ext)
}

func extensionOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

// TableName extracts the table/object name a connector should address,
// per spec §4.6: an explicit "#fragment" wins, otherwise the file stem,
// otherwise the literal "data".
func TableName(d Descriptor) string {
	if d.Fragment != "" {
		return d.Fragment
	}

	base := d.Path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		return "data"
	}
	return base
}
