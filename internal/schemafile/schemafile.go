// Package schemafile implements the optional YAML schema-override file:
// an explicit column list a transfer run validates and coerces every row
// against instead of trusting inference.
package schemafile

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tinyetl/internal/dateparser"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/tetlerr"
)

// Column describes one column's expected shape: its type, nullability,
// an optional validation regex (string columns only), and an optional
// default value used when the source omits or nulls a required column.
type Column struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable"`
	Pattern  *string `yaml:"pattern,omitempty"`
	Default  *string `yaml:"default,omitempty"`
}

// File is the parsed contents of a schema override file.
type File struct {
	Columns []Column `yaml:"columns"`
}

var validTypes = map[string]bool{
	"string": true, "integer": true, "decimal": true,
	"boolean": true, "date": true, "datetime": true, "json": true,
}

// Load reads and validates a schema file at path.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, tetlerr.Wrap(tetlerr.Configuration, err, "reading schema file %s", path)
	}

	var f File
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, tetlerr.Configurationf("invalid schema file: %v", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every column's declared type and, if present, regex
// pattern.
func (f *File) Validate() error {
	for _, col := range f.Columns {
		if !validTypes[strings.ToLower(col.Type)] {
			return tetlerr.Configurationf("invalid data type %q for column %q", col.Type, col.Name)
		}
		if col.Pattern != nil {
			if _, err := regexp.Compile(*col.Pattern); err != nil {
				return tetlerr.Configurationf("invalid regex pattern %q for column %q: %v", *col.Pattern, col.Name, err)
			}
		}
	}
	return nil
}

// ToSchema renders the column list as a rowschema.Schema, dropping the
// pattern/default metadata that only this package's validation needs.
func (f *File) ToSchema() rowschema.Schema {
	columns := make([]rowschema.Column, len(f.Columns))
	for i, col := range f.Columns {
		columns[i] = rowschema.Column{
			Name:     col.Name,
			DataType: dataTypeOf(col.Type),
			Nullable: col.Nullable,
		}
	}
	return rowschema.Schema{Columns: columns}
}

func dataTypeOf(name string) rowschema.DataType {
	switch strings.ToLower(name) {
	case "integer":
		return rowschema.TypeInteger
	case "decimal":
		return rowschema.TypeDecimal
	case "boolean":
		return rowschema.TypeBoolean
	case "date":
		return rowschema.TypeDate
	case "datetime":
		return rowschema.TypeDateTime
	case "json":
		return rowschema.TypeJSON
	default:
		return rowschema.TypeString
	}
}

// ValidateAndTransformRow mutates row in place: applying defaults for
// required columns that are missing or null, converting a string value
// into Json when the column is typed json, and validating every value's
// type and (for string columns) pattern.
func (f *File) ValidateAndTransformRow(row rowschema.Row) error {
	for _, col := range f.Columns {
		value, present := row[col.Name]

		if !col.Nullable && (!present || value.IsNull()) {
			if col.Default == nil {
				return tetlerr.DataValidationf("required column %q is missing or null", col.Name)
			}
			defaultValue, err := parseDefaultValue(*col.Default, col.Type)
			if err != nil {
				return err
			}
			row[col.Name] = defaultValue
			value = defaultValue
			present = true
		}

		if !present {
			continue
		}

		transformed := value
		if strings.ToLower(col.Type) == "json" {
			if s, ok := value.AsString(); ok && value.Kind() == rowschema.KindString {
				var parsed any
				if err := json.Unmarshal([]byte(s), &parsed); err != nil {
					return tetlerr.DataValidationf("column %q contains invalid JSON: %v", col.Name, err)
				}
				transformed = rowschema.JSON(parsed)
			}
		}
		row[col.Name] = transformed

		if err := validateColumnValue(transformed, col); err != nil {
			return err
		}
	}
	return nil
}

func validateColumnValue(value rowschema.Value, col Column) error {
	if value.IsNull() && col.Nullable {
		return nil
	}

	expected := dataTypeOf(col.Type)
	actual := value.DataType()
	// A Value never distinguishes Date from DateTime at runtime (both are
	// KindDate); treat the two schema types as the same actual shape.
	if actual == rowschema.TypeDate && expected == rowschema.TypeDateTime {
		actual = rowschema.TypeDateTime
	}
	if actual != expected && actual != rowschema.TypeNull {
		return tetlerr.DataValidationf("column %q expected type %s, got %s", col.Name, expected, actual)
	}

	if col.Pattern != nil {
		if s, ok := value.AsString(); ok && value.Kind() == rowschema.KindString {
			re := regexp.MustCompile(*col.Pattern)
			if !re.MatchString(s) {
				return tetlerr.DataValidationf("column %q value %q does not match pattern %q", col.Name, s, *col.Pattern)
			}
		}
	}

	return nil
}

func parseDefaultValue(defaultStr, dataType string) (rowschema.Value, error) {
	switch strings.ToLower(dataType) {
	case "string":
		return rowschema.String(defaultStr), nil
	case "integer":
		i, err := strconv.ParseInt(defaultStr, 10, 64)
		if err != nil {
			return rowschema.Value{}, tetlerr.Configurationf("invalid default integer value: %q", defaultStr)
		}
		return rowschema.Integer(i), nil
	case "decimal":
		if _, err := strconv.ParseFloat(defaultStr, 64); err != nil {
			return rowschema.Value{}, tetlerr.Configurationf("invalid default decimal value: %q", defaultStr)
		}
		return rowschema.Decimal(defaultStr), nil
	case "boolean":
		b, err := strconv.ParseBool(defaultStr)
		if err != nil {
			return rowschema.Value{}, tetlerr.Configurationf("invalid default boolean value: %q", defaultStr)
		}
		return rowschema.Boolean(b), nil
	case "date", "datetime":
		v, ok := dateparser.TryParse(defaultStr)
		if !ok {
			return rowschema.Value{}, tetlerr.Configurationf("invalid default date value: %q", defaultStr)
		}
		return v, nil
	case "json":
		var parsed any
		if err := json.Unmarshal([]byte(defaultStr), &parsed); err != nil {
			return rowschema.Value{}, tetlerr.Configurationf("invalid default json value: %q", defaultStr)
		}
		return rowschema.JSON(parsed), nil
	default:
		return rowschema.Value{}, fmt.Errorf("unreachable: data type already validated: %s", dataType)
	}
}
