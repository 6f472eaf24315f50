package rowschema

import "encoding/json"

// JSONTypeTag is the columnar field metadata key that marks a column as
// holding serialised JSON rather than plain text, so a reader can
// reconstruct Json values instead of treating the column as String. Lower
// and Raise below are the only users of this tag: the Parquet and Avro
// connectors do not call them and write Json columns as plain strings
// without it.
const JSONTypeTag = "tinyetl:type"

// JSONTypeTagValue is the metadata value paired with JSONTypeTag.
const JSONTypeTagValue = "json"

// ColumnBatch is the per-column array representation of a batch of rows:
// one Values slice per schema column, in schema order, plus a parallel
// Valid bitmap (Valid[i] is false wherever Values[i] is Null).
type ColumnBatch struct {
	Schema Schema
	Values [][]Value
	Valid  [][]bool
}

// Lower converts a sequence of rows into column-major arrays matching
// schema's column order. Missing keys in a row become Null per the Row
// contract.
func Lower(schema Schema, rows []Row) ColumnBatch {
	cb := ColumnBatch{
		Schema: schema,
		Values: make([][]Value, len(schema.Columns)),
		Valid:  make([][]bool, len(schema.Columns)),
	}
	for i, col := range schema.Columns {
		values := make([]Value, len(rows))
		valid := make([]bool, len(rows))
		for j, row := range rows {
			v := row.Get(col.Name)
			values[j] = v
			valid[j] = !v.IsNull()
		}
		cb.Values[i] = values
		cb.Valid[i] = valid
	}
	return cb
}

// Raise reconstructs row-major Rows from a ColumnBatch, the inverse of
// Lower. A column tagged with JSONTypeTag=JSONTypeTagValue whose stored
// values are plain strings is reparsed into Json values, matching the
// on-disk reconstruction contract of §4.1.
func Raise(cb ColumnBatch, jsonColumns map[string]bool) []Row {
	if len(cb.Values) == 0 {
		return nil
	}
	n := len(cb.Values[0])
	rows := make([]Row, n)
	for j := 0; j < n; j++ {
		row := make(Row, len(cb.Schema.Columns))
		for i, col := range cb.Schema.Columns {
			v := cb.Values[i][j]
			if jsonColumns[col.Name] {
				if s, ok := v.AsString(); ok {
					v = parseJSONOrString(s)
				}
			}
			row[col.Name] = v
		}
		rows[j] = row
	}
	return rows
}

func parseJSONOrString(s string) Value {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return String(s)
	}
	return JSON(decoded)
}
