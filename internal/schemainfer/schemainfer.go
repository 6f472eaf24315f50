// Package schemainfer derives a Schema from a bounded sample of rows.
// Nullability is always true on an inferred schema: a finite sample cannot
// witness the absence of nulls in the unseen tail of a source.
package schemainfer

import "tinyetl/internal/rowschema"

// Infer derives a Schema from rows, a finite sample bounded by the caller.
// Per column name observed anywhere in the sample: collect the DataTypes of
// that column's values (a row missing the column counts as Null), drop
// Nulls, and the column's type is the single remaining DataType, or String
// if none remain or the remaining types disagree. Columns first seen in an
// earlier row come before those first seen in a later row, but columns
// first seen in the same row follow Go's map iteration order, which is not
// deterministic; callers whose source has an intrinsic column order (CSV
// headers, DESCRIBE output) should reorder the result themselves.
func Infer(rows []rowschema.Row) rowschema.Schema {
	var order []string
	seen := map[string]bool{}
	types := map[string]map[rowschema.DataType]bool{}

	for _, row := range rows {
		for name, v := range row {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
				types[name] = map[rowschema.DataType]bool{}
			}
			if !v.IsNull() {
				types[name][v.DataType()] = true
			}
		}
	}

	columns := make([]rowschema.Column, 0, len(order))
	for _, name := range order {
		columns = append(columns, rowschema.Column{
			Name:     name,
			DataType: resolveType(types[name]),
			Nullable: true,
		})
	}

	n := len(rows)
	return rowschema.Schema{Columns: columns, EstimatedRows: &n}
}

func resolveType(observed map[rowschema.DataType]bool) rowschema.DataType {
	if len(observed) == 0 {
		return rowschema.TypeString
	}
	if len(observed) == 1 {
		for t := range observed {
			return t
		}
	}
	return rowschema.TypeString
}
