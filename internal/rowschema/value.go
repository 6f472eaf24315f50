// Package rowschema defines the Value/Schema/Row model shared by every source,
// target, and transform in the pipeline: a small tagged union of scalar
// values, the column/schema description derived from or imposed on them,
// and the columnar lowering used by file and database bulk-load paths.
package rowschema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DataType is the closed enumeration of column types the engine understands.
// Date denotes date-only semantics at UTC midnight; DateTime denotes an
// instant. Both are represented at runtime by a Value of kind Date, which
// always carries a fully-specified instant.
type DataType string

const (
	TypeString   DataType = "string"
	TypeInteger  DataType = "integer"
	TypeDecimal  DataType = "decimal"
	TypeBoolean  DataType = "boolean"
	TypeDate     DataType = "date"
	TypeDateTime DataType = "datetime"
	TypeJSON     DataType = "json"
	TypeNull     DataType = "null"
)

// Kind is the tag of a Value's tagged union.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindDecimal
	KindString
	KindDate
	KindJSON
)

// Value is a tagged union holding exactly one of the variants named by Kind.
// Equality is structural: Null equals only Null.
//
// Decimal is carried as its exact decimal text, not a float64: a NUMERIC
// column read from one database and written to another must keep every
// digit, and a bare float64 field cannot do that (§9, "Decimal vs
// floating point"). Precision is only widened to float64 at the edge of
// a connector whose storage is itself double-precision-only (Parquet's
// DoubleType leaf, Avro's "double" union member, a Lua number) — never
// merely by passing a value through the engine.
type Value struct {
	kind    Kind
	boolean bool
	integer int64
	decimal string
	str     string
	date    time.Time
	json    any
}

func Null() Value            { return Value{kind: KindNull} }
func Boolean(b bool) Value   { return Value{kind: KindBoolean, boolean: b} }
func Integer(i int64) Value  { return Value{kind: KindInteger, integer: i} }

// Decimal builds a Decimal Value from its exact textual representation
// (e.g. "123.4500"). Callers holding a float64 already widened from some
// double-precision source should format it with strconv.FormatFloat
// rather than fmt.Sprintf, so no spurious digits are introduced.
func Decimal(text string) Value { return Value{kind: KindDecimal, decimal: text} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Date(t time.Time) Value    { return Value{kind: KindDate, date: t.UTC()} }
func JSON(v any) Value          { return Value{kind: KindJSON, json: v} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// DataType reports the DataType this Value's variant corresponds to.
func (v Value) DataType() DataType {
	switch v.kind {
	case KindBoolean:
		return TypeBoolean
	case KindInteger:
		return TypeInteger
	case KindDecimal:
		return TypeDecimal
	case KindString:
		return TypeString
	case KindDate:
		return TypeDate
	case KindJSON:
		return TypeJSON
	default:
		return TypeNull
	}
}

// Equal implements structural equality; Null equals only Null.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBoolean:
		return v.boolean == other.boolean
	case KindInteger:
		return v.integer == other.integer
	case KindDecimal:
		return v.decimal == other.decimal
	case KindString:
		return v.str == other.str
	case KindDate:
		return v.date.Equal(other.date)
	case KindJSON:
		a, _ := json.Marshal(v.json)
		b, _ := json.Marshal(other.json)
		return string(a) == string(b)
	}
	return false
}

// ArrowType returns the columnar type connectors should allocate for this
// Value's DataType, per §4.1's arrow_type() contract.
func (v Value) ArrowType() DataType { return v.DataType() }

// ToStringForArrow renders the value the way a delimited-text or columnar
// writer should; ok is false for Null, matching the "absent" contract.
func (v Value) ToStringForArrow() (s string, ok bool) {
	switch v.kind {
	case KindNull:
		return "", false
	case KindBoolean:
		if v.boolean {
			return "true", true
		}
		return "false", true
	case KindInteger:
		return fmt.Sprintf("%d", v.integer), true
	case KindDecimal:
		return v.decimal, true
	case KindString:
		return v.str, true
	case KindDate:
		return v.date.Format(time.RFC3339Nano), true
	case KindJSON:
		b, err := json.Marshal(v.json)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	return "", false
}

func (v Value) ToI64() (int64, bool) {
	switch v.kind {
	case KindInteger:
		return v.integer, true
	case KindDecimal:
		f, err := strconv.ParseFloat(v.decimal, 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

// ToF64 widens a Decimal to float64. Precision may be lost here, and in
// ToI64's Decimal branch, which also goes through float64 and truncates
// toward zero; callers writing to a storage format with its own exact
// decimal representation should prefer ToDecimalString instead.
func (v Value) ToF64() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.integer), true
	case KindDecimal:
		f, err := strconv.ParseFloat(v.decimal, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToDecimalString returns a Decimal value's exact textual representation,
// undisturbed by any float64 round trip.
func (v Value) ToDecimalString() (string, bool) {
	if v.kind != KindDecimal {
		return "", false
	}
	return v.decimal, true
}

func (v Value) ToBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.boolean, true
}

func (v Value) ToTimestampNanos() (int64, bool) {
	if v.kind != KindDate {
		return 0, false
	}
	return v.date.UnixNano(), true
}

// ToJSON returns the value as an arbitrary JSON-ish Go value (the decoded
// form for Json values, or the scalar itself for everything else).
func (v Value) ToJSON() (any, bool) {
	switch v.kind {
	case KindNull:
		return nil, false
	case KindJSON:
		return v.json, true
	case KindBoolean:
		return v.boolean, true
	case KindInteger:
		return v.integer, true
	case KindDecimal:
		return json.Number(v.decimal), true
	case KindString:
		return v.str, true
	case KindDate:
		return v.date.Format(time.RFC3339Nano), true
	}
	return nil, false
}

// AsTime returns the underlying instant for a Date value.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// AsString returns the underlying string for a String value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}
