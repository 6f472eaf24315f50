// Package transform implements the row transformer: a user-supplied Lua
// function run over every row of a batch through yuin/gopher-lua, the
// embedded-scripting library the retrieval pack uses in place of the
// original's mlua.
package transform

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"tinyetl/internal/rowschema"
	"tinyetl/internal/tetlerr"
)

// Config selects how a Transformer is built. Exactly one of File, Inline,
// or Script should be non-empty; all empty means no transformation.
type Config struct {
	File   string
	Inline string
	Script string
}

// Enabled reports whether config names any transform source.
func (c Config) Enabled() bool {
	return c.File != "" || c.Inline != "" || c.Script != ""
}

// state tracks what a Transformer has learned about its own output shape
// as rows pass through it.
type state int

const (
	stateIdle state = iota
	stateSchemaFixed
)

// Transformer runs a Lua "transform(row) -> table|nil" function over
// batches of rows. The function may drop a row by returning nil. The
// schema of its own output is fixed from the first row it successfully
// produces: every later row is conformed to that column set, with
// missing columns filled as Null and extra columns dropped.
type Transformer struct {
	vm             *lua.LState
	enabled        bool
	state          state
	inferredSchema rowschema.Schema
}

// New builds a Transformer from config. An empty config returns a
// disabled Transformer whose TransformBatch is the identity function.
func New(config Config) (*Transformer, error) {
	t := &Transformer{vm: lua.NewState()}

	switch {
	case config.File != "":
		if err := t.loadFile(config.File); err != nil {
			return nil, err
		}
	case config.Inline != "":
		if err := t.loadInline(config.Inline); err != nil {
			return nil, err
		}
	case config.Script != "":
		if err := t.loadScript(config.Script); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Close releases the Lua VM. Safe to call on a disabled Transformer.
func (t *Transformer) Close() {
	if t.vm != nil {
		t.vm.Close()
	}
}

func (t *Transformer) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return tetlerr.Configurationf("transform file not found: %s", path)
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return tetlerr.Wrap(tetlerr.Configuration, err, "reading transform file %s", path)
	}
	return t.loadCode(string(code), fmt.Sprintf("failed to execute Lua file %s", path))
}

func (t *Transformer) loadInline(expressions string) error {
	code, err := buildAssignmentFunction(expressions, ";", false)
	if err != nil {
		return err
	}
	return t.loadCode(code, "failed to execute inline expressions")
}

func (t *Transformer) loadScript(script string) error {
	code, err := buildAssignmentFunction(script, "\n", true)
	if err != nil {
		return err
	}
	return t.loadCode(code, "failed to execute script")
}

func (t *Transformer) loadCode(code, errPrefix string) error {
	if err := t.vm.DoString(code); err != nil {
		return tetlerr.Configurationf("%s: %v", errPrefix, err)
	}
	fn := t.vm.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		return tetlerr.Configurationf("transform source must define a 'transform' function")
	}
	t.enabled = true
	return nil
}

// buildAssignmentFunction generates a Lua "transform(row)" function body
// from "name=expression" assignments, one per separator-delimited chunk.
// asLocal additionally binds each assignment as a local variable first
// (the multi-line Script form, so later lines can reference earlier
// ones), where the Inline form assigns directly into the result table.
func buildAssignmentFunction(source, sep string, asLocal bool) (string, error) {
	var assignments []string
	for _, chunk := range strings.Split(source, sep) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || strings.HasPrefix(chunk, "--") {
			continue
		}
		assignments = append(assignments, chunk)
	}
	if len(assignments) == 0 {
		return "", tetlerr.Configurationf("no valid expressions provided")
	}

	var sb strings.Builder
	sb.WriteString("function transform(row)\n")
	sb.WriteString("  local result = {}\n")
	sb.WriteString("  for k, v in pairs(row) do\n")
	sb.WriteString("    result[k] = v\n")
	sb.WriteString("  end\n")

	for _, assignment := range assignments {
		eq := strings.Index(assignment, "=")
		if eq < 0 {
			return "", tetlerr.Configurationf("invalid expression format (missing '='): %s", assignment)
		}
		name := strings.TrimSpace(assignment[:eq])
		expr := strings.TrimSpace(assignment[eq+1:])
		if !isValidIdentifier(name) {
			return "", tetlerr.Configurationf("invalid column name: %s", name)
		}

		if asLocal {
			fmt.Fprintf(&sb, "  local %s = %s\n", name, expr)
			fmt.Fprintf(&sb, "  result[%q] = %s\n", name, name)
		} else {
			fmt.Fprintf(&sb, "  result[%q] = %s\n", name, expr)
		}
	}

	sb.WriteString("  return result\n")
	sb.WriteString("end\n")
	return sb.String(), nil
}

func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// Enabled reports whether this Transformer has a loaded transform
// function.
func (t *Transformer) Enabled() bool {
	return t.enabled
}

// TransformBatch runs every row through the loaded transform function,
// dropping rows for which it returns nil, and conforms every row after
// the first successfully transformed one to that row's column set.
func (t *Transformer) TransformBatch(rows []rowschema.Row) ([]rowschema.Row, error) {
	if !t.enabled {
		return rows, nil
	}

	out := make([]rowschema.Row, 0, len(rows))
	for _, row := range rows {
		transformed, dropped, err := t.transformRow(row)
		if err != nil {
			return nil, err
		}
		if dropped {
			continue
		}

		if t.state == stateIdle {
			t.inferSchemaFromFirstRow(transformed)
			t.state = stateSchemaFixed
		}
		out = append(out, t.conformToSchema(transformed))
	}

	return out, nil
}

func (t *Transformer) transformRow(row rowschema.Row) (result rowschema.Row, dropped bool, err error) {
	fn := t.vm.GetGlobal("transform")
	luaRow := rowToLuaTable(t.vm, row)

	if err := t.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, luaRow); err != nil {
		return nil, false, tetlerr.Transformf("Lua transform function failed: %v", err)
	}

	ret := t.vm.Get(-1)
	t.vm.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, true, nil
	case *lua.LTable:
		row := luaTableToRow(v)
		if len(row) == 0 {
			return nil, true, nil
		}
		return row, false, nil
	default:
		return nil, false, tetlerr.Transformf("transform function must return a table or nil")
	}
}

func rowToLuaTable(vm *lua.LState, row rowschema.Row) *lua.LTable {
	table := vm.NewTable()
	for key, value := range row {
		table.RawSetString(key, valueToLua(value))
	}
	return table
}

func valueToLua(v rowschema.Value) lua.LValue {
	switch v.Kind() {
	case rowschema.KindNull:
		return lua.LNil
	case rowschema.KindInteger:
		i, _ := v.ToI64()
		return lua.LNumber(i)
	case rowschema.KindDecimal:
		f, _ := v.ToF64()
		return lua.LNumber(f)
	case rowschema.KindBoolean:
		b, _ := v.ToBool()
		return lua.LBool(b)
	default:
		s, _ := v.ToStringForArrow()
		return lua.LString(s)
	}
}

func luaTableToRow(table *lua.LTable) rowschema.Row {
	row := make(rowschema.Row)
	table.ForEach(func(key, value lua.LValue) {
		row[key.String()] = luaToValue(value)
	})
	return row
}

func luaToValue(v lua.LValue) rowschema.Value {
	switch x := v.(type) {
	case lua.LString:
		return rowschema.String(string(x))
	case lua.LNumber:
		return rowschema.Decimal(strconv.FormatFloat(float64(x), 'f', -1, 64))
	case lua.LBool:
		return rowschema.Boolean(bool(x))
	case *lua.LNilType:
		return rowschema.Null()
	default:
		return rowschema.String(v.String())
	}
}

func (t *Transformer) inferSchemaFromFirstRow(row rowschema.Row) {
	columns := make([]rowschema.Column, 0, len(row))
	for name, value := range row {
		columns = append(columns, rowschema.Column{
			Name:     name,
			DataType: value.DataType(),
			Nullable: value.IsNull(),
		})
	}
	t.inferredSchema = rowschema.Schema{Columns: columns}
}

// conformToSchema drops columns the first row didn't have and fills in
// any the schema expects but this row omitted, as Null.
func (t *Transformer) conformToSchema(row rowschema.Row) rowschema.Row {
	conformed := make(rowschema.Row, len(t.inferredSchema.Columns))
	for _, col := range t.inferredSchema.Columns {
		conformed[col.Name] = row.Get(col.Name)
	}
	return conformed
}

// InferredSchema reports the schema learned from the first transformed
// row, if any row has been transformed yet.
func (t *Transformer) InferredSchema() (rowschema.Schema, bool) {
	if t.state != stateSchemaFixed {
		return rowschema.Schema{}, false
	}
	return t.inferredSchema, true
}

// MergeWithBaseSchema returns the transformer's own inferred schema when
// it has one, otherwise baseSchema unchanged.
func (t *Transformer) MergeWithBaseSchema(baseSchema rowschema.Schema) rowschema.Schema {
	if schema, ok := t.InferredSchema(); ok {
		return schema
	}
	return baseSchema
}
