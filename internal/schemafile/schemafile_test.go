package schemafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyetl/internal/rowschema"
)

func strPtr(s string) *string { return &s }

func TestValidateRejectsUnknownType(t *testing.T) {
	f := &File{Columns: []Column{{Name: "a", Type: "wat"}}}
	assert.Error(t, f.Validate())
}

func TestValidateRejectsBadPattern(t *testing.T) {
	f := &File{Columns: []Column{{Name: "a", Type: "string", Pattern: strPtr("(")}}}
	assert.Error(t, f.Validate())
}

func TestToSchemaPreservesOrderAndNullability(t *testing.T) {
	f := &File{Columns: []Column{
		{Name: "id", Type: "integer", Nullable: false},
		{Name: "note", Type: "string", Nullable: true},
	}}
	schema := f.ToSchema()
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, "id", schema.Columns[0].Name)
	assert.Equal(t, rowschema.TypeInteger, schema.Columns[0].DataType)
	assert.True(t, schema.Columns[1].Nullable)
}

func TestValidateAndTransformRowFillsDefault(t *testing.T) {
	f := &File{Columns: []Column{
		{Name: "status", Type: "string", Nullable: false, Default: strPtr("pending")},
	}}
	row := rowschema.Row{}
	require.NoError(t, f.ValidateAndTransformRow(row))
	s, ok := row["status"].AsString()
	require.True(t, ok)
	assert.Equal(t, "pending", s)
}

func TestValidateAndTransformRowErrorsWithoutDefault(t *testing.T) {
	f := &File{Columns: []Column{{Name: "status", Type: "string", Nullable: false}}}
	row := rowschema.Row{}
	assert.Error(t, f.ValidateAndTransformRow(row))
}

func TestValidateAndTransformRowCoercesJSONString(t *testing.T) {
	f := &File{Columns: []Column{{Name: "payload", Type: "json", Nullable: true}}}
	row := rowschema.Row{"payload": rowschema.String(`{"a":1}`)}
	require.NoError(t, f.ValidateAndTransformRow(row))
	assert.Equal(t, rowschema.KindJSON, row["payload"].Kind())
}

func TestValidateAndTransformRowRejectsInvalidJSON(t *testing.T) {
	f := &File{Columns: []Column{{Name: "payload", Type: "json", Nullable: true}}}
	row := rowschema.Row{"payload": rowschema.String("not json")}
	assert.Error(t, f.ValidateAndTransformRow(row))
}

func TestValidateAndTransformRowRejectsTypeMismatch(t *testing.T) {
	f := &File{Columns: []Column{{Name: "age", Type: "integer", Nullable: false}}}
	row := rowschema.Row{"age": rowschema.String("old")}
	assert.Error(t, f.ValidateAndTransformRow(row))
}

func TestValidateAndTransformRowEnforcesPattern(t *testing.T) {
	f := &File{Columns: []Column{
		{Name: "code", Type: "string", Nullable: false, Pattern: strPtr(`^[A-Z]{3}$`)},
	}}
	bad := rowschema.Row{"code": rowschema.String("abc")}
	assert.Error(t, f.ValidateAndTransformRow(bad))

	good := rowschema.Row{"code": rowschema.String("ABC")}
	assert.NoError(t, f.ValidateAndTransformRow(good))
}
