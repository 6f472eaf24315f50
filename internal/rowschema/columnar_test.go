package rowschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowerRaiseRoundTrip(t *testing.T) {
	schema := Schema{Columns: []Column{
		{Name: "id", DataType: TypeInteger},
		{Name: "name", DataType: TypeString},
	}}
	rows := []Row{
		{"id": Integer(1), "name": String("Alice")},
		{"id": Integer(2), "name": String("Bob")},
	}

	cb := Lower(schema, rows)
	require.Len(t, cb.Values, 2)
	assert.Equal(t, []Value{Integer(1), Integer(2)}, cb.Values[0])
	assert.Equal(t, []bool{true, true}, cb.Valid[0])

	back := Raise(cb, nil)
	require.Len(t, back, 2)
	assert.True(t, back[0]["id"].Equal(Integer(1)))
	assert.True(t, back[0]["name"].Equal(String("Alice")))
}

func TestLowerMissingKeyIsNull(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "a"}, {Name: "b"}}}
	rows := []Row{{"a": Integer(1)}}

	cb := Lower(schema, rows)
	assert.True(t, cb.Values[1][0].IsNull())
	assert.False(t, cb.Valid[1][0])
}

func TestRaiseJSONColumnReparses(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "payload", DataType: TypeJSON}}}
	rows := []Row{{"payload": String(`{"a":1}`)}}
	cb := Lower(schema, rows)

	back := Raise(cb, map[string]bool{"payload": true})
	require.Len(t, back, 1)
	assert.Equal(t, KindJSON, back[0]["payload"].Kind())
}
