package rowschema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEquality(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(Integer(0)))
	assert.True(t, Integer(5).Equal(Integer(5)))
	assert.False(t, Integer(5).Equal(Integer(6)))
	assert.True(t, String("a").Equal(String("a")))
}

func TestValueDataType(t *testing.T) {
	assert.Equal(t, TypeNull, Null().DataType())
	assert.Equal(t, TypeBoolean, Boolean(true).DataType())
	assert.Equal(t, TypeInteger, Integer(1).DataType())
	assert.Equal(t, TypeDecimal, Decimal("1.5").DataType())
	assert.Equal(t, TypeString, String("x").DataType())
	assert.Equal(t, TypeJSON, JSON(map[string]any{"a": 1}).DataType())

	d := Date(time.Date(2023, 12, 25, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, TypeDate, d.DataType())
}

func TestToStringForArrow(t *testing.T) {
	s, ok := Null().ToStringForArrow()
	assert.False(t, ok)
	assert.Equal(t, "", s)

	s, ok = Integer(42).ToStringForArrow()
	require.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = Boolean(true).ToStringForArrow()
	require.True(t, ok)
	assert.Equal(t, "true", s)
}

func TestConversions(t *testing.T) {
	i, ok := Integer(10).ToI64()
	require.True(t, ok)
	assert.Equal(t, int64(10), i)

	_, ok = String("x").ToI64()
	assert.False(t, ok)

	f, ok := Decimal("1.5").ToF64()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	b, ok := Boolean(false).ToBool()
	require.True(t, ok)
	assert.False(t, b)
}

func TestDecimalPreservesExactPrecision(t *testing.T) {
	text := "12345678901234567890.123456789012345678"
	d, ok := Decimal(text).ToDecimalString()
	require.True(t, ok)
	assert.Equal(t, text, d)

	assert.True(t, Decimal("10.50").Equal(Decimal("10.50")))
	assert.False(t, Decimal("10.50").Equal(Decimal("10.5")))

	n, ok := Decimal("99999999999999999999.99").ToJSON()
	require.True(t, ok)
	assert.Equal(t, json.Number("99999999999999999999.99"), n)
}

func TestRowGetMissingIsNull(t *testing.T) {
	r := Row{"a": Integer(1)}
	assert.True(t, r.Get("missing").IsNull())
	assert.Equal(t, int64(1), mustI64(t, r.Get("a")))
}

func mustI64(t *testing.T, v Value) int64 {
	t.Helper()
	i, ok := v.ToI64()
	require.True(t, ok)
	return i
}
