package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_OrderAndDuplicates(t *testing.T) {
	r := NewRow([]string{"b", "a", "b"}, []any{"1", "2", "3"})
	assert.Equal(t, []string{"b", "a"}, r.Keys())
	assert.Equal(t, "1", r.Value("b"), "first duplicate header wins")

	r.Set("c", nil)
	r.Set("a", "x")
	assert.Equal(t, []string{"b", "a", "c"}, r.Keys())
	assert.Equal(t, "x", r.Value("a"))

	v, ok := r.Get("c")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRowFromStrings_PadsShortRecords(t *testing.T) {
	r := RowFromStrings([]string{"a", "b", "c"}, []string{"1"}).WithLine(4)
	assert.Equal(t, []string{"1", "", ""}, r.Strings())
	assert.Equal(t, 4, r.Line())
}

func TestRow_CloneIsIndependent(t *testing.T) {
	var r Row
	r.Set("a", "1")
	c := r.Clone()
	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "1", r.Value("a"))
	assert.Equal(t, 1, r.Len())
}

func TestRow_MarshalJSON(t *testing.T) {
	amount, ok := ToDecimal("12.50")
	require.True(t, ok)

	var r Row
	r.Set("z", int64(1))
	r.Set("a", amount)
	r.Set("m", nil)
	r.Set("b", true)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"12.50","m":null,"b":true}`, string(b))
}
