package core

import (
	"bytes"
	"encoding/json"
)

// Row is an ordered mapping of column name to cell value. Raw rows are keyed
// by source header text; cleaned rows by field name in definition order.
//
// The zero value is an empty row ready to use.
type Row struct {
	keys   []string
	values map[string]any
	line   int
}

// NumericCell is a raw cell the source stored as a number rather than text,
// such as a numeric XLSX cell. Date fields read it as an Excel serial date;
// every other field sees its text.
type NumericCell string

// NewRow builds a row from parallel key and value slices. Later duplicates of
// a key are ignored so the first header with a given name wins.
func NewRow(keys []string, values []any) Row {
	r := Row{
		keys:   make([]string, 0, len(keys)),
		values: make(map[string]any, len(keys)),
	}
	for i, k := range keys {
		if _, dup := r.values[k]; dup {
			continue
		}
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.keys = append(r.keys, k)
		r.values[k] = v
	}
	return r
}

// RowFromStrings builds a raw row from a header row and one record. Missing
// trailing cells become empty strings.
func RowFromStrings(headers, record []string) Row {
	values := make([]any, len(headers))
	for i := range headers {
		if i < len(record) {
			values[i] = record[i]
		} else {
			values[i] = ""
		}
	}
	return NewRow(headers, values)
}

// Set stores v under key, appending the key if it is new.
func (r *Row) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key and whether the key exists.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value stored under key, or nil.
func (r Row) Value(key string) any {
	return r.values[key]
}

// Text returns the value under key rendered as cell text; missing keys and
// NULL render as the empty string.
func (r Row) Text(key string) string {
	return displayValue(r.values[key])
}

// Keys returns the keys in insertion order.
func (r Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of cells.
func (r Row) Len() int {
	return len(r.keys)
}

// Line is the 1-based source line of the row, or 0 when unknown.
func (r Row) Line() int {
	return r.line
}

// WithLine returns a copy of the row tagged with its source line.
func (r Row) WithLine(line int) Row {
	c := r.Clone()
	c.line = line
	return c
}

// Clone returns a copy that shares no state with r.
func (r Row) Clone() Row {
	c := Row{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]any, len(r.values)),
		line:   r.line,
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Strings renders every cell with the same text form used for violation
// values: NULL is "", decimals use '.', booleans are true/false and dates
// are 2006-01-02.
func (r Row) Strings() []string {
	out := make([]string, len(r.keys))
	for i, k := range r.keys {
		out[i] = displayValue(r.values[k])
	}
	return out
}

// MarshalJSON encodes the row as a JSON object preserving key order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(jsonValue(r.values[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue keeps decimals exact by emitting them as strings.
func jsonValue(v any) any {
	switch v.(type) {
	case nil, string, bool, int64:
		return v
	default:
		return displayValue(v)
	}
}
