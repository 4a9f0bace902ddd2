package core

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// HeaderIndex maps normalised header text to its position in a key list.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a case-insensitive lookup from cleaned header text
// to position. The first occurrence of a duplicate header wins.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		key := schema.HeaderKey(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// Clean maps each raw row onto the template's fields and normalises every
// cell. The output has one row per input row, keyed by field name in
// definition order. Cells that cannot be coerced keep their trimmed text so
// the validator can report them.
func (p *Pipeline) Clean(rows []Row) []Row {
	casers := p.casers()
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = p.cleanRow(r, casers)
	}
	return out
}

// casers builds fresh case mappers per call since cases.Caser is not safe
// for concurrent use.
func (p *Pipeline) casers() []func(string) string {
	fns := make([]func(string) string, len(p.fields))
	for i, f := range p.fields {
		if f.def.Type != schema.FieldText {
			continue
		}
		var c cases.Caser
		switch f.def.Case {
		case schema.CaseUpper:
			c = cases.Upper(language.Und)
		case schema.CaseLower:
			c = cases.Lower(language.Und)
		case schema.CaseTitle:
			c = cases.Title(language.Und)
		default:
			continue
		}
		fns[i] = c.String
	}
	return fns
}

func (p *Pipeline) cleanRow(raw Row, casers []func(string) string) Row {
	keys := raw.keys
	idx := MakeHeaderIndex(keys)

	out := Row{
		keys:   make([]string, 0, len(p.fields)),
		values: make(map[string]any, len(p.fields)),
		line:   raw.line,
	}

	for i := range p.fields {
		f := &p.fields[i]

		var v any
		for _, hk := range f.headerKeys {
			if pos, ok := idx[hk]; ok {
				v = raw.values[keys[pos]]
				break
			}
		}

		out.Set(f.def.Name, p.cleanValue(f, v, casers[i]))
	}

	return out
}

func (p *Pipeline) cleanValue(f *compiledField, v any, caser func(string) string) any {
	if v == nil {
		return nil
	}
	if f.isNative(v) {
		return v
	}
	if n, ok := v.(NumericCell); ok && f.def.Type == schema.FieldDate {
		if t, ok := ExcelSerialDate(string(n)); ok {
			return t
		}
	}

	s, ok := v.(string)
	if !ok {
		s = displayValue(v)
	}

	s = CleanCell(s)
	if s == "" {
		return nil
	}
	if p.isNullToken(f, s) {
		return nil
	}

	switch f.def.Type {
	case schema.FieldText:
		if caser != nil {
			s = caser(s)
		}
		return s
	case schema.FieldInteger:
		if n, ok := ToInteger(s); ok {
			return n
		}
	case schema.FieldDecimal:
		if n, ok := ToDecimal(s); ok {
			return n
		}
	case schema.FieldBoolean:
		if b, ok := ToBool(s, f.truthy, f.falsy); ok {
			return b
		}
	}
	return s
}

func (p *Pipeline) isNullToken(f *compiledField, s string) bool {
	key := strings.ToLower(s)
	if _, ok := p.nullTokens[key]; ok {
		return true
	}
	if f.def.Type == schema.FieldText {
		return false
	}
	_, ok := p.typedNullTokens[key]
	return ok
}

// isNative reports whether v already has the Go type cleaning would produce.
func (f *compiledField) isNative(v any) bool {
	switch v.(type) {
	case int64:
		return f.def.Type == schema.FieldInteger
	case pgtype.Numeric:
		return f.def.Type == schema.FieldDecimal
	case bool:
		return f.def.Type == schema.FieldBoolean
	case time.Time:
		return f.def.Type == schema.FieldDate
	}
	return false
}

// coerce converts a non-null cleaned value to the field's typed form. Dates
// become time.Time at midnight UTC.
func (f *compiledField) coerce(v any) (any, bool) {
	switch f.def.Type {
	case schema.FieldText:
		if s, ok := v.(string); ok {
			return s, true
		}
		return displayValue(v), true

	case schema.FieldInteger:
		switch x := v.(type) {
		case int64:
			return x, true
		case string:
			return ToInteger(x)
		default:
			return ToInteger(displayValue(v))
		}

	case schema.FieldDecimal:
		switch x := v.(type) {
		case pgtype.Numeric:
			return x, x.Valid && x.Int != nil
		case int64:
			return pgtype.Numeric{Int: big.NewInt(x), Valid: true}, true
		case string:
			return ToDecimal(x)
		default:
			return ToDecimal(displayValue(v))
		}

	case schema.FieldBoolean:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			return ToBool(x, f.truthy, f.falsy)
		default:
			return ToBool(displayValue(v), f.truthy, f.falsy)
		}

	case schema.FieldDate:
		switch x := v.(type) {
		case time.Time:
			return dateOnly(x), true
		case string:
			return ToDate(x, f.def.InputFormats)
		default:
			return nil, false
		}
	}
	return nil, false
}

// displayValue renders a cell the way it appears in violation reports and
// text outputs.
func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case NumericCell:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case pgtype.Numeric:
		if !x.Valid {
			return ""
		}
		return DecimalString(x)
	case time.Time:
		return x.Format(schema.CanonicalDateLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
