package core

import (
	"time"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// FormatDates rewrites every date field of the given (accepted) rows to the
// canonical 2006-01-02 text. Other fields pass through unchanged. Applying
// it twice yields the same rows as applying it once.
func (p *Pipeline) FormatDates(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := r.Clone()
		for fi := range p.fields {
			f := &p.fields[fi]
			if f.def.Type != schema.FieldDate {
				continue
			}
			if v, ok := c.values[f.def.Name]; ok {
				c.values[f.def.Name] = f.formatDate(v)
			}
		}
		out[i] = c
	}
	return out
}

func (f *compiledField) formatDate(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(schema.CanonicalDateLayout)
	case string:
		if isCanonicalDate(x) {
			return x
		}
		if t, ok := ToDate(x, f.def.InputFormats); ok {
			return t.Format(schema.CanonicalDateLayout)
		}
	}
	return v
}

func isCanonicalDate(s string) bool {
	t, err := time.Parse(schema.CanonicalDateLayout, s)
	return err == nil && t.Format(schema.CanonicalDateLayout) == s
}
