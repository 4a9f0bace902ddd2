package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

var bareIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedWords are identifiers that must be quoted even when they are
// otherwise plain.
var reservedWords = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "between": true,
	"by": true, "case": true, "check": true, "column": true, "constraint": true,
	"create": true, "cross": true, "current_date": true, "current_time": true,
	"default": true, "delete": true, "desc": true, "distinct": true, "drop": true,
	"else": true, "end": true, "except": true, "exists": true, "false": true,
	"for": true, "foreign": true, "from": true, "full": true, "group": true,
	"having": true, "in": true, "index": true, "inner": true, "insert": true,
	"intersect": true, "into": true, "is": true, "join": true, "key": true,
	"left": true, "like": true, "limit": true, "not": true, "null": true,
	"offset": true, "on": true, "or": true, "order": true, "outer": true,
	"primary": true, "references": true, "right": true, "select": true,
	"set": true, "table": true, "then": true, "to": true, "true": true,
	"union": true, "unique": true, "update": true, "user": true, "using": true,
	"values": true, "when": true, "where": true, "with": true,
}

// QuoteIdentifier renders a table or column name. Plain lower-case names are
// emitted bare; anything else is double-quoted with embedded quotes doubled.
func QuoteIdentifier(name string) string {
	if bareIdentifier.MatchString(name) && !reservedWords[name] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders a text literal with single quotes doubled.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// GenerateSQL emits one INSERT statement per row, in row order. Rows must be
// accepted and formatted. A value whose Go type does not fit its field type
// is an ErrInternal and no statements are returned.
func (p *Pipeline) GenerateSQL(rows []Row) ([]string, error) {
	prefix := p.insertPrefix()

	stmts := make([]string, 0, len(rows))
	var b strings.Builder
	for i, r := range rows {
		b.Reset()
		b.WriteString(prefix)
		for fi := range p.fields {
			f := &p.fields[fi]
			lit, err := f.literal(r.Value(f.def.Name))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			if fi > 0 {
				b.WriteString(", ")
			}
			b.WriteString(lit)
		}
		b.WriteString(");")
		stmts = append(stmts, b.String())
	}
	return stmts, nil
}

// Script joins statements into a script, one statement per line.
func Script(statements []string) string {
	return strings.Join(statements, "\n")
}

func (p *Pipeline) insertPrefix() string {
	cols := make([]string, len(p.fields))
	for i, f := range p.fields {
		cols[i] = QuoteIdentifier(f.column)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (", QuoteIdentifier(p.table), strings.Join(cols, ", "))
}

// literal renders one value for the field's SQL type.
func (f *compiledField) literal(v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}

	switch f.def.Type {
	case schema.FieldText:
		if s, ok := v.(string); ok {
			return QuoteString(s), nil
		}
	case schema.FieldInteger:
		if n, ok := v.(int64); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case schema.FieldDecimal:
		if n, ok := v.(pgtype.Numeric); ok && n.Valid && n.Int != nil {
			return DecimalString(n), nil
		}
	case schema.FieldBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
	case schema.FieldDate:
		switch x := v.(type) {
		case time.Time:
			return QuoteString(x.Format(schema.CanonicalDateLayout)), nil
		case string:
			if isCanonicalDate(x) {
				return QuoteString(x), nil
			}
		}
	}

	return "", fmt.Errorf("%w: field %q: %T value %q does not fit type %s",
		ErrInternal, f.def.Name, v, displayValue(v), f.def.Type)
}
