package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// sqlType maps a field type to the column type used by CreateTableSQL.
func sqlType(t schema.FieldType) string {
	switch t {
	case schema.FieldInteger:
		return "BIGINT"
	case schema.FieldDecimal:
		return "NUMERIC"
	case schema.FieldDate:
		return "DATE"
	case schema.FieldBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders a CREATE TABLE statement matching the INSERTs the
// pipeline generates:
//
//	CREATE TABLE <table> (
//	  <column> <type> [NOT NULL] [DEFAULT <literal>],
//	  ...
//	);
//
// A column is NOT NULL when the field is required or not nullable.
func (p *Pipeline) CreateTableSQL() string {
	cols := make([]string, 0, len(p.fields))
	for i := range p.fields {
		f := &p.fields[i]

		var sb strings.Builder
		sb.WriteString(QuoteIdentifier(f.column))
		sb.WriteByte(' ')
		sb.WriteString(sqlType(f.def.Type))

		if f.required || !f.def.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if f.hasDefault {
			// Defaults were coerced at compile time, so they always render.
			if lit, err := f.literal(f.deflt); err == nil {
				sb.WriteString(" DEFAULT ")
				sb.WriteString(lit)
			}
		}

		cols = append(cols, sb.String())
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", QuoteIdentifier(p.table), strings.Join(cols, ",\n  "))
}
