// Package schema holds the declarative template model consumed by the
// transformation pipeline: templates, field definitions and their rules,
// plus the registry that resolves a template name (or an input file) to a
// template.
//
// Templates are data. Nothing in this package interprets cell values; the
// typed compilation of defaults, bounds and rule chains lives in package core.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the declared target type of a field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldDecimal
	FieldDate
	FieldBoolean
)

// String returns the canonical template spelling of the type.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldInteger:
		return "integer"
	case FieldDecimal:
		return "decimal"
	case FieldDate:
		return "date"
	case FieldBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseFieldType maps a template type name (and a few database-ish
// spellings) onto a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string", "varchar":
		return FieldText, nil
	case "integer", "int", "bigint", "int8", "int4":
		return FieldInteger, nil
	case "decimal", "numeric", "number", "float", "double":
		return FieldDecimal, nil
	case "date":
		return FieldDate, nil
	case "boolean", "bool":
		return FieldBoolean, nil
	default:
		return FieldText, fmt.Errorf("unknown field type %q", s)
	}
}

// CaseMode selects the casing applied to text fields by the cleaner.
type CaseMode string

const (
	CaseNone  CaseMode = ""
	CaseUpper CaseMode = "upper"
	CaseLower CaseMode = "lower"
	CaseTitle CaseMode = "title"
)

// RuleKind names a validation rule. The set is closed per release but new
// kinds only need an entry in the validator's dispatch table.
type RuleKind string

const (
	RuleRequired RuleKind = "required"
	RuleRange    RuleKind = "range"
	RuleRegex    RuleKind = "regex"
	RuleEnum     RuleKind = "enum"
)

// Rule is one declarative constraint on a field.
type Rule struct {
	Kind RuleKind

	// Min and Max bound a range rule. Either may be empty. They are parsed
	// with the field's own coercion policy: numbers for integer/decimal,
	// dates for date, rune counts for text.
	Min string
	Max string

	// Pattern is the regular expression of a regex rule.
	Pattern string

	// Values is the allowed set of an enum rule.
	Values          []string
	CaseInsensitive bool
}

// FieldDefinition describes one column of a template.
type FieldDefinition struct {
	Name     string
	Column   string // SQL column name; derived from Name when empty
	Type     FieldType
	Nullable bool
	Default  string // empty means no default
	Case     CaseMode
	Rules    []Rule

	InputFormats []string // extra Go time layouts for date fields
	OutputFormat string   // must be empty or CanonicalDateLayout

	Aliases []string // alternative header spellings
	Truthy  []string // boolean overrides
	Falsy   []string
}

// HasDefault reports whether a default value is declared.
func (f FieldDefinition) HasDefault() bool {
	return f.Default != ""
}

// Required reports whether the field carries a required rule.
func (f FieldDefinition) Required() bool {
	for _, r := range f.Rules {
		if r.Kind == RuleRequired {
			return true
		}
	}
	return false
}

// ColumnName returns the SQL column name for the field.
func (f FieldDefinition) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return Identifier(f.Name)
}

// Check is a row-level constraint comparing two declared fields.
type Check struct {
	Field string
	Op    string
	Other string
}

// Template is a named schema. Once registered it must not be mutated.
type Template struct {
	Name         string
	Table        string
	Fields       []FieldDefinition
	NullTokens   []string
	FilePatterns []string
	Checks       []Check
}

// CanonicalDateLayout is the single textual date representation emitted by
// the formatter and the SQL generator.
const CanonicalDateLayout = "2006-01-02"

// TableName returns the target table, derived from the template name unless
// overridden.
func (t *Template) TableName() string {
	if t.Table != "" {
		return t.Table
	}
	return Identifier(t.Name)
}

// Field returns the definition with the given name.
func (t *Template) Field(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// FieldNames returns field names in definition order.
func (t *Template) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Columns returns SQL column names in definition order.
func (t *Template) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.ColumnName()
	}
	return cols
}

var nonIdentRun = regexp.MustCompile(`[^a-z0-9_]+`)

// Identifier converts a display name to a snake_case SQL identifier.
// "Signup Date" -> "signup_date", "Order #" -> "order".
func Identifier(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonIdentRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// clone returns a copy of t that shares no slices with it.
func (t Template) clone() Template {
	out := t
	out.Fields = make([]FieldDefinition, len(t.Fields))
	for i, f := range t.Fields {
		f.Rules = append([]Rule(nil), f.Rules...)
		for j := range f.Rules {
			f.Rules[j].Values = append([]string(nil), f.Rules[j].Values...)
		}
		f.InputFormats = append([]string(nil), f.InputFormats...)
		f.Aliases = append([]string(nil), f.Aliases...)
		f.Truthy = append([]string(nil), f.Truthy...)
		f.Falsy = append([]string(nil), f.Falsy...)
		out.Fields[i] = f
	}
	out.NullTokens = append([]string(nil), t.NullTokens...)
	out.FilePatterns = append([]string(nil), t.FilePatterns...)
	out.Checks = append([]Check(nil), t.Checks...)
	return out
}
