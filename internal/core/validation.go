package core

// validation.go checks cleaned rows against the template.
//
// Validation happens at two levels:
//  1. Field validation: null handling, type coercion, then the field's rule
//     chain in declaration order. The first failing rule ends that field.
//  2. Row checks: comparisons between two fields that both passed.
//
// Every problem in a row is collected; a row is never rejected with only its
// first error. Row problems are returned as data and never abort the run.

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// Violation labels.
const (
	RuleRequired = "required"
	RuleType     = "type"
	RuleRange    = "range"
	RuleRegex    = "regex"
	RuleEnum     = "enum"
	RuleCompare  = "compare"
	RuleNullable = "nullable"
)

// Violation is a single failed rule for a field.
type Violation struct {
	Field   string `json:"field"`   // Declared field name
	Rule    string `json:"rule"`    // Rule label, e.g. "required" or "type"
	Value   string `json:"value"`   // Offending value; "" for NULL
	Message string `json:"message"` // Human-readable error message
	Code    string `json:"code"`    // Support code, e.g. VAL001
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Rejection is a row excluded from output together with every reason.
type Rejection struct {
	Index      int         `json:"index"`          // Position in the input table
	Line       int         `json:"line,omitempty"` // 1-based source line when known
	Violations []Violation `json:"violations"`
	Raw        Row         `json:"raw"`
}

// Validate splits cleaned rows into accepted rows and rejections. Accepted
// rows keep their input order and carry any corrections (defaults, typed
// values). Each rejection has at least one violation.
func (p *Pipeline) Validate(rows []Row) ([]Row, []Rejection) {
	accepted := make([]Row, 0, len(rows))
	var rejections []Rejection

	for i, r := range rows {
		out, violations := p.ValidateRow(r)
		if len(violations) > 0 {
			rejections = append(rejections, Rejection{
				Index:      i,
				Line:       r.line,
				Violations: violations,
				Raw:        r,
			})
			continue
		}
		accepted = append(accepted, out)
	}

	return accepted, rejections
}

// ValidateRow validates one cleaned row and returns the corrected row and all
// violations. The corrected row is meaningful only when there are none.
func (p *Pipeline) ValidateRow(row Row) (Row, []Violation) {
	out := Row{
		keys:   make([]string, 0, len(p.fields)),
		values: make(map[string]any, len(p.fields)),
		line:   row.line,
	}

	typed := make([]any, len(p.fields))
	var violations []Violation

	for i := range p.fields {
		f := &p.fields[i]
		v, violation := f.validate(row.Value(f.def.Name))
		if violation != nil {
			violations = append(violations, *violation)
			out.Set(f.def.Name, row.Value(f.def.Name))
			continue
		}
		typed[i] = v
		out.Set(f.def.Name, v)
	}

	for _, c := range p.checks {
		a, b := typed[c.left], typed[c.right]
		if a == nil || b == nil {
			continue
		}
		if !c.holds(a, b) {
			violations = append(violations, Violation{
				Field:   p.fields[c.left].def.Name,
				Rule:    RuleCompare,
				Value:   displayValue(a),
				Message: fmt.Sprintf("must be %s %s (%s)", c.op, p.fields[c.right].def.Name, displayValue(b)),
				Code:    CodeCheckFailed,
			})
		}
	}

	return out, violations
}

// validate returns the typed value or the field's single violation.
func (f *compiledField) validate(v any) (any, *Violation) {
	if v == nil {
		switch {
		case f.required:
			return nil, f.violation(RuleRequired, "", "required field is empty")
		case f.hasDefault:
			return f.deflt, nil
		case !f.def.Nullable:
			return nil, f.violation(RuleNullable, "", "null value not allowed")
		}
		return nil, nil
	}

	t, ok := f.coerce(v)
	if !ok {
		return nil, f.violation(RuleType, displayValue(v), typeMessage(f.def.Type))
	}

	for _, r := range f.rules {
		if msg, failed := r.fn(t); failed {
			return nil, f.violation(string(r.kind), displayValue(v), msg)
		}
	}

	return t, nil
}

func (f *compiledField) violation(rule, value, msg string) *Violation {
	return &Violation{
		Field:   f.def.Name,
		Rule:    rule,
		Value:   value,
		Message: msg,
		Code:    violationCode(rule, f.def.Type),
	}
}

func typeMessage(t schema.FieldType) string {
	switch t {
	case schema.FieldDate:
		return "invalid date format"
	case schema.FieldInteger:
		return "invalid integer format"
	case schema.FieldDecimal:
		return "invalid number format"
	case schema.FieldBoolean:
		return "invalid boolean value"
	default:
		return "invalid " + t.String() + " value"
	}
}

// compiledCheck compares two fields by position.
type compiledCheck struct {
	left, right int
	op          string
}

func (p *Pipeline) compileChecks(checks []schema.Check) ([]compiledCheck, []string) {
	find := func(name string) int {
		for i, f := range p.fields {
			if strings.EqualFold(f.def.Name, name) {
				return i
			}
		}
		return -1
	}

	var out []compiledCheck
	var errs []string
	for i, c := range checks {
		l, r := find(c.Field), find(c.Other)
		if l < 0 || r < 0 {
			errs = append(errs, fmt.Sprintf("checks[%d]: unknown field", i))
			continue
		}
		lt, rt := p.fields[l].def.Type, p.fields[r].def.Type
		if !comparableTypes(lt, rt) {
			errs = append(errs, fmt.Sprintf("checks[%d]: cannot compare %s with %s", i, lt, rt))
			continue
		}
		if lt == schema.FieldBoolean && c.Op != "=" && c.Op != "!=" {
			errs = append(errs, fmt.Sprintf("checks[%d]: booleans support only = and !=", i))
			continue
		}
		out = append(out, compiledCheck{left: l, right: r, op: c.Op})
	}
	return out, errs
}

func comparableTypes(a, b schema.FieldType) bool {
	numeric := func(t schema.FieldType) bool {
		return t == schema.FieldInteger || t == schema.FieldDecimal
	}
	return a == b || (numeric(a) && numeric(b))
}

func (c compiledCheck) holds(a, b any) bool {
	cmp, ok := compareTyped(a, b)
	if !ok {
		return true
	}
	switch c.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return true
}

// compareTyped orders two typed values of compatible types.
func compareTyped(a, b any) (int, bool) {
	if ra, rb := toRat(a), toRat(b); ra != nil && rb != nil {
		return ra.Cmp(rb), true
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			if x == y {
				return 0, true
			}
			return 1, true
		}
	}
	return 0, false
}
