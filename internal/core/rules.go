package core

// rules.go compiles declarative field rules into checks.
//
// Each rule kind has one compiler in ruleCompilers. Compilers parse their
// parameters against the field type once, so a bad bound or pattern is a
// template error rather than a per-row surprise. Adding a kind means adding
// a compiler here and a constant in package schema.

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// compiledRule checks a typed, non-null value. fn returns a message and true
// when the value violates the rule.
type compiledRule struct {
	kind schema.RuleKind
	fn   func(v any) (string, bool)
}

type ruleCompiler func(f *compiledField, r schema.Rule) (compiledRule, error)

var ruleCompilers = map[schema.RuleKind]ruleCompiler{
	schema.RuleRequired: compileRequired,
	schema.RuleRange:    compileRange,
	schema.RuleRegex:    compileRegex,
	schema.RuleEnum:     compileEnum,
}

// compileRequired yields no check; required is enforced by null handling.
func compileRequired(_ *compiledField, _ schema.Rule) (compiledRule, error) {
	return compiledRule{kind: schema.RuleRequired}, nil
}

func compileRange(f *compiledField, r schema.Rule) (compiledRule, error) {
	if r.Min == "" && r.Max == "" {
		return compiledRule{}, errors.New("range rule needs min or max")
	}

	switch f.def.Type {
	case schema.FieldInteger, schema.FieldDecimal:
		return compileNumericRange(r)
	case schema.FieldDate:
		return compileDateRange(f, r)
	case schema.FieldText:
		return compileLengthRange(r)
	default:
		return compiledRule{}, fmt.Errorf("range rule does not apply to %s fields", f.def.Type)
	}
}

func compileNumericRange(r schema.Rule) (compiledRule, error) {
	parse := func(s string) (*big.Rat, error) {
		if s == "" {
			return nil, nil
		}
		n, ok := ToDecimal(s)
		if !ok {
			return nil, fmt.Errorf("bound %q is not a number", s)
		}
		return numericRat(n), nil
	}

	lo, err := parse(r.Min)
	if err != nil {
		return compiledRule{}, err
	}
	hi, err := parse(r.Max)
	if err != nil {
		return compiledRule{}, err
	}
	if lo != nil && hi != nil && lo.Cmp(hi) > 0 {
		return compiledRule{}, fmt.Errorf("min %s is greater than max %s", r.Min, r.Max)
	}

	return compiledRule{kind: schema.RuleRange, fn: func(v any) (string, bool) {
		x := toRat(v)
		if x == nil {
			return "", false
		}
		if lo != nil && x.Cmp(lo) < 0 {
			return "must be >= " + r.Min, true
		}
		if hi != nil && x.Cmp(hi) > 0 {
			return "must be <= " + r.Max, true
		}
		return "", false
	}}, nil
}

func compileDateRange(f *compiledField, r schema.Rule) (compiledRule, error) {
	parse := func(s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, ok := ToDate(s, f.def.InputFormats)
		if !ok {
			return nil, fmt.Errorf("bound %q is not a date", s)
		}
		return &t, nil
	}

	lo, err := parse(r.Min)
	if err != nil {
		return compiledRule{}, err
	}
	hi, err := parse(r.Max)
	if err != nil {
		return compiledRule{}, err
	}
	if lo != nil && hi != nil && lo.After(*hi) {
		return compiledRule{}, fmt.Errorf("min %s is after max %s", r.Min, r.Max)
	}

	return compiledRule{kind: schema.RuleRange, fn: func(v any) (string, bool) {
		t, ok := v.(time.Time)
		if !ok {
			return "", false
		}
		if lo != nil && t.Before(*lo) {
			return "must be on or after " + lo.Format(schema.CanonicalDateLayout), true
		}
		if hi != nil && t.After(*hi) {
			return "must be on or before " + hi.Format(schema.CanonicalDateLayout), true
		}
		return "", false
	}}, nil
}

func compileLengthRange(r schema.Rule) (compiledRule, error) {
	parse := func(s string) (int, error) {
		if s == "" {
			return -1, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("length bound %q is not a non-negative integer", s)
		}
		return n, nil
	}

	lo, err := parse(r.Min)
	if err != nil {
		return compiledRule{}, err
	}
	hi, err := parse(r.Max)
	if err != nil {
		return compiledRule{}, err
	}
	if lo >= 0 && hi >= 0 && lo > hi {
		return compiledRule{}, fmt.Errorf("min %d is greater than max %d", lo, hi)
	}

	return compiledRule{kind: schema.RuleRange, fn: func(v any) (string, bool) {
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		n := utf8.RuneCountInString(s)
		if lo >= 0 && n < lo {
			return fmt.Sprintf("length must be >= %d", lo), true
		}
		if hi >= 0 && n > hi {
			return fmt.Sprintf("length must be <= %d", hi), true
		}
		return "", false
	}}, nil
}

func compileRegex(_ *compiledField, r schema.Rule) (compiledRule, error) {
	if r.Pattern == "" {
		return compiledRule{}, errors.New("regex rule needs a pattern")
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return compiledRule{}, fmt.Errorf("bad pattern: %w", err)
	}

	msg := fmt.Sprintf("does not match pattern %s", r.Pattern)
	return compiledRule{kind: schema.RuleRegex, fn: func(v any) (string, bool) {
		if re.MatchString(displayValue(v)) {
			return "", false
		}
		return msg, true
	}}, nil
}

// compileEnum normalises the allowed values through the field's own coercion
// so that "01" matches an integer enum of 1. Numbers compare by value, so
// 1.50 matches a decimal enum of 1.5.
func compileEnum(f *compiledField, r schema.Rule) (compiledRule, error) {
	if len(r.Values) == 0 {
		return compiledRule{}, errors.New("enum rule needs values")
	}

	key := func(v any) string {
		if n := toRat(v); n != nil {
			return n.RatString()
		}
		s := displayValue(v)
		if r.CaseInsensitive {
			return strings.ToLower(s)
		}
		return s
	}

	allowed := make(map[string]struct{}, len(r.Values))
	for _, val := range r.Values {
		typed, ok := f.coerce(val)
		if !ok {
			return compiledRule{}, fmt.Errorf("enum value %q is not a valid %s", val, f.def.Type)
		}
		allowed[key(typed)] = struct{}{}
	}

	msg := fmt.Sprintf("must be one of: %s", strings.Join(r.Values, ", "))
	return compiledRule{kind: schema.RuleEnum, fn: func(v any) (string, bool) {
		if _, ok := allowed[key(v)]; ok {
			return "", false
		}
		return msg, true
	}}, nil
}

// toRat returns the exact value of an integer or decimal, or nil.
func toRat(v any) *big.Rat {
	switch x := v.(type) {
	case int64:
		return new(big.Rat).SetInt64(x)
	case pgtype.Numeric:
		return numericRat(x)
	}
	return nil
}
