package schema

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidTemplate marks a structurally or semantically malformed template.
// Files resolved to such a template fail; other files are unaffected.
var ErrInvalidTemplate = errors.New("invalid template")

// ErrTemplateNotFound is returned when no template is registered under a name.
var ErrTemplateNotFound = errors.New("template not found")

// ErrNoTemplateMatch is returned when an input file cannot be matched to any
// registered template.
var ErrNoTemplateMatch = errors.New("no template matches input")

var checkOps = map[string]bool{"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

// Validate checks the template's structure and returns every problem found,
// wrapped in ErrInvalidTemplate.
func (t *Template) Validate() error {
	var errs []string

	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, "name is required")
	}
	if t.TableName() == "" {
		errs = append(errs, "table name resolves to empty; set table explicitly")
	}
	if len(t.Fields) == 0 {
		errs = append(errs, "at least one field is required")
	}

	names := make(map[string]bool, len(t.Fields))
	columns := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		label := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, label+": name is required")
			continue
		}
		label = fmt.Sprintf("field %q", f.Name)

		key := strings.ToLower(f.Name)
		if names[key] {
			errs = append(errs, label+": duplicate field name")
		}
		names[key] = true

		col := f.ColumnName()
		if col == "" {
			errs = append(errs, label+": column name resolves to empty; set column explicitly")
		} else if columns[col] {
			errs = append(errs, fmt.Sprintf("%s: duplicate column %q", label, col))
		}
		columns[col] = true

		if f.Case != CaseNone {
			switch f.Case {
			case CaseUpper, CaseLower, CaseTitle:
				if f.Type != FieldText {
					errs = append(errs, label+": case applies to text fields only")
				}
			default:
				errs = append(errs, fmt.Sprintf("%s: unknown case %q", label, f.Case))
			}
		}
		if f.OutputFormat != "" && f.OutputFormat != CanonicalDateLayout {
			errs = append(errs, fmt.Sprintf("%s: output format must be %q", label, CanonicalDateLayout))
		}
		if len(f.InputFormats) > 0 && f.Type != FieldDate {
			errs = append(errs, label+": input formats apply to date fields only")
		}
		if (len(f.Truthy) > 0 || len(f.Falsy) > 0) && f.Type != FieldBoolean {
			errs = append(errs, label+": truthy/falsy apply to boolean fields only")
		}

		for j, r := range f.Rules {
			rl := fmt.Sprintf("%s rules[%d]", label, j)
			switch r.Kind {
			case RuleRegex:
				if r.Pattern == "" {
					errs = append(errs, rl+": regex rule needs a pattern")
				} else if _, err := regexp.Compile(r.Pattern); err != nil {
					errs = append(errs, fmt.Sprintf("%s: bad pattern: %v", rl, err))
				}
			case RuleEnum:
				if len(r.Values) == 0 {
					errs = append(errs, rl+": enum rule needs values")
				}
			case RuleRange:
				if r.Min == "" && r.Max == "" {
					errs = append(errs, rl+": range rule needs min or max")
				}
			case "":
				errs = append(errs, rl+": kind is required")
			}
		}
	}

	for i, c := range t.Checks {
		cl := fmt.Sprintf("checks[%d]", i)
		if !names[strings.ToLower(c.Field)] {
			errs = append(errs, fmt.Sprintf("%s: unknown field %q", cl, c.Field))
		}
		if !names[strings.ToLower(c.Other)] {
			errs = append(errs, fmt.Sprintf("%s: unknown field %q", cl, c.Other))
		}
		if !checkOps[c.Op] {
			errs = append(errs, fmt.Sprintf("%s: unknown operator %q", cl, c.Op))
		}
	}

	for _, p := range t.FilePatterns {
		if _, err := path.Match(p, ""); err != nil {
			errs = append(errs, fmt.Sprintf("file pattern %q: %v", p, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q:\n  - %s", ErrInvalidTemplate, t.Name, strings.Join(errs, "\n  - "))
	}
	return nil
}
