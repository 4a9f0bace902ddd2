package schema

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override values in
// the template file. SHEET2SQL_TPL_CUSTOMERS__TABLE=crm_customers sets
// templates.customers.table.
const EnvPrefix = "SHEET2SQL_TPL_"

// templatesFile is the on-disk shape of a template registry:
//
//	templates:
//	  customers:
//	    table: customers
//	    file_patterns: ["customers*.xlsx"]
//	    fields:
//	      - name: id
//	        type: integer
//	        required: true
//	      - name: signup_date
//	        type: date
type templatesFile struct {
	Templates map[string]fileTemplate `koanf:"templates" yaml:"templates"`
}

type fileTemplate struct {
	Table        string      `koanf:"table" yaml:"table,omitempty"`
	FilePatterns []string    `koanf:"file_patterns" yaml:"file_patterns,omitempty"`
	NullTokens   []string    `koanf:"null_tokens" yaml:"null_tokens,omitempty"`
	Fields       []fileField `koanf:"fields" yaml:"fields"`
	Checks       []fileCheck `koanf:"checks" yaml:"checks,omitempty"`
}

type fileField struct {
	Name         string     `koanf:"name" yaml:"name"`
	Column       string     `koanf:"column" yaml:"column,omitempty"`
	Type         string     `koanf:"type" yaml:"type"`
	Nullable     *bool      `koanf:"nullable" yaml:"nullable,omitempty"`
	Required     bool       `koanf:"required" yaml:"required,omitempty"`
	Default      any        `koanf:"default" yaml:"default,omitempty"`
	Case         string     `koanf:"case" yaml:"case,omitempty"`
	Rules        []fileRule `koanf:"rules" yaml:"rules,omitempty"`
	InputFormats []string   `koanf:"input_formats" yaml:"input_formats,omitempty"`
	OutputFormat string     `koanf:"output_format" yaml:"output_format,omitempty"`
	Aliases      []string   `koanf:"aliases" yaml:"aliases,omitempty"`
	Truthy       []string   `koanf:"truthy" yaml:"truthy,omitempty"`
	Falsy        []string   `koanf:"falsy" yaml:"falsy,omitempty"`
}

type fileRule struct {
	Kind            string `koanf:"kind" yaml:"kind"`
	Min             any    `koanf:"min" yaml:"min,omitempty"`
	Max             any    `koanf:"max" yaml:"max,omitempty"`
	Pattern         string `koanf:"pattern" yaml:"pattern,omitempty"`
	Values          []any  `koanf:"values" yaml:"values,omitempty"`
	CaseInsensitive bool   `koanf:"case_insensitive" yaml:"case_insensitive,omitempty"`
}

type fileCheck struct {
	Field string `koanf:"field" yaml:"field"`
	Op    string `koanf:"op" yaml:"op"`
	Other string `koanf:"other" yaml:"other"`
}

// Load reads a template registry file. Precedence (highest to lowest):
// environment variables with EnvPrefix > file.
//
// Only unreadable or unparsable files are errors. Individual templates that
// fail validation are registered in their failed state and logged, so that
// only files resolved to them are skipped.
func Load(path string) (*Registry, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read template file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return "templates." + strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load template env overrides: %w", err)
	}

	var doc templatesFile
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("decode template file %s: %w", path, err)
	}

	reg := NewRegistry()
	names := make([]string, 0, len(doc.Templates))
	for name := range doc.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t, convErr := doc.Templates[name].toTemplate(name)
		if convErr != nil {
			// Keep the name resolvable so the failure surfaces per file.
			t = Template{Name: name}
		}
		if err := reg.Register(t); err != nil || convErr != nil {
			if convErr != nil {
				reg.markInvalid(name, convErr)
				err = convErr
			}
			slog.Warn("template is invalid and will fail any file that uses it",
				"template", name,
				"error", err,
			)
		}
	}

	return reg, nil
}

// markInvalid overrides the stored error for a template.
func (r *Registry) markInvalid(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(name)
	if e, ok := r.entries[key]; ok {
		e.err = err
		r.entries[key] = e
	}
}

func (ft fileTemplate) toTemplate(name string) (Template, error) {
	t := Template{
		Name:         name,
		Table:        ft.Table,
		NullTokens:   ft.NullTokens,
		FilePatterns: ft.FilePatterns,
	}

	for _, ff := range ft.Fields {
		typ, err := ParseFieldType(ff.Type)
		if err != nil {
			return Template{}, fmt.Errorf("%w %q: field %q: %v", ErrInvalidTemplate, name, ff.Name, err)
		}

		f := FieldDefinition{
			Name:         ff.Name,
			Column:       ff.Column,
			Type:         typ,
			Nullable:     ff.Nullable == nil || *ff.Nullable,
			Default:      scalarString(ff.Default),
			Case:         CaseMode(strings.ToLower(ff.Case)),
			InputFormats: ff.InputFormats,
			OutputFormat: ff.OutputFormat,
			Aliases:      ff.Aliases,
			Truthy:       ff.Truthy,
			Falsy:        ff.Falsy,
		}

		if ff.Required {
			f.Rules = append(f.Rules, Rule{Kind: RuleRequired})
		}
		for _, fr := range ff.Rules {
			kind := RuleKind(strings.ToLower(fr.Kind))
			if kind == RuleRequired && ff.Required {
				continue
			}
			r := Rule{
				Kind:            kind,
				Min:             scalarString(fr.Min),
				Max:             scalarString(fr.Max),
				Pattern:         fr.Pattern,
				CaseInsensitive: fr.CaseInsensitive,
			}
			for _, v := range fr.Values {
				r.Values = append(r.Values, scalarString(v))
			}
			f.Rules = append(f.Rules, r)
		}

		t.Fields = append(t.Fields, f)
	}

	for _, fc := range ft.Checks {
		t.Checks = append(t.Checks, Check{Field: fc.Field, Op: fc.Op, Other: fc.Other})
	}

	return t, nil
}

// scalarString renders a YAML scalar (which may decode as a number or bool)
// back to its text form. Floats are written in plain decimal notation since
// numeric coercion does not accept exponents.
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// MarshalYAML renders templates in the registry file format.
func MarshalYAML(templates ...Template) ([]byte, error) {
	doc := templatesFile{Templates: make(map[string]fileTemplate, len(templates))}
	for _, t := range templates {
		doc.Templates[t.Name] = fromTemplate(t)
	}
	return yamlv3.Marshal(doc)
}

func fromTemplate(t Template) fileTemplate {
	ft := fileTemplate{
		Table:        t.Table,
		FilePatterns: t.FilePatterns,
		NullTokens:   t.NullTokens,
	}
	for _, f := range t.Fields {
		ff := fileField{
			Name:         f.Name,
			Column:       f.Column,
			Type:         f.Type.String(),
			Case:         string(f.Case),
			InputFormats: f.InputFormats,
			OutputFormat: f.OutputFormat,
			Aliases:      f.Aliases,
			Truthy:       f.Truthy,
			Falsy:        f.Falsy,
		}
		if !f.Nullable {
			no := false
			ff.Nullable = &no
		}
		if f.Default != "" {
			ff.Default = f.Default
		}
		for _, r := range f.Rules {
			if r.Kind == RuleRequired {
				ff.Required = true
				continue
			}
			fr := fileRule{
				Kind:            string(r.Kind),
				Pattern:         r.Pattern,
				CaseInsensitive: r.CaseInsensitive,
			}
			if r.Min != "" {
				fr.Min = r.Min
			}
			if r.Max != "" {
				fr.Max = r.Max
			}
			for _, v := range r.Values {
				fr.Values = append(fr.Values, v)
			}
			ff.Rules = append(ff.Rules, fr)
		}
		ft.Fields = append(ft.Fields, ff)
	}
	for _, c := range t.Checks {
		ft.Checks = append(ft.Checks, fileCheck{Field: c.Field, Op: c.Op, Other: c.Other})
	}
	return ft
}
