package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// ErrInternal marks a broken pipeline invariant, such as a cleaned value
// whose Go type does not fit its field type at SQL generation.
var ErrInternal = errors.New("internal pipeline error")

// DefaultNullTokens are the cell texts treated as NULL in every field when
// neither the template nor the caller supplies a set. Matching is
// case-insensitive. Empty cells are always NULL.
var DefaultNullTokens = []string{"", "null", "n/a", "#n/a"}

// DefaultTypedNullTokens join DefaultNullTokens for integer, decimal, date and
// boolean fields only, where they can never be a valid value. Text keeps
// them, so names such as "Na" or "None" survive cleaning.
var DefaultTypedNullTokens = []string{"nil", "none", "na", "nan", "-"}

// Pipeline is a template compiled for row processing. It is immutable after
// NewPipeline returns and safe for concurrent use.
type Pipeline struct {
	tmpl       *schema.Template
	table      string
	fields     []compiledField
	checks     []compiledCheck
	nullTokens map[string]struct{}

	// typedNullTokens apply to non-text fields; only set with the defaults.
	typedNullTokens map[string]struct{}
}

// compiledField is a field definition with its parameters parsed once.
type compiledField struct {
	def        schema.FieldDefinition
	column     string
	headerKeys []string
	required   bool
	hasDefault bool
	deflt      any
	truthy     map[string]struct{}
	falsy      map[string]struct{}
	rules      []compiledRule
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNullTokens sets the null tokens used when the template declares none.
// An explicit set applies to every field, text included, and replaces both
// default sets. An empty cell is NULL regardless of the token set.
func WithNullTokens(tokens []string) Option {
	return func(p *Pipeline) {
		if tokens != nil {
			p.nullTokens = tokenSet(tokens...)
			p.typedNullTokens = nil
		}
	}
}

// NewPipeline validates and compiles a template. Any problem is reported as an
// error wrapping schema.ErrInvalidTemplate.
func NewPipeline(t *schema.Template, opts ...Option) (*Pipeline, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil template", schema.ErrInvalidTemplate)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		tmpl:            t,
		table:           t.TableName(),
		nullTokens:      tokenSet(DefaultNullTokens...),
		typedNullTokens: tokenSet(DefaultTypedNullTokens...),
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(t.NullTokens) > 0 {
		p.nullTokens = tokenSet(t.NullTokens...)
		p.typedNullTokens = nil
	}

	var errs []string
	p.fields = make([]compiledField, len(t.Fields))
	for i, f := range t.Fields {
		cf, fieldErrs := compileField(f)
		p.fields[i] = cf
		errs = append(errs, fieldErrs...)
	}

	checks, checkErrs := p.compileChecks(t.Checks)
	p.checks = checks
	errs = append(errs, checkErrs...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %q:\n  - %s", schema.ErrInvalidTemplate, t.Name, strings.Join(errs, "\n  - "))
	}
	return p, nil
}

func compileField(f schema.FieldDefinition) (compiledField, []string) {
	cf := compiledField{
		def:      f,
		column:   f.ColumnName(),
		required: f.Required(),
	}

	cf.headerKeys = append(cf.headerKeys, schema.HeaderKey(f.Name))
	for _, a := range f.Aliases {
		cf.headerKeys = append(cf.headerKeys, schema.HeaderKey(a))
	}
	if len(f.Truthy) > 0 || len(f.Falsy) > 0 {
		cf.truthy = tokenSet(f.Truthy...)
		cf.falsy = tokenSet(f.Falsy...)
	}

	var errs []string
	if f.HasDefault() {
		v, ok := cf.coerce(f.Default)
		if !ok {
			errs = append(errs, fmt.Sprintf("field %q: default %q is not a valid %s", f.Name, f.Default, f.Type))
		} else {
			cf.hasDefault = true
			cf.deflt = v
		}
	}

	for j, r := range f.Rules {
		compile, ok := ruleCompilers[r.Kind]
		if !ok {
			errs = append(errs, fmt.Sprintf("field %q rules[%d]: unknown rule kind %q", f.Name, j, r.Kind))
			continue
		}
		check, err := compile(&cf, r)
		if err != nil {
			errs = append(errs, fmt.Sprintf("field %q rules[%d]: %v", f.Name, j, err))
			continue
		}
		if check.fn != nil {
			cf.rules = append(cf.rules, check)
		}
	}

	return cf, errs
}

// Template returns the template the pipeline was compiled from.
func (p *Pipeline) Template() *schema.Template {
	return p.tmpl
}

// Table returns the target table name.
func (p *Pipeline) Table() string {
	return p.table
}

// Columns returns the SQL column names in field order.
func (p *Pipeline) Columns() []string {
	cols := make([]string, len(p.fields))
	for i, f := range p.fields {
		cols[i] = f.column
	}
	return cols
}

// Result is the outcome of running a table through the pipeline.
type Result struct {
	Template   string
	Table      string
	Total      int         // rows read
	Cleaned    []Row       // accepted rows after date formatting
	Statements []string    // one INSERT per accepted row, same order
	Rejections []Rejection // rows excluded from Cleaned and Statements
}

// Accepted returns the number of rows that passed validation.
func (r *Result) Accepted() int {
	return len(r.Cleaned)
}

// Run cleans, validates, formats and generates SQL for rows. Validation
// failures are reported in the result; an error means nothing was produced.
func (p *Pipeline) Run(rows []Row) (*Result, error) {
	cleaned := p.Clean(rows)
	accepted, rejections := p.Validate(cleaned)
	for i := range rejections {
		rejections[i].Raw = rows[rejections[i].Index]
	}

	formatted := p.FormatDates(accepted)
	stmts, err := p.GenerateSQL(formatted)
	if err != nil {
		return nil, err
	}

	return &Result{
		Template:   p.tmpl.Name,
		Table:      p.table,
		Total:      len(rows),
		Cleaned:    formatted,
		Statements: stmts,
		Rejections: rejections,
	}, nil
}
