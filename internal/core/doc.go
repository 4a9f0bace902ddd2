// Package core provides the template-driven transformation pipeline that turns
// spreadsheet rows into validated, formatted rows and SQL INSERT statements.
//
// This package contains all domain logic independent of any file format, CLI
// or transport layer. It never talks to a database; the output is SQL text.
//
// # Architecture
//
// A [Pipeline] is compiled once per template by [NewPipeline]. Compilation
// coerces defaults, parses range bounds, compiles regular expressions and
// builds enum sets, so a malformed template fails before any row is read.
// The stages then run in a fixed order:
//
//  1. [Pipeline.Clean] maps raw cells onto field definitions, strips
//     spreadsheet artifacts, turns null tokens into NULL and coerces types.
//  2. [Pipeline.Validate] checks every row against every rule and aggregates
//     all violations of a row into a [Rejection] instead of stopping early.
//  3. [Pipeline.FormatDates] rewrites date fields of accepted rows to the
//     canonical 2006-01-02 text.
//  4. [Pipeline.GenerateSQL] emits one self-contained INSERT per accepted row.
//
// [Pipeline.Run] chains all four:
//
//	p, err := core.NewPipeline(tmpl)
//	if err != nil {
//	    return err // wraps schema.ErrInvalidTemplate
//	}
//	res, err := p.Run(rows)
//	fmt.Print(core.Script(res.Statements))
//
// # Values
//
// Cleaned cells hold nil (NULL), string, int64, [pgtype.Numeric] for decimals
// or bool. Dates stay strings (or time.Time from typed readers) until the
// formatter runs.
//
// # Error Handling
//
// Row problems are data, not errors: they come back as rejections. Errors are
// reserved for template problems ([schema.ErrInvalidTemplate]) and broken
// internal invariants ([ErrInternal]). Technical errors are mapped to
// user-facing messages using [MapError]:
//
//   - TPL001-TPL003: Template errors (unknown, invalid, no match)
//   - VAL001-VAL009: Violation codes, one per rule kind and type failure
//   - FILE001-FILE005: File errors (size, format, missing, empty)
//   - INT001: Internal pipeline errors
//
// [pgtype.Numeric]: https://pkg.go.dev/github.com/jackc/pgx/v5/pgtype#Numeric
package core
