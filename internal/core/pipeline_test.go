package core

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

func customersTemplate() *schema.Template {
	return &schema.Template{
		Name: "customers",
		Fields: []schema.FieldDefinition{
			{Name: "id", Type: schema.FieldInteger, Rules: []schema.Rule{{Kind: schema.RuleRequired}}},
			{Name: "name", Type: schema.FieldText, Nullable: true},
			{Name: "signup_date", Type: schema.FieldDate, Nullable: true},
			{Name: "active", Type: schema.FieldBoolean, Nullable: true},
		},
	}
}

func rawRow(kv ...string) Row {
	var r Row
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

// withCell returns r with key set to v, for values that are not plain text.
func withCell(r Row, key string, v any) Row {
	r.Set(key, v)
	return r
}

func mustPipeline(t *testing.T, tmpl *schema.Template, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(tmpl, opts...)
	require.NoError(t, err)
	return p
}

func TestRun_CustomersScenario(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	res, err := p.Run([]Row{
		rawRow("id", "7", "name", " Alice ", "signup_date", "2024-1-5", "active", "yes"),
	})
	require.NoError(t, err)

	require.Len(t, res.Statements, 1)
	assert.Equal(t,
		"INSERT INTO customers (id, name, signup_date, active) VALUES (7, 'Alice', '2024-01-05', TRUE);",
		res.Statements[0])
	assert.Empty(t, res.Rejections)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Accepted())

	cleaned := res.Cleaned[0]
	assert.Equal(t, []string{"id", "name", "signup_date", "active"}, cleaned.Keys())
	assert.Equal(t, int64(7), cleaned.Value("id"))
	assert.Equal(t, "2024-01-05", cleaned.Value("signup_date"))
}

func TestRun_AggregatesViolations(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	res, err := p.Run([]Row{
		rawRow("id", "", "name", "Bob", "signup_date", "bad-date", "active", "no"),
	})
	require.NoError(t, err)

	assert.Empty(t, res.Statements)
	require.Len(t, res.Rejections, 1)

	rej := res.Rejections[0]
	assert.Equal(t, 0, rej.Index)
	assert.Equal(t, []Violation{
		{Field: "id", Rule: RuleRequired, Value: "", Message: "required field is empty", Code: CodeRequired},
		{Field: "signup_date", Rule: RuleType, Value: "bad-date", Message: "invalid date format", Code: CodeInvalidDate},
	}, rej.Violations)
	assert.Equal(t, "Bob", rej.Raw.Value("name"), "rejection carries the source row")
}

func TestRun_SerialDatesOnlyFromNumericCells(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	res, err := p.Run([]Row{
		rawRow("id", "1", "signup_date", "2024"),
		rawRow("id", "2", "signup_date", "45306"),
		withCell(rawRow("id", "3"), "signup_date", NumericCell("45306")),
		withCell(rawRow("id", "4"), "signup_date", NumericCell("0")),
	})
	require.NoError(t, err)

	require.Len(t, res.Statements, 1)
	assert.Contains(t, res.Statements[0], "(3, NULL, '2024-01-15', NULL)")

	require.Len(t, res.Rejections, 3)
	for i, want := range []string{"2024", "45306", "0"} {
		assert.Equal(t, []Violation{
			{Field: "signup_date", Rule: RuleType, Value: want, Message: "invalid date format", Code: CodeInvalidDate},
		}, res.Rejections[i].Violations)
	}
}

func TestRun_QuotesApostrophes(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	res, err := p.Run([]Row{rawRow("id", "1", "name", "O'Brien")})
	require.NoError(t, err)
	require.Len(t, res.Statements, 1)
	assert.Equal(t,
		"INSERT INTO customers (id, name, signup_date, active) VALUES (1, 'O''Brien', NULL, NULL);",
		res.Statements[0])
}

func TestRun_MixedRowsKeepOrder(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	rows := []Row{
		rawRow("id", "1", "name", "a"),
		rawRow("id", "x", "name", "b"),
		rawRow("id", "3", "name", "c"),
		rawRow("id", "", "name", "d"),
		rawRow("id", "5", "name", "e"),
	}
	res, err := p.Run(rows)
	require.NoError(t, err)

	require.Len(t, res.Statements, 3)
	assert.Contains(t, res.Statements[0], "(1, 'a',")
	assert.Contains(t, res.Statements[1], "(3, 'c',")
	assert.Contains(t, res.Statements[2], "(5, 'e',")

	require.Len(t, res.Rejections, 2)
	assert.Equal(t, 1, res.Rejections[0].Index)
	assert.Equal(t, 3, res.Rejections[1].Index)
}

func TestRun_EmptyTable(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	res, err := p.Run(nil)
	require.NoError(t, err)
	assert.Empty(t, res.Statements)
	assert.Empty(t, res.Rejections)
	assert.Empty(t, Script(res.Statements))
}

func TestRun_AllRowsRejected(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	res, err := p.Run([]Row{rawRow("id", ""), rawRow("id", "abc")})
	require.NoError(t, err)
	assert.Empty(t, res.Statements)
	assert.Len(t, res.Rejections, 2)
}

// Properties that must hold for any input table.
func TestPipeline_Properties(t *testing.T) {
	tmpl := customersTemplate()
	tmpl.Fields[1].Rules = []schema.Rule{{Kind: schema.RuleRange, Max: "5"}}
	tmpl.Fields[3].Nullable = false
	tmpl.Fields[3].Default = "false"
	p := mustPipeline(t, tmpl)

	rows := []Row{
		rawRow("id", "1", "name", "Ann", "signup_date", "01/02/2024", "active", "y"),
		rawRow("id", "2", "name", "Bartholomew", "signup_date", "2024-02-30"),
		withCell(rawRow("id", "3.0", "active", "N/A"), "signup_date", NumericCell("45306")),
		rawRow("name", "nobody"),
		rawRow("id", "5", "name", "  ", "signup_date", "Jan 2, 2024", "active", "off"),
		rawRow("unrelated", "column"),
	}

	cleaned := p.Clean(rows)
	assert.Len(t, cleaned, len(rows), "cleaning preserves row count")

	accepted, rejections := p.Validate(cleaned)
	assert.Equal(t, len(rows), len(accepted)+len(rejections))

	names := map[string]bool{}
	for _, n := range tmpl.FieldNames() {
		names[n] = true
	}
	for _, rej := range rejections {
		require.NotEmpty(t, rej.Violations, "every rejection has a reason")
		for _, v := range rej.Violations {
			assert.True(t, names[v.Field], "violation names a declared field: %s", v.Field)
		}
	}

	again, rejectedAgain := p.Validate(accepted)
	assert.Empty(t, rejectedAgain, "accepted rows re-validate cleanly")
	assert.Len(t, again, len(accepted))

	formatted := p.FormatDates(accepted)
	assert.Equal(t, formatted, p.FormatDates(formatted), "formatting is idempotent")

	stmts, err := p.GenerateSQL(formatted)
	require.NoError(t, err)
	assert.Len(t, stmts, len(accepted))

	// Row 3 had "N/A" for a non-nullable boolean with a default.
	assert.Contains(t, stmts[1], "(3, NULL, '2024-01-15', FALSE);")
}

func TestRun_Deterministic(t *testing.T) {
	p := mustPipeline(t, customersTemplate())
	rows := []Row{
		rawRow("id", "1", "name", "a", "signup_date", "2024-03-01"),
		rawRow("id", "", "name", "b"),
	}

	first, err := p.Run(rows)
	require.NoError(t, err)
	second, err := p.Run(rows)
	require.NoError(t, err)

	assert.Equal(t, first.Statements, second.Statements)
	assert.Equal(t, first.Rejections, second.Rejections)
}

func TestNewPipeline_InvalidTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl *schema.Template
	}{
		{name: "nil template", tmpl: nil},
		{name: "no fields", tmpl: &schema.Template{Name: "empty"}},
		{
			name: "unknown rule kind",
			tmpl: &schema.Template{Name: "t", Fields: []schema.FieldDefinition{
				{Name: "a", Rules: []schema.Rule{{Kind: "luhn"}}},
			}},
		},
		{
			name: "non-numeric range bound",
			tmpl: &schema.Template{Name: "t", Fields: []schema.FieldDefinition{
				{Name: "a", Type: schema.FieldInteger, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "ten"}}},
			}},
		},
		{
			name: "range on boolean",
			tmpl: &schema.Template{Name: "t", Fields: []schema.FieldDefinition{
				{Name: "a", Type: schema.FieldBoolean, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "1"}}},
			}},
		},
		{
			name: "default does not coerce",
			tmpl: &schema.Template{Name: "t", Fields: []schema.FieldDefinition{
				{Name: "a", Type: schema.FieldDate, Default: "someday"},
			}},
		},
		{
			name: "enum value does not coerce",
			tmpl: &schema.Template{Name: "t", Fields: []schema.FieldDefinition{
				{Name: "a", Type: schema.FieldInteger, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"1", "two"}}}},
			}},
		},
		{
			name: "check compares incompatible types",
			tmpl: &schema.Template{
				Name: "t",
				Fields: []schema.FieldDefinition{
					{Name: "a", Type: schema.FieldDate},
					{Name: "b", Type: schema.FieldInteger},
				},
				Checks: []schema.Check{{Field: "a", Op: "<", Other: "b"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.tmpl)
			require.Error(t, err)
			assert.True(t, errors.Is(err, schema.ErrInvalidTemplate), "got %v", err)
		})
	}
}

func TestClean_Normalisation(t *testing.T) {
	tmpl := &schema.Template{
		Name: "people",
		Fields: []schema.FieldDefinition{
			{Name: "Code", Type: schema.FieldText, Case: schema.CaseUpper, Nullable: true},
			{Name: "City", Type: schema.FieldText, Case: schema.CaseTitle, Nullable: true, Aliases: []string{"Town"}},
			{Name: "Amount", Type: schema.FieldDecimal, Nullable: true},
			{Name: "Count", Type: schema.FieldInteger, Nullable: true},
			{Name: "Flag", Type: schema.FieldBoolean, Nullable: true, Truthy: []string{"active"}, Falsy: []string{"inactive"}},
		},
	}
	p := mustPipeline(t, tmpl)

	out := p.Clean([]Row{rawRow(
		"  code ", `="ab-1"`,
		"TOWN", "new york",
		"amount", "($1,234.50)",
		"count", "1,000",
		"flag", "Active",
	)})
	require.Len(t, out, 1)
	r := out[0]

	assert.Equal(t, "AB-1", r.Value("Code"))
	assert.Equal(t, "New York", r.Value("City"))
	assert.Equal(t, "-1234.50", displayValue(r.Value("Amount")))
	assert.Equal(t, int64(1000), r.Value("Count"))
	assert.Equal(t, true, r.Value("Flag"))
}

func TestClean_NullTokens(t *testing.T) {
	tmpl := customersTemplate()

	p := mustPipeline(t, tmpl)
	out := p.Clean([]Row{rawRow("id", "1", "name", "N/A", "signup_date", "null", "active", " ")})
	assert.Nil(t, out[0].Value("name"))
	assert.Nil(t, out[0].Value("signup_date"))
	assert.Nil(t, out[0].Value("active"))

	custom := mustPipeline(t, tmpl, WithNullTokens([]string{"", "?"}))
	out = custom.Clean([]Row{rawRow("id", "1", "name", "N/A", "signup_date", "?")})
	assert.Equal(t, "N/A", out[0].Value("name"))
	assert.Nil(t, out[0].Value("signup_date"))
}

func TestClean_WordNullTokensSkipText(t *testing.T) {
	tmpl := customersTemplate()
	tmpl.Fields[1].Rules = []schema.Rule{{Kind: schema.RuleRequired}}
	p := mustPipeline(t, tmpl)

	res, err := p.Run([]Row{
		rawRow("id", "1", "name", "Na", "signup_date", "none", "active", "-"),
		rawRow("id", "2", "name", "None", "signup_date", "NaN", "active", "nil"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Rejections)
	require.Len(t, res.Statements, 2)
	assert.Equal(t, "INSERT INTO customers (id, name, signup_date, active) VALUES (1, 'Na', NULL, NULL);", res.Statements[0])
	assert.Equal(t, "INSERT INTO customers (id, name, signup_date, active) VALUES (2, 'None', NULL, NULL);", res.Statements[1])

	// An explicit set is taken literally for every field.
	custom := mustPipeline(t, tmpl, WithNullTokens([]string{"none"}))
	out := custom.Clean([]Row{rawRow("id", "1", "name", "None", "active", "-")})
	assert.Nil(t, out[0].Value("name"))
	assert.Equal(t, "-", out[0].Value("active"))
}

func TestClean_MissingColumnsAreNull(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	out := p.Clean([]Row{rawRow("id", "4")})
	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].Len())
	assert.Nil(t, out[0].Value("name"))

	v, ok := out[0].Get("active")
	assert.True(t, ok, "missing column still has an explicit cell")
	assert.Nil(t, v)
}

func TestClean_KeepsUncoercibleText(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	out := p.Clean([]Row{rawRow("id", " 12x ", "active", "perhaps")})
	assert.Equal(t, "12x", out[0].Value("id"))
	assert.Equal(t, "perhaps", out[0].Value("active"))
}

func TestGenerateSQL_TypeMismatchIsInternal(t *testing.T) {
	p := mustPipeline(t, customersTemplate())

	var r Row
	r.Set("id", "not-an-int")
	_, err := p.GenerateSQL([]Row{r})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInternal))
}

func TestScript_ReplaysAgainstSQLite(t *testing.T) {
	tmpl := customersTemplate()
	tmpl.Fields = append(tmpl.Fields, schema.FieldDefinition{Name: "Balance $", Type: schema.FieldDecimal, Nullable: true})
	p := mustPipeline(t, tmpl)

	res, err := p.Run([]Row{
		rawRow("id", "1", "name", "O'Brien", "signup_date", "3/4/2024", "active", "1", "balance $", "$10.50"),
		rawRow("id", "2", "name", "Zoë", "active", "no", "balance $", "(2)"),
		rawRow("id", "", "name", "rejected"),
	})
	require.NoError(t, err)
	require.Len(t, res.Statements, 2)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(p.CreateTableSQL())
	require.NoError(t, err)
	_, err = db.Exec(Script(res.Statements))
	require.NoError(t, err)

	rows, err := db.Query(`SELECT id, name, signup_date, active FROM customers ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	type rec struct {
		id     int64
		name   string
		date   sql.NullString
		active bool
	}
	var got []rec
	for rows.Next() {
		var r rec
		require.NoError(t, rows.Scan(&r.id, &r.name, &r.date, &r.active))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, 2)
	assert.Equal(t, rec{1, "O'Brien", sql.NullString{String: "2024-03-04", Valid: true}, true}, got[0])
	assert.Equal(t, rec{2, "Zoë", sql.NullString{}, false}, got[1])

	var balance string
	require.NoError(t, db.QueryRow(`SELECT CAST("balance" AS TEXT) FROM customers WHERE id = 2`).Scan(&balance))
	assert.Equal(t, "-2", balance)
}
