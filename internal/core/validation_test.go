package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

func validateOne(t *testing.T, f schema.FieldDefinition, value any) []Violation {
	t.Helper()
	p := mustPipeline(t, &schema.Template{Name: "t", Fields: []schema.FieldDefinition{f}})
	var r Row
	r.Set(f.Name, value)
	_, violations := p.ValidateRow(p.Clean([]Row{r})[0])
	return violations
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name     string
		field    schema.FieldDefinition
		value    any
		wantRule string // "" means valid
		wantMsg  string
	}{
		{
			name:  "integer in range",
			field: schema.FieldDefinition{Name: "qty", Type: schema.FieldInteger, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "1", Max: "10"}}},
			value: "10",
		},
		{
			name:     "integer below range",
			field:    schema.FieldDefinition{Name: "qty", Type: schema.FieldInteger, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "1", Max: "10"}}},
			value:    "0",
			wantRule: RuleRange,
			wantMsg:  "must be >= 1",
		},
		{
			name:     "decimal above range",
			field:    schema.FieldDefinition{Name: "price", Type: schema.FieldDecimal, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Max: "99.99"}}},
			value:    "$100.00",
			wantRule: RuleRange,
			wantMsg:  "must be <= 99.99",
		},
		{
			name:     "date before minimum",
			field:    schema.FieldDefinition{Name: "d", Type: schema.FieldDate, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "2020-01-01"}}},
			value:    "12/31/2019",
			wantRule: RuleRange,
			wantMsg:  "must be on or after 2020-01-01",
		},
		{
			name:     "text too long",
			field:    schema.FieldDefinition{Name: "code", Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Max: "3"}}},
			value:    "ABCD",
			wantRule: RuleRange,
			wantMsg:  "length must be <= 3",
		},
		{
			name:  "text length counts runes",
			field: schema.FieldDefinition{Name: "code", Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Max: "3"}}},
			value: "äöü",
		},
		{
			name:     "regex mismatch",
			field:    schema.FieldDefinition{Name: "email", Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRegex, Pattern: `^[^@]+@[^@]+$`}}},
			value:    "nobody",
			wantRule: RuleRegex,
			wantMsg:  "does not match pattern ^[^@]+@[^@]+$",
		},
		{
			name:     "enum mismatch",
			field:    schema.FieldDefinition{Name: "status", Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"open", "closed"}}}},
			value:    "Open",
			wantRule: RuleEnum,
			wantMsg:  "must be one of: open, closed",
		},
		{
			name:  "enum case insensitive",
			field: schema.FieldDefinition{Name: "status", Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"open", "closed"}, CaseInsensitive: true}}},
			value: "Open",
		},
		{
			name:  "integer enum normalises values",
			field: schema.FieldDefinition{Name: "tier", Type: schema.FieldInteger, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"1", "2"}}}},
			value: "2.0",
		},
		{
			name:  "decimal enum compares by value",
			field: schema.FieldDefinition{Name: "rate", Type: schema.FieldDecimal, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"1.5", "2"}}}},
			value: "1.50",
		},
		{
			name:  "decimal enum matches integral value",
			field: schema.FieldDefinition{Name: "rate", Type: schema.FieldDecimal, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"1.5", "2"}}}},
			value: "2.000",
		},
		{
			name:     "decimal enum mismatch",
			field:    schema.FieldDefinition{Name: "rate", Type: schema.FieldDecimal, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleEnum, Values: []string{"1.5", "2"}}}},
			value:    "1.05",
			wantRule: RuleEnum,
			wantMsg:  "must be one of: 1.5, 2",
		},
		{
			name:     "type failure precedes rules",
			field:    schema.FieldDefinition{Name: "qty", Type: schema.FieldInteger, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "1"}}},
			value:    "1.5",
			wantRule: RuleType,
			wantMsg:  "invalid integer format",
		},
		{
			name:     "non-nullable without default",
			field:    schema.FieldDefinition{Name: "qty", Type: schema.FieldInteger},
			value:    "",
			wantRule: RuleNullable,
			wantMsg:  "null value not allowed",
		},
		{
			name:  "non-nullable with default is corrected",
			field: schema.FieldDefinition{Name: "qty", Type: schema.FieldInteger, Default: "0"},
			value: nil,
		},
		{
			name:     "required ignores default",
			field:    schema.FieldDefinition{Name: "qty", Type: schema.FieldInteger, Default: "0", Rules: []schema.Rule{{Kind: schema.RuleRequired}}},
			value:    "n/a",
			wantRule: RuleRequired,
			wantMsg:  "required field is empty",
		},
		{
			name:     "boolean type failure",
			field:    schema.FieldDefinition{Name: "flag", Type: schema.FieldBoolean, Nullable: true},
			value:    "maybe",
			wantRule: RuleType,
			wantMsg:  "invalid boolean value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := validateOne(t, tt.field, tt.value)
			if tt.wantRule == "" {
				assert.Empty(t, violations)
				return
			}
			require.Len(t, violations, 1)
			assert.Equal(t, tt.field.Name, violations[0].Field)
			assert.Equal(t, tt.wantRule, violations[0].Rule)
			assert.Equal(t, tt.wantMsg, violations[0].Message)
		})
	}
}

func TestValidate_ShortCircuitsWithinFieldOnly(t *testing.T) {
	tmpl := &schema.Template{
		Name: "t",
		Fields: []schema.FieldDefinition{
			{Name: "code", Nullable: true, Rules: []schema.Rule{
				{Kind: schema.RuleRange, Max: "2"},
				{Kind: schema.RuleEnum, Values: []string{"A"}},
			}},
			{Name: "qty", Type: schema.FieldInteger, Nullable: true, Rules: []schema.Rule{{Kind: schema.RuleRange, Min: "1"}}},
		},
	}
	p := mustPipeline(t, tmpl)

	_, violations := p.ValidateRow(p.Clean([]Row{rawRow("code", "ZZZ", "qty", "0")})[0])
	require.Len(t, violations, 2)
	assert.Equal(t, "code", violations[0].Field)
	assert.Equal(t, RuleRange, violations[0].Rule)
	assert.Equal(t, "qty", violations[1].Field)
}

func TestValidate_RowChecks(t *testing.T) {
	tmpl := &schema.Template{
		Name: "orders",
		Fields: []schema.FieldDefinition{
			{Name: "start", Type: schema.FieldDate, Nullable: true},
			{Name: "end", Type: schema.FieldDate, Nullable: true},
			{Name: "min_qty", Type: schema.FieldInteger, Nullable: true},
			{Name: "max_qty", Type: schema.FieldDecimal, Nullable: true},
		},
		Checks: []schema.Check{
			{Field: "start", Op: "<=", Other: "end"},
			{Field: "min_qty", Op: "<", Other: "max_qty"},
		},
	}
	p := mustPipeline(t, tmpl)

	tests := []struct {
		name string
		row  Row
		want []string // violating fields
	}{
		{name: "all satisfied", row: rawRow("start", "2024-01-01", "end", "2024-02-01", "min_qty", "1", "max_qty", "2.5")},
		{name: "dates reversed", row: rawRow("start", "2024-03-01", "end", "2024-02-01"), want: []string{"start"}},
		{name: "numbers equal", row: rawRow("min_qty", "3", "max_qty", "3.0"), want: []string{"min_qty"}},
		{name: "null operand skips check", row: rawRow("start", "2024-03-01")},
		{name: "type failure skips check", row: rawRow("start", "soon", "end", "2024-02-01"), want: []string{"start"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, violations := p.ValidateRow(p.Clean([]Row{tt.row})[0])
			var got []string
			for _, v := range violations {
				got = append(got, v.Field)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_CompareMessage(t *testing.T) {
	tmpl := &schema.Template{
		Name: "t",
		Fields: []schema.FieldDefinition{
			{Name: "a", Type: schema.FieldInteger, Nullable: true},
			{Name: "b", Type: schema.FieldInteger, Nullable: true},
		},
		Checks: []schema.Check{{Field: "a", Op: ">", Other: "b"}},
	}
	p := mustPipeline(t, tmpl)

	_, violations := p.ValidateRow(p.Clean([]Row{rawRow("a", "1", "b", "2")})[0])
	require.Len(t, violations, 1)
	assert.Equal(t, Violation{Field: "a", Rule: RuleCompare, Value: "1", Message: "must be > b (2)", Code: CodeCheckFailed}, violations[0])
}
