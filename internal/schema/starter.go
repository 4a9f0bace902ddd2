package schema

// Starter returns the sample templates written by "templates init". They
// cover each field type and rule kind so a new registry file has something
// to copy from.
func Starter() []Template {
	return []Template{
		{
			Name:         "customers",
			FilePatterns: []string{"customers*.xlsx", "customers*.csv"},
			Fields: []FieldDefinition{
				{Name: "id", Type: FieldInteger, Rules: []Rule{{Kind: RuleRequired}}},
				{Name: "name", Type: FieldText, Nullable: true, Case: CaseTitle, Aliases: []string{"account_name"}},
				{Name: "signup_date", Type: FieldDate, Nullable: true},
				{Name: "active", Type: FieldBoolean, Nullable: true},
			},
		},
		{
			Name:         "price_book",
			FilePatterns: []string{"price_book*"},
			Fields: []FieldDefinition{
				{Name: "price_book_name", Type: FieldText, Rules: []Rule{{Kind: RuleRequired}}},
				{Name: "product_code", Type: FieldText, Case: CaseUpper, Rules: []Rule{
					{Kind: RuleRequired},
					{Kind: RuleRegex, Pattern: `^[A-Z0-9-]+$`},
				}},
				{Name: "product_name", Type: FieldText, Nullable: true},
				{Name: "list_price", Type: FieldDecimal, Rules: []Rule{{Kind: RuleRange, Min: "0"}}},
			},
		},
		{
			Name:         "opportunity_lines",
			Table:        "opportunity_line",
			FilePatterns: []string{"opp_detail*", "opportunit*"},
			Fields: []FieldDefinition{
				{Name: "opportunity_id", Type: FieldText, Rules: []Rule{{Kind: RuleRequired}}},
				{Name: "account_name", Type: FieldText, Nullable: true},
				{Name: "deployment_type", Type: FieldText, Nullable: true, Rules: []Rule{
					{Kind: RuleEnum, Values: []string{"cloud", "on-prem", "hybrid"}, CaseInsensitive: true},
				}},
				{Name: "quantity", Type: FieldInteger, Default: "1", Rules: []Rule{{Kind: RuleRange, Min: "1"}}},
				{Name: "sales_price", Type: FieldDecimal, Nullable: true},
				{Name: "start_date", Type: FieldDate, Nullable: true},
				{Name: "end_date", Type: FieldDate, Nullable: true},
				{Name: "active_product", Type: FieldBoolean, Nullable: true},
			},
			Checks: []Check{{Field: "end_date", Op: ">=", Other: "start_date"}},
		},
	}
}
