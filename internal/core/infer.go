package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// InferTemplate scaffolds a template from a header row and sample records.
// Each column gets the narrowest type every non-null sample coerces to, in
// the order integer, decimal, date, boolean, text. Columns without samples
// are text. Every inferred field is nullable and carries no rules; the result
// is a starting point for hand editing, not a contract.
func InferTemplate(name string, headers []string, samples [][]string) schema.Template {
	nulls := tokenSet(slices.Concat(DefaultNullTokens, DefaultTypedNullTokens)...)

	t := schema.Template{Name: name}
	seen := make(map[string]int, len(headers))

	for i, h := range headers {
		fieldName := strings.TrimSpace(h)
		if fieldName == "" {
			fieldName = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(fieldName)
		if n := seen[key]; n > 0 {
			fieldName = fmt.Sprintf("%s_%d", fieldName, n+1)
		}
		seen[key]++

		var values []string
		for _, rec := range samples {
			if i >= len(rec) {
				continue
			}
			s := CleanCell(rec[i])
			if _, isNull := nulls[strings.ToLower(s)]; isNull {
				continue
			}
			values = append(values, s)
		}

		t.Fields = append(t.Fields, schema.FieldDefinition{
			Name:     fieldName,
			Type:     inferType(values),
			Nullable: true,
		})
	}

	return t
}

func inferType(values []string) schema.FieldType {
	if len(values) == 0 {
		return schema.FieldText
	}

	candidates := []struct {
		typ schema.FieldType
		ok  func(string) bool
	}{
		{schema.FieldInteger, func(s string) bool { _, ok := ToInteger(s); return ok }},
		{schema.FieldDecimal, func(s string) bool { _, ok := ToDecimal(s); return ok }},
		{schema.FieldDate, func(s string) bool { _, ok := ToDate(s, nil); return ok && !isNumeric(s) }},
		{schema.FieldBoolean, func(s string) bool { _, ok := ToBool(s, nil, nil); return ok }},
	}

	for _, c := range candidates {
		all := true
		for _, v := range values {
			if !c.ok(v) {
				all = false
				break
			}
		}
		if all {
			return c.typ
		}
	}
	return schema.FieldText
}

// isNumeric keeps plain numbers from being read as Excel serial dates.
func isNumeric(s string) bool {
	_, ok := ToDecimal(s)
	return ok
}
