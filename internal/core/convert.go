package core

// convert.go provides the coercion policy shared by the cleaner, the
// validator and the formatter.
//
// These functions handle the messy reality of spreadsheet data:
//   - Multiple date formats (US, EU, ISO, etc.) and Excel serial dates
//     from numeric workbook cells
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Every To* function reports ok=false for input it cannot coerce; callers
// decide whether that is an error.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// serialDateRegex matches the day numbers Excel stores for dates.
var serialDateRegex = regexp.MustCompile(`^\d{1,7}(\.\d+)?$`)

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// nowFunc is replaced in tests to pin the two-digit year pivot.
var nowFunc = time.Now

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		schema.CanonicalDateLayout, "2006-1-2",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006/01/02", "2006/1/2", "2006.01.02",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2-Jan-2006",
		"20060102",
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04",
	}
)

var (
	defaultTruthy = tokenSet("true", "t", "yes", "y", "1", "on")
	defaultFalsy  = tokenSet("false", "f", "no", "n", "0", "off")
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Normalises to Unicode NFC and replaces non-breaking spaces
// - Trims whitespace
// - Removes Excel formula prefix (="..." or a bare leading '=')
// - Removes one pair of matching surrounding quotes
// - Removes the Excel text prefix (a lone leading ')
func CleanCell(s string) string {
	if !isASCII(s) {
		s = norm.NFC.String(s)
		s = strings.ReplaceAll(s, "\u00a0", " ")
	}
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	} else if strings.HasPrefix(s, "'") && strings.Count(s, "'") == 1 {
		s = s[1:]
	}

	return strings.TrimSpace(s)
}

// ToDecimal converts a string to a valid pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format
// (parentheses for negative). Scientific notation is rejected.
func ToDecimal(s string) (pgtype.Numeric, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{}, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			return pgtype.Numeric{}, false
		}
		s = "-" + s
	}

	if !numericRegex.MatchString(s) || strings.ContainsAny(s, "eE") {
		return pgtype.Numeric{}, false
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil || !n.Valid || n.Int == nil {
		return pgtype.Numeric{}, false
	}
	return n, true
}

// ToInteger converts a string to int64 under the decimal policy. Values with
// a zero fractional part ("7.0") are accepted; anything else fractional is not.
func ToInteger(s string) (int64, bool) {
	n, ok := ToDecimal(s)
	if !ok {
		return 0, false
	}
	r := numericRat(n)
	if !r.IsInt() || !r.Num().IsInt64() {
		return 0, false
	}
	return r.Num().Int64(), true
}

// ToBool converts a string using the given token sets, falling back to the
// default sets when both are empty.
func ToBool(s string, truthy, falsy map[string]struct{}) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false, false
	}
	if len(truthy) == 0 && len(falsy) == 0 {
		truthy, falsy = defaultTruthy, defaultFalsy
	}
	if _, ok := truthy[s]; ok {
		return true, true
	}
	if _, ok := falsy[s]; ok {
		return false, true
	}
	return false, false
}

// ToDate parses a date string. Extra layouts are tried first, then the
// built-in 4-digit-year layouts, then 2-digit-year layouts with the pivot.
// The result is truncated to the calendar day in UTC. Bare numbers are not
// dates here; see ExcelSerialDate.
func ToDate(s string, extra []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range extra {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}

	pivotYear := nowFunc().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return dateOnly(t), true
		}
	}

	return time.Time{}, false
}

// ExcelSerialDate converts an Excel serial day number (1900 date system) to
// a date. Only numeric workbook cells should be read this way: in text
// sources a bare number such as 2024 is not a date.
func ExcelSerialDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if !serialDateRegex.MatchString(s) {
		return time.Time{}, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return dateOnly(t), true
}

// DecimalString renders a numeric with '.' as the decimal separator,
// independent of locale, preserving the stored scale.
func DecimalString(n pgtype.Numeric) string {
	if n.Int == nil {
		return "0"
	}

	digits := new(big.Int).Abs(n.Int).String()
	exp := int(n.Exp)

	var s string
	if exp >= 0 {
		s = digits + strings.Repeat("0", exp)
		if digits == "0" {
			s = "0"
		}
	} else {
		frac := -exp
		if len(digits) <= frac {
			digits = strings.Repeat("0", frac-len(digits)+1) + digits
		}
		s = digits[:len(digits)-frac] + "." + digits[len(digits)-frac:]
	}

	if n.Int.Sign() < 0 {
		s = "-" + s
	}
	return s
}

// numericRat returns the exact rational value of n.
func numericRat(n pgtype.Numeric) *big.Rat {
	if n.Int == nil {
		return new(big.Rat)
	}
	r := new(big.Rat).SetInt(n.Int)
	if n.Exp == 0 {
		return r
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(n.Exp))), nil)
	if n.Exp > 0 {
		return r.Mul(r, new(big.Rat).SetInt(scale))
	}
	return r.Quo(r, new(big.Rat).SetInt(scale))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func tokenSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
