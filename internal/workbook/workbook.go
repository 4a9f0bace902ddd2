// Package workbook reads spreadsheet input into raw rows and writes cleaned
// rows back out. CSV and XLSX (first sheet only) are supported; formulas,
// macros and additional sheets are ignored.
package workbook

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// ErrUnsupportedFormat is returned for inputs that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyFile is returned when an input has no header row.
var ErrEmptyFile = errors.New("empty file: no header row")

// MaxHeaderSearchRows bounds how far down the sheet the header row is
// searched for when a template is given.
var MaxHeaderSearchRows = 20

// Format identifies a tabular file kind.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat maps "csv" or "xlsx" (with or without a leading dot, any
// case) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf infers the format from a file name's extension.
func FormatOf(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return 0, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(name))
	}
	return ParseFormat(ext)
}

// Table is a raw sheet: the cleaned header row and the data rows keyed by
// header text. Blank rows are dropped; each row carries its 1-based source
// line.
type Table struct {
	Format  Format
	Headers []string
	Rows    []core.Row
	Bytes   int64 // bytes consumed from the source
}

// Records returns the data rows as string slices in header order.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Strings()
	}
	return out
}

// ReadOptions tunes header detection.
type ReadOptions struct {
	// Template, when set, makes the reader search the first
	// MaxHeaderSearchRows records for a row that matches the template's
	// fields well enough to resolve to it. Title rows above a header are
	// skipped that way. If no row qualifies, or no template is given, the
	// first non-blank record is the header.
	Template *schema.Template
}

// ReadFile opens path and reads it according to its extension.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, format, opts)
}

// Read parses r as the given format.
func Read(r io.Reader, format Format, opts ReadOptions) (*Table, error) {
	var (
		records [][]string
		lines   []int
		numeric map[cellPos]bool
		size    int64
		err     error
	)

	switch format {
	case FormatCSV:
		records, lines, size, err = readCSV(r)
	case FormatXLSX:
		records, lines, numeric, size, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	t, err := buildTable(records, lines, numeric, opts)
	if err != nil {
		return nil, err
	}
	t.Format = format
	t.Bytes = size
	return t, nil
}

func readCSV(r io.Reader) ([][]string, []int, int64, error) {
	src := wrapCSVSource(r)

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, 0, fmt.Errorf("invalid csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return records, lines, src.n, nil
}

// cellPos addresses a cell by record and column index.
type cellPos struct{ row, col int }

func readXLSX(r io.Reader) ([][]string, []int, map[cellPos]bool, int64, error) {
	src := &countingReader{reader: r}

	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("invalid workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil, src.n, ErrEmptyFile
	}
	sheet := sheets[0]

	// Raw values keep dates as serial numbers instead of whatever display
	// format the cell carries.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("invalid workbook: sheet %q: %w", sheet, err)
	}

	lines := make([]int, len(rows))
	numeric := make(map[cellPos]bool)
	for i, row := range rows {
		lines[i] = i + 1
		for j, v := range row {
			if !serialCandidate(v) {
				continue
			}
			if isNumericCell(f, sheet, j+1, i+1) {
				numeric[cellPos{i, j}] = true
			}
		}
	}
	return rows, lines, numeric, src.n, nil
}

// serialCandidate reports whether a raw cell could be a stored number.
func serialCandidate(v string) bool {
	if v == "" {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// isNumericCell reports whether the cell at col, row (1-based) is stored as
// a number. Numbers typed as text carry a string cell type.
func isNumericCell(f *excelize.File, sheet string, col, row int) bool {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return false
	}
	return typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber
}

func buildTable(records [][]string, lines []int, numeric map[cellPos]bool, opts ReadOptions) (*Table, error) {
	start := findHeader(records, opts.Template)
	if start < 0 {
		return nil, ErrEmptyFile
	}

	headers := cleanCells(records[start])

	t := &Table{Headers: headers}
	for i := start + 1; i < len(records); i++ {
		rec := records[i]
		if isEmptyRow(rec) {
			continue
		}
		values := make([]any, len(headers))
		for j := range headers {
			switch {
			case j >= len(rec):
				values[j] = ""
			case numeric[cellPos{i, j}]:
				values[j] = core.NumericCell(rec[j])
			default:
				values[j] = rec[j]
			}
		}
		t.Rows = append(t.Rows, core.NewRow(headers, values).WithLine(lines[i]))
	}
	return t, nil
}

// findHeader returns the index of the header record, or -1 when every
// record is blank.
func findHeader(records [][]string, tmpl *schema.Template) int {
	if tmpl != nil {
		limit := min(MaxHeaderSearchRows, len(records))
		for i := 0; i < limit; i++ {
			if tmpl.HeaderScore(cleanCells(records[i])) >= schema.TemplateMatchThreshold {
				return i
			}
		}
	}

	for i, rec := range records {
		if !isEmptyRow(rec) {
			return i
		}
	}
	return -1
}

func cleanCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = core.CleanCell(c)
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
