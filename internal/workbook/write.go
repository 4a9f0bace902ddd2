package workbook

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// Write renders rows as a single-sheet table: one header row of columns,
// then one row per entry with its values in column order. Values missing
// from a row are written as empty cells.
func Write(w io.Writer, format Format, columns []string, rows []core.Row) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, columns, rows)
	case FormatXLSX:
		return writeXLSX(w, columns, rows)
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, columns []string, rows []core.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for _, r := range rows {
		for i, col := range columns {
			record[i] = r.Text(col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.Line(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, columns []string, rows []core.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for n, r := range rows {
		cells := make([]any, len(columns))
		for i, col := range columns {
			cells[i] = cellValue(r.Value(col))
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", n+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// cellValue maps a cleaned value onto a type excelize stores natively.
// Decimals become numbers; Excel keeps doubles only.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, int64, bool:
		return x
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		s := core.DecimalString(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case time.Time:
		return x.Format(schema.CanonicalDateLayout)
	default:
		return fmt.Sprint(x)
	}
}
