package tabular

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/bmh-lims/lims/pkg/core"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name of the sample submission template.
const DefaultSheet = "SSS-Template"

// ReadXLSX parses one worksheet of an xlsx workbook. Numeric cells become float64,
// date-formatted cells time.Time, boolean cells bool and everything else string.
func ReadXLSX(r io.Reader, sheet string) (*core.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet, err = pickSheet(f.GetSheetList(), sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &core.Table{}, nil
	}

	h, err := newHeader(rows[0])
	if err != nil {
		return nil, err
	}

	c := cellReader{f: f, sheet: sheet, styles: make(map[int]bool)}
	t := &core.Table{Columns: h.columns()}
	for i, cells := range rows[1:] {
		line := i + 1
		values := make([]any, len(cells))
		for col, raw := range cells {
			v, err := c.value(col+1, line+1, raw)
			if err != nil {
				return nil, err
			}
			values[col] = v
		}
		if row, ok := h.row(line, values); ok {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if want != "" && want != DefaultSheet {
		if !slices.Contains(sheets, want) {
			return "", fmt.Errorf("sheet %q not found (have %s)", want, strings.Join(sheets, ", "))
		}
		return want, nil
	}
	if slices.Contains(sheets, DefaultSheet) {
		return DefaultSheet, nil
	}
	return sheets[0], nil
}

type cellReader struct {
	f     *excelize.File
	sheet string
	// styles caches whether a style id formats a date.
	styles map[int]bool
}

func (c *cellReader) value(col, row int, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := c.f.GetCellType(c.sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell %s: %w", cell, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		isDate, err := c.isDateCell(cell)
		if err != nil {
			return nil, err
		}
		if isDate {
			if tm, err := excelize.ExcelDateToTime(n, false); err == nil {
				return tm, nil
			}
		}
		return n, nil
	}
	return raw, nil
}

func (c *cellReader) isDateCell(cell string) (bool, error) {
	id, err := c.f.GetCellStyle(c.sheet, cell)
	if err != nil {
		return false, fmt.Errorf("failed to read style of %s: %w", cell, err)
	}
	if isDate, ok := c.styles[id]; ok {
		return isDate, nil
	}
	style, err := c.f.GetStyle(id)
	if err != nil {
		return false, fmt.Errorf("failed to read style %d: %w", id, err)
	}
	isDate := isDateFormat(style.NumFmt, style.CustomNumFmt)
	c.styles[id] = isDate
	return isDate, nil
}

// isDateFormat recognizes the built-in date formats and custom formats with date tokens.
func isDateFormat(numFmt int, custom *string) bool {
	if (numFmt >= 14 && numFmt <= 22) || (numFmt >= 45 && numFmt <= 47) {
		return true
	}
	if custom == nil {
		return false
	}
	// Drop quoted literals and bracketed sections such as colors or locales.
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(*custom) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	f := b.String()
	return strings.ContainsAny(f, "yd") || strings.Contains(f, "mmm")
}
