// Package tabular reads uploaded spreadsheets into core.Tables.
//
// Readers trim header names, skip columns with an empty header and skip rows
// whose cells are all empty. Row line numbers count data rows in the source,
// blank rows included, so messages point at what the submitter sees.
package tabular

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmh-lims/lims/pkg/core"
)

// Format is a supported input file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName infers the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file type %q: expected .csv or .xlsx", filepath.Ext(name))
}

// Options tune how a file is read.
type Options struct {
	// Sheet names the worksheet to read. Empty selects DefaultSheet, then the first sheet.
	Sheet string
	// DuckDB, when set, reads CSV files with type inference instead of as text.
	DuckDB *DuckDBReader
}

// Read parses r in the given format.
func Read(r io.Reader, format Format, opts Options) (*core.Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r, opts.Sheet)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// ReadFile opens path and parses it according to its extension.
func ReadFile(ctx context.Context, path string, opts Options) (*core.Table, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV && opts.DuckDB != nil {
		return opts.DuckDB.ReadCSV(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f, format, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// header maps source column positions to trimmed names. Empty names map to "".
type header []string

func newHeader(cells []string) (header, error) {
	h := make(header, len(cells))
	seen := make(map[string]bool, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		if name != "" && seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		h[i] = name
	}
	return h, nil
}

func (h header) columns() []string {
	var cols []string
	for _, name := range h {
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// row builds a RawRow from positional values. It reports false when every named cell is empty.
func (h header) row(line int, values []any) (core.RawRow, bool) {
	row := core.RawRow{Line: line, Values: make(map[string]any, len(h))}
	nonEmpty := false
	for i, name := range h {
		if name == "" {
			continue
		}
		var v any
		if i < len(values) {
			v = values[i]
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			v = nil
		}
		if v != nil {
			nonEmpty = true
		}
		row.Values[name] = v
	}
	return row, nonEmpty
}
