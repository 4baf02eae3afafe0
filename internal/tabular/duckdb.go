package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bmh-lims/lims/pkg/core"
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DuckDBReader reads CSV files through DuckDB's read_csv_auto, which infers
// numeric, boolean and date column types.
type DuckDBReader struct {
	db *sql.DB
}

// NewDuckDBReader opens an in-memory DuckDB database.
func NewDuckDBReader(ctx context.Context) (*DuckDBReader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return &DuckDBReader{db: db}, nil
}

// Close closes the DuckDB connection.
func (d *DuckDBReader) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// ReadCSV loads the CSV file at path with inferred column types.
func (d *DuckDBReader) ReadCSV(ctx context.Context, path string) (*core.Table, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	query := fmt.Sprintf("SELECT * FROM read_csv_auto('%s', header = true, all_varchar = false)",
		strings.ReplaceAll(path, "'", "''"))

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	h, err := newHeader(cols)
	if err != nil {
		return nil, err
	}

	t := &core.Table{Columns: h.columns()}
	for line := 1; rows.Next(); line++ {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", line, err)
		}
		for i, v := range values {
			values[i] = widen(v)
		}
		if row, ok := h.row(line, values); ok {
			t.Rows = append(t.Rows, row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return t, nil
}

// widen maps driver integer and float widths onto the int64/float64 cells of core.RawRow.
func widen(v any) any {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
