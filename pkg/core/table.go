package core

// RawRow is one untyped input row: column name to raw cell value.
// Cell values are string, float64, int64, bool, time.Time or nil.
type RawRow struct {
	// Line is the 1-based position of the row in its source, header excluded.
	Line   int
	Values map[string]any
}

// Get returns the raw value of a column, or nil when absent.
func (r RawRow) Get(col string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[col]
}

// Table is an ordered sequence of rows sharing one header.
type Table struct {
	Columns []string
	Rows    []RawRow
}

// NewTable creates an empty table with the given header.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row built from values positioned like Columns.
// Missing trailing values are left absent.
func (t *Table) Append(values ...any) {
	row := RawRow{Line: len(t.Rows) + 1, Values: make(map[string]any, len(t.Columns))}
	for i, col := range t.Columns {
		if i < len(values) {
			row.Values[col] = values[i]
		}
	}
	t.Rows = append(t.Rows, row)
}

// HasColumn reports whether the header contains col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// SetColumn writes value into col on every row, adding col to the header if needed.
func (t *Table) SetColumn(col string, value any) {
	if !t.HasColumn(col) {
		t.Columns = append(t.Columns, col)
	}
	for i := range t.Rows {
		if t.Rows[i].Values == nil {
			t.Rows[i].Values = make(map[string]any)
		}
		t.Rows[i].Values[col] = value
	}
}

// DropColumns removes the named columns from the header and every row.
func (t *Table) DropColumns(cols ...string) {
	if len(cols) == 0 {
		return
	}
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	for _, row := range t.Rows {
		for c := range drop {
			delete(row.Values, c)
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
