package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/bmh-lims/lims/pkg/core"
)

// ReadCSV parses comma-separated text with a header row. Every cell is a string.
func ReadCSV(r io.Reader) (*core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &core.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	h, err := newHeader(first)
	if err != nil {
		return nil, err
	}

	t := &core.Table{Columns: h.columns()}
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", line, err)
		}
		values := make([]any, len(record))
		for i, v := range record {
			values[i] = v
		}
		if row, ok := h.row(line, values); ok {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}
