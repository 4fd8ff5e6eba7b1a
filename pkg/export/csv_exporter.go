package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter writes the header line followed by one line per row. Titles are dropped.
type CSVExporter struct {
	comma rune
}

// NewCSVExporter builds a comma separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{comma: ','}
}

// Render encodes the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv: %w", errNoHeaders)
	}
	lines := make([][]string, 0, len(data.Rows)+1)
	lines = append(lines, data.Headers)
	for _, cells := range data.Records() {
		lines = append(lines, cells)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = e.comma
	if err := w.WriteAll(lines); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
