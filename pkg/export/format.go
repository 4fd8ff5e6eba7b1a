package export

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Format names a supported tabular export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

var errNoHeaders = errors.New("dataset has no headers")

// Records yields each row as cells ordered by Headers. Missing cells are empty.
func (d Dataset) Records() iter.Seq2[int, []string] {
	return func(yield func(int, []string) bool) {
		for i, row := range d.Rows {
			cells := make([]string, len(d.Headers))
			for j, h := range d.Headers {
				cells[j] = row[h]
			}
			if !yield(i, cells) {
				return
			}
		}
	}
}

// ParseFormat normalises a query value into a Format.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Render dispatches to the exporter matching format.
func Render(format Format, data Dataset) ([]byte, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter().Render(data)
	case FormatPDF:
		return NewPDFExporter().Render(data)
	case FormatXLSX:
		return NewXLSXExporter().Render(data)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
