package tabular

import (
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DefaultMaxSampleRows is the default number of data rows kept per sheet.
const DefaultMaxSampleRows = 200

// Option configures an extractor.
type Option func(*options)

type options struct {
	maxSampleRows int
}

// WithMaxSampleRows sets how many data rows per sheet are kept.
// Values below one are ignored.
func WithMaxSampleRows(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSampleRows = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{maxSampleRows: DefaultMaxSampleRows}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type sheet struct {
	name string
	rows [][]string
}

// render writes sheets in order and returns the text with its metadata.
func render(sheets []sheet, maxRows int) *domain.Extraction {
	var sb strings.Builder
	names := make([]string, 0, len(sheets))
	totalRows := 0
	truncated := false

	for _, s := range sheets {
		names = append(names, s.name)

		rows := nonEmptyRows(s.rows)
		if len(rows) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Sheet: ")
		sb.WriteString(s.name)
		sb.WriteString("\n")
		sb.WriteString(joinRow(rows[0]))

		data := rows[1:]
		totalRows += len(data)
		if len(data) > maxRows {
			data = data[:maxRows]
			truncated = true
		}
		for _, row := range data {
			sb.WriteString("\n")
			sb.WriteString(joinRow(row))
		}
	}

	text := sb.String()
	return &domain.Extraction{
		Text: text,
		Metadata: map[string]any{
			"sheet_count":         len(sheets),
			"sheet_names":         names,
			"row_count":           totalRows,
			"truncated":           truncated,
			domain.MetaHasContent: text != "",
		},
	}
}

func joinRow(row []string) string {
	cells := make([]string, len(row))
	for i, c := range row {
		cells[i] = strings.TrimSpace(c)
	}
	return strings.Join(cells, " | ")
}

func nonEmptyRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
