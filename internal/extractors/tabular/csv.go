package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/extractors/textenc"
)

// Ensure CSVExtractor implements the interface.
var _ driven.Extractor = (*CSVExtractor)(nil)

// csvSheetName labels the single block a delimited file produces.
const csvSheetName = "csv"

// CSVExtractor handles comma separated files.
type CSVExtractor struct {
	opts options
}

// NewCSV creates a CSV extractor.
func NewCSV(opts ...Option) *CSVExtractor {
	return &CSVExtractor{opts: buildOptions(opts)}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *CSVExtractor) SupportedExtensions() []string {
	return []string{"csv"}
}

// Extract decodes the file and renders it as a single sheet.
func (e *CSVExtractor) Extract(ctx context.Context, data []byte) (*domain.Extraction, error) {
	raw, enc, err := textenc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptFile, err)
	}
	if raw == "" {
		return &domain.Extraction{Metadata: map[string]any{
			"encoding":            enc,
			domain.MetaHasContent: false,
		}}, nil
	}

	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %w", domain.ErrCorruptFile, err)
		}
		rows = append(rows, record)
	}

	result := render([]sheet{{name: csvSheetName, rows: rows}}, e.opts.maxSampleRows)
	result.Metadata["encoding"] = enc
	return result, nil
}
