package tabular

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure XLSXExtractor implements the interface.
var _ driven.Extractor = (*XLSXExtractor)(nil)

// XLSXExtractor handles Excel workbooks.
type XLSXExtractor struct {
	opts options
}

// NewXLSX creates an Excel extractor.
func NewXLSX(opts ...Option) *XLSXExtractor {
	return &XLSXExtractor{opts: buildOptions(opts)}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *XLSXExtractor) SupportedExtensions() []string {
	return []string{"xlsx"}
}

// Extract renders every sheet of the workbook in workbook order.
func (e *XLSXExtractor) Extract(ctx context.Context, data []byte) (*domain.Extraction, error) {
	if len(data) == 0 {
		return &domain.Extraction{Metadata: map[string]any{domain.MetaHasContent: false}}, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: xlsx: %w", domain.ErrCorruptFile, err)
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	names := f.GetSheetList()
	sheets := make([]sheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %w", domain.ErrCorruptFile, name, err)
		}
		sheets = append(sheets, sheet{name: name, rows: rows})
	}

	return render(sheets, e.opts.maxSampleRows), nil
}
