package tabular

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/extrame/xls"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure XLSExtractor implements the interface.
var _ driven.Extractor = (*XLSExtractor)(nil)

// xlsCharset is used for BIFF5 workbooks that carry no code page.
const xlsCharset = "utf-8"

// XLSExtractor handles legacy BIFF Excel workbooks.
type XLSExtractor struct {
	opts options
}

// NewXLS creates a legacy Excel extractor.
func NewXLS(opts ...Option) *XLSExtractor {
	return &XLSExtractor{opts: buildOptions(opts)}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *XLSExtractor) SupportedExtensions() []string {
	return []string{"xls"}
}

// Extract renders every worksheet in workbook order.
func (e *XLSExtractor) Extract(ctx context.Context, data []byte) (*domain.Extraction, error) {
	if len(data) == 0 {
		return &domain.Extraction{Metadata: map[string]any{domain.MetaHasContent: false}}, nil
	}

	wb, err := openXLS(data)
	if err != nil {
		return nil, fmt.Errorf("%w: xls: %w", domain.ErrCorruptFile, err)
	}
	sheets, err := readBook(ctx, biffBook{wb})
	if err != nil {
		return nil, err
	}
	return render(sheets, e.opts.maxSampleRows), nil
}

// book is the part of a workbook the extractor reads.
type book interface {
	sheetCount() int
	sheet(i int) (name string, rows [][]string)
}

func readBook(ctx context.Context, b book) (sheets []sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("%w: xls: %v", domain.ErrCorruptFile, r)
		}
	}()

	n := b.sheetCount()
	sheets = make([]sheet, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, rows := b.sheet(i)
		sheets = append(sheets, sheet{name: name, rows: rows})
	}
	return sheets, nil
}

// openXLS parses the compound file. The parser panics on some truncated
// inputs.
func openXLS(data []byte) (wb *xls.WorkBook, err error) {
	defer func() {
		if r := recover(); r != nil {
			wb, err = nil, fmt.Errorf("parse: %v", r)
		}
	}()
	wb, err = xls.OpenReader(bytes.NewReader(data), xlsCharset)
	if err == nil && wb == nil {
		err = errors.New("parse: no workbook")
	}
	return wb, err
}

type biffBook struct {
	wb *xls.WorkBook
}

func (b biffBook) sheetCount() int {
	return b.wb.NumSheets()
}

func (b biffBook) sheet(i int) (string, [][]string) {
	ws := b.wb.GetSheet(i)
	if ws == nil {
		return "", nil
	}
	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for r := 0; r <= int(ws.MaxRow); r++ {
		row := ws.Row(r)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return ws.Name, rows
}
