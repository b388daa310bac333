// Package pdf extracts page text from PDF files in-process.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var pdfMagic = []byte("%PDF-")

// Extractor handles PDF documents.
type Extractor struct{}

// New creates a PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{"pdf"}
}

// Extract reads every page and joins the non-blank ones with a blank line.
// Pages that fail to decode are skipped; a file with no readable page is
// corrupt.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*domain.Extraction, error) {
	if len(data) == 0 {
		return &domain.Extraction{Metadata: map[string]any{domain.MetaHasContent: false}}, nil
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrCorruptFile)
	}

	reader, err := openReader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptFile, err)
	}

	total := reader.NumPage()
	var (
		pages  []string
		failed int
	)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader.Page(i))
		if err != nil {
			failed++
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if total > 0 && failed == total {
		return nil, fmt.Errorf("%w: no readable pages", domain.ErrCorruptFile)
	}

	text := strings.Join(pages, "\n\n")
	return &domain.Extraction{
		Text: text,
		Metadata: map[string]any{
			"page_count":          total,
			domain.MetaHasContent: text != "",
		},
	}, nil
}

// openReader parses the cross-reference table. The parser panics on some
// malformed inputs.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("parse pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(p pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("decode page: %v", r)
		}
	}()
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
