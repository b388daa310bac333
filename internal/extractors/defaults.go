package extractors

import (
	"github.com/custodia-labs/kbase/internal/extractors/docx"
	"github.com/custodia-labs/kbase/internal/extractors/html"
	"github.com/custodia-labs/kbase/internal/extractors/markdown"
	"github.com/custodia-labs/kbase/internal/extractors/pdf"
	"github.com/custodia-labs/kbase/internal/extractors/plaintext"
	"github.com/custodia-labs/kbase/internal/extractors/tabular"
)

// NewDefaultRegistry returns a registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// RegisterDefaults registers all built-in extractors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(docx.NewLegacy())
	r.Register(tabular.NewCSV())
	r.Register(tabular.NewXLSX())
	r.Register(tabular.NewXLS())
	r.Register(pdf.New())
}
