// Package docx extracts text from Office Open XML word processing files.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Extractor handles .docx files.
type Extractor struct{}

// New creates a new docx extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{"docx"}
}

// Extract returns paragraph text followed by table rows, one per line.
func (e *Extractor) Extract(_ context.Context, data []byte) (*domain.Extraction, error) {
	if len(data) == 0 {
		return &domain.Extraction{Metadata: map[string]any{domain.MetaHasContent: false}}, nil
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %w", domain.ErrCorruptFile, err)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrCorruptFile, documentPart)
	}

	var doc documentXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCorruptFile, documentPart, err)
	}

	text := doc.text()
	meta := map[string]any{
		"paragraph_count":     len(doc.Body.Paragraphs),
		"table_count":         len(doc.Body.Tables),
		domain.MetaHasContent: text != "",
	}

	// Core properties are optional; a broken part is ignored.
	if core, err := readPart(reader, corePart); err == nil && core != nil {
		var props coreXML
		if xml.Unmarshal(core, &props) == nil {
			if v := strings.TrimSpace(props.Title); v != "" {
				meta["title"] = v
			}
			if v := strings.TrimSpace(props.Creator); v != "" {
				meta["author"] = v
			}
		}
	}

	return &domain.Extraction{Text: text, Metadata: meta}, nil
}

// readPart returns the bytes of the named part, or nil if absent.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrCorruptFile, name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCorruptFile, name, err)
		}
		return content, nil
	}
	return nil, nil
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
		Tables     []table     `xml:"tbl"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
}

type table struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []paragraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

type coreXML struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

func (p paragraph) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

func (d *documentXML) text() string {
	var lines []string
	for _, p := range d.Body.Paragraphs {
		if s := strings.TrimSpace(p.text()); s != "" {
			lines = append(lines, s)
		}
	}

	for _, tbl := range d.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				parts := make([]string, 0, len(cell.Paragraphs))
				for _, p := range cell.Paragraphs {
					if s := strings.TrimSpace(p.text()); s != "" {
						parts = append(parts, s)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			if line := strings.TrimSpace(strings.Join(cells, " | ")); line != "" {
				lines = append(lines, line)
			}
		}
	}

	return strings.Join(lines, "\n")
}
