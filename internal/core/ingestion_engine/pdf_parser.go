package ingestion_engine

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/markdave123-py/docchat/internal/core"
)

var _ core.DocumentParser = (*PDFParser)(nil)

func NewPDFParser() *PDFParser {
	// pdfcpu would otherwise create a config dir under the user's home.
	api.DisableConfigDir()
	return &PDFParser{}
}

// Open validates the structure with pdfcpu before handing the bytes to ledongthuc/pdf,
// whose reader panics on some malformed inputs.
func (p *PDFParser) Open(data []byte, _ string) (doc core.ParsedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	total, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	return &pdfDocument{reader: r, pages: pageCount(r.NumPage(), total)}, nil
}

// pageCount prefers the text reader's count and falls back to pdfcpu's when the page
// tree's /Count is missing.
func pageCount(readerPages, validatedPages int) int {
	if readerPages > 0 {
		return readerPages
	}
	return validatedPages
}

type pdfDocument struct {
	reader *pdf.Reader
	pages  int
}

func (d *pdfDocument) NumPages() int { return d.pages }

func (d *pdfDocument) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read page text: %v", r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return text, nil
}

// Close drops the reader; the bytes live in memory so there is nothing else to release.
func (d *pdfDocument) Close() error {
	d.reader = nil
	return nil
}
