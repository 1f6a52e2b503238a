package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/markdave123-py/docchat/internal/core"
	"github.com/markdave123-py/docchat/internal/models"
	"go.uber.org/zap"
)

var _ core.DocumentExtractor = (*DocumentExtractor)(nil)

var pdfMagic = []byte("%PDF")

// officeTypes are handled by docconv without external binaries. rtf and doc are left out
// because docconv shells out to unrtf and wvText for them.
var officeTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.oasis.opendocument.text":                                   true,
	"text/html":       true,
	"text/xml":        true,
	"application/xml": true,
	"text/plain":      true,
}

// NewDocumentExtractor wires the extractor. Nil parsers fall back to the library-backed
// defaults.
func NewDocumentExtractor(cfg *ExtractConfig, pdfParser, officeParser core.DocumentParser, logger *zap.Logger) *DocumentExtractor {
	if cfg == nil {
		cfg = &ExtractConfig{}
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if pdfParser == nil {
		pdfParser = NewPDFParser()
	}
	if officeParser == nil {
		officeParser = NewDocconvParser(cfg.UseReadability)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentExtractor{cfg: cfg, pdf: pdfParser, office: officeParser, logger: logger}
}

// Extract reads up to MaxPages pages in document order. Any parser failure aborts the
// whole extraction; no partial document is returned.
func (e *DocumentExtractor) Extract(ctx context.Context, data []byte, contentType string) (*models.ExtractedDocument, error) {
	parser, mediaType, err := e.parserFor(data, contentType)
	if err != nil {
		return nil, &core.ExtractionError{Err: err}
	}

	doc, err := parser.Open(data, mediaType)
	if err != nil {
		return nil, &core.ExtractionError{Err: err}
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			e.logger.Warn("closing parsed document", zap.Error(cerr))
		}
	}()

	total := doc.NumPages()
	limit := min(total, e.cfg.MaxPages)

	out := &models.ExtractedDocument{
		Pages:      make([]models.Page, 0, limit),
		TotalPages: total,
	}
	for n := 1; n <= limit; n++ {
		if err := ctx.Err(); err != nil {
			return nil, &core.ExtractionError{Err: err}
		}
		text, err := doc.PageText(n)
		if err != nil {
			return nil, &core.ExtractionError{Err: fmt.Errorf("page %d: %w", n, err)}
		}
		out.Pages = append(out.Pages, models.Page{Number: n, Text: text})
	}

	if out.Truncated() {
		e.logger.Debug("document truncated at page cap",
			zap.Int("total_pages", total), zap.Int("max_pages", e.cfg.MaxPages))
	}
	return out, nil
}

// parserFor picks a parser. PDF magic bytes win over the declared type; unknown or generic
// types are treated as PDF.
func (e *DocumentExtractor) parserFor(data []byte, contentType string) (core.DocumentParser, string, error) {
	mediaType := normalizeMediaType(contentType)

	switch {
	case bytes.HasPrefix(data, pdfMagic), mediaType == "application/pdf":
		return e.pdf, "application/pdf", nil
	case mediaType == "", mediaType == "application/octet-stream":
		return e.pdf, "application/pdf", nil
	case officeTypes[mediaType]:
		return e.office, mediaType, nil
	default:
		return nil, "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mediaType)
	}
}

func normalizeMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	return mt
}
