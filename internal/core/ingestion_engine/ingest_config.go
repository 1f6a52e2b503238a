package ingestion_engine

import (
	"github.com/markdave123-py/docchat/internal/core"
	"go.uber.org/zap"
)

// DefaultMaxPages is the page cap applied when ExtractConfig leaves MaxPages unset.
const DefaultMaxPages = 50

// ExtractConfig tunes the extractor.
//
// MaxPages:       pages read per document; later pages are silently skipped.
// UseReadability: passed to docconv for HTML inputs.
type ExtractConfig struct {
	MaxPages       int
	UseReadability bool
}

// DocumentExtractor implements core.DocumentExtractor, routing each upload to a parser
// by media type.
type DocumentExtractor struct {
	cfg    *ExtractConfig
	pdf    core.DocumentParser
	office core.DocumentParser
	logger *zap.Logger
}

// PDFParser implements core.DocumentParser with pdfcpu validation and ledongthuc/pdf text.
type PDFParser struct{}

// DocconvParser implements core.DocumentParser for non-PDF formats using sajari/docconv.
// The whole document is exposed as a single page.
type DocconvParser struct {
	useReadability bool
}
