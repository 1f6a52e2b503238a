package core

import (
	"context"

	"github.com/markdave123-py/docchat/internal/models"
)

// DocumentExtractor turns raw upload bytes into page-marked text.
type DocumentExtractor interface {
	// Extract parses data as the given content type. The contentType is a hint; an empty
	// or generic value falls back to PDF.
	Extract(ctx context.Context, data []byte, contentType string) (*models.ExtractedDocument, error)
}

// DocumentParser opens one document format.
type DocumentParser interface {
	Open(data []byte, mediaType string) (ParsedDocument, error)
}

// ParsedDocument is an open parser handle. Close must be called on every path.
type ParsedDocument interface {
	NumPages() int
	// PageText returns the plain text of page n (1-based).
	PageText(n int) (string, error)
	Close() error
}
