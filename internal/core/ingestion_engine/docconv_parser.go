package ingestion_engine

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docchat/internal/core"
)

var _ core.DocumentParser = (*DocconvParser)(nil)

func NewDocconvParser(useReadability bool) *DocconvParser {
	return &DocconvParser{useReadability: useReadability}
}

// Open converts the whole document eagerly; docconv has no page model.
func (p *DocconvParser) Open(data []byte, mediaType string) (core.ParsedDocument, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mediaType, p.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: extraction failed for content type '%s': %w", mediaType, err)
	}
	return &singlePageDocument{text: res.Body}, nil
}

type singlePageDocument struct {
	text string
}

func (d *singlePageDocument) NumPages() int { return 1 }

func (d *singlePageDocument) PageText(n int) (string, error) {
	if n != 1 {
		return "", fmt.Errorf("page %d out of range", n)
	}
	return d.text, nil
}

func (d *singlePageDocument) Close() error { return nil }
