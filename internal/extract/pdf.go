package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts text from PDF documents page by page, preserving
// 1-based page numbers for the chunk metadata.
type PDFExtractor struct{}

// NewPDFExtractor returns a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns one span per page that yields text. Empty pages are
// skipped; a page that fails to parse is skipped rather than failing the
// document, but a document where no page yields text is an extraction
// failure.
func (e *PDFExtractor) Extract(content []byte, mediaType string) (spans []Span, err error) {
	// The pdf package panics on some malformed inputs; convert that into
	// a regular extraction error so one corrupt file can't take down a
	// whole indexing cycle.
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = &ExtractionError{MediaType: mediaType, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ExtractionError{MediaType: mediaType, Err: err}
	}

	total := reader.NumPage()
	if total == 0 {
		return nil, &ExtractionError{MediaType: mediaType, Err: fmt.Errorf("document has no pages")}
	}

	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = normalizeWhitespace(text)
		if text == "" {
			continue
		}
		spans = append(spans, Span{Text: text, Page: num})
	}

	if len(spans) == 0 {
		return nil, &ExtractionError{MediaType: mediaType, Err: fmt.Errorf("no extractable text in %d pages", total)}
	}
	return spans, nil
}
