// Package extract converts raw document blobs into plain-text spans ready
// for chunking. Extractors are selected by media type through a registry so
// new formats can be added without touching the indexing loop.
package extract

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedFormat is returned by Registry.Lookup when no extractor is
// registered for a media type. The indexer records it per-document and
// moves on.
var ErrUnsupportedFormat = errors.New("unsupported media type")

// ExtractionError wraps a failure inside an extractor that ran but could
// not produce text (corrupt file, unreadable stream). The underlying cause
// is preserved for the document's error annotation.
type ExtractionError struct {
	MediaType string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s content: %v", e.MediaType, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Span is a contiguous run of extracted text with optional positional
// metadata. Page is 1-based; 0 means the source has no page structure.
type Span struct {
	Text string
	Page int
}

// Extractor converts a raw content blob of a declared media type into text
// spans.
type Extractor interface {
	Extract(content []byte, mediaType string) ([]Span, error)
}

// Registry maps media types to extractors.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// DefaultRegistry returns a registry with the standard extractors wired:
// plain text and HTML, PDF, and OCR-backed images.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	text := NewTextExtractor()
	r.Register("text/plain", text)
	r.Register("text/html", text)
	r.Register("application/pdf", NewPDFExtractor())
	image := NewImageExtractor()
	r.Register("image/jpeg", image)
	r.Register("image/png", image)
	return r
}

// Register adds or replaces the extractor for a media type.
func (r *Registry) Register(mediaType string, e Extractor) {
	r.extractors[mediaType] = e
}

// Lookup returns the extractor for a media type, or ErrUnsupportedFormat.
func (r *Registry) Lookup(mediaType string) (Extractor, error) {
	e, ok := r.extractors[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}
	return e, nil
}

// MediaTypes returns the registered media types in sorted order. The
// indexer uses this to restrict its pending-document query to formats it
// can actually handle.
func (r *Registry) MediaTypes() []string {
	types := make([]string, 0, len(r.extractors))
	for mt := range r.extractors {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}
