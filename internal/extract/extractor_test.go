package extract

import (
	"errors"
	"testing"
)

type stubExtractor struct{}

func (stubExtractor) Extract(content []byte, mediaType string) ([]Span, error) {
	return []Span{{Text: "stub"}}, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("text/markdown", stubExtractor{})

	e, err := r.Lookup("text/markdown")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e == nil {
		t.Fatal("Lookup returned nil extractor")
	}
}

func TestRegistryLookupUnsupported(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Lookup("application/zip")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDefaultRegistryMediaTypes(t *testing.T) {
	r := DefaultRegistry()

	want := []string{"application/pdf", "image/jpeg", "image/png", "text/html", "text/plain"}
	got := r.MediaTypes()
	if len(got) != len(want) {
		t.Fatalf("MediaTypes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MediaTypes[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractionErrorUnwrap(t *testing.T) {
	cause := errors.New("truncated stream")
	err := &ExtractionError{MediaType: "application/pdf", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ExtractionError should unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("ExtractionError message is empty")
	}
}
