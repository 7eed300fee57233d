package extract

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func TestImageExtractorPlaceholderWithoutOCR(t *testing.T) {
	e := &ImageExtractor{ocrPath: ""}

	spans, err := e.Extract(pngBytes(t, 640, 480), "image/png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("expected exactly one placeholder span, got %d", len(spans))
	}
	text := spans[0].Text
	for _, expected := range []string{"image/png", "640x480", "OCR unavailable"} {
		if !strings.Contains(text, expected) {
			t.Errorf("placeholder missing %q: %q", expected, text)
		}
	}
}

func TestImageExtractorPlaceholderWhenOCRFails(t *testing.T) {
	// A bogus binary path makes the OCR invocation fail; the extractor
	// must degrade, not error.
	e := &ImageExtractor{ocrPath: "/nonexistent/tesseract"}

	spans, err := e.Extract(pngBytes(t, 100, 100), "image/png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("expected one placeholder span, got %d", len(spans))
	}
	if !strings.Contains(spans[0].Text, "OCR failed") {
		t.Errorf("placeholder should note the OCR failure: %q", spans[0].Text)
	}
}

func TestImageExtractorCorruptImage(t *testing.T) {
	e := &ImageExtractor{ocrPath: ""}

	_, err := e.Extract([]byte("not an image at all"), "image/jpeg")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError for corrupt image, got %v", err)
	}
}

func TestCleanOCRText(t *testing.T) {
	raw := "Pressure gauge reading\n|\nx\nnominal range 40-60 PSI\n\x00\x07\n"

	got := cleanOCRText(raw)
	if strings.Contains(got, "|") || strings.Contains(got, "\x00") {
		t.Errorf("noise survived cleaning: %q", got)
	}
	for _, expected := range []string{"Pressure gauge reading", "nominal range 40-60 PSI"} {
		if !strings.Contains(got, expected) {
			t.Errorf("cleaned text missing %q: %q", expected, got)
		}
	}
}
