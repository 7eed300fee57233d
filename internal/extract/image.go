package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
)

// minOCRText is the shortest OCR output considered usable. Anything below
// this is treated as noise and replaced with the placeholder description.
const minOCRText = 50

// ImageExtractor extracts text from images by invoking the tesseract
// binary. When tesseract is not installed, or OCR produces no usable text,
// the extractor degrades to a single descriptive placeholder span instead
// of failing the document.
type ImageExtractor struct {
	ocrPath string
}

// NewImageExtractor returns an ImageExtractor, probing PATH for tesseract.
func NewImageExtractor() *ImageExtractor {
	path, err := exec.LookPath("tesseract")
	if err != nil {
		path = ""
	}
	return &ImageExtractor{ocrPath: path}
}

// OCRAvailable reports whether a tesseract binary was found.
func (e *ImageExtractor) OCRAvailable() bool {
	return e.ocrPath != ""
}

// Extract runs OCR over the image, falling back to a placeholder span when
// OCR is unavailable or yields nothing usable. Content that isn't a
// decodable image at all is an extraction failure.
func (e *ImageExtractor) Extract(content []byte, mediaType string) ([]Span, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, &ExtractionError{MediaType: mediaType, Err: fmt.Errorf("decoding image: %w", err)}
	}

	if e.ocrPath == "" {
		return []Span{placeholderSpan(mediaType, format, cfg, len(content), "OCR unavailable")}, nil
	}

	text, err := e.runOCR(content, format)
	if err != nil {
		return []Span{placeholderSpan(mediaType, format, cfg, len(content), fmt.Sprintf("OCR failed: %v", err))}, nil
	}

	text = cleanOCRText(text)
	if len(text) < minOCRText {
		return []Span{placeholderSpan(mediaType, format, cfg, len(content), "OCR produced no usable text")}, nil
	}

	return []Span{{Text: text}}, nil
}

// runOCR writes the image to a temp file and invokes tesseract with stdout
// output.
func (e *ImageExtractor) runOCR(content []byte, format string) (string, error) {
	dir, err := os.MkdirTemp("", "docidx-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "input."+format)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("writing temp image: %w", err)
	}

	cmd := exec.Command(e.ocrPath, path, "stdout")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

// cleanOCRText strips common OCR noise: stray control runes and lines too
// short to carry meaning.
func cleanOCRText(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len([]rune(line)) >= 3 {
			kept = append(kept, line)
		}
	}
	return normalizeWhitespace(strings.Join(kept, "\n"))
}

// placeholderSpan builds the degraded-mode description stored in place of
// OCR output so the document still becomes searchable by its basic
// attributes.
func placeholderSpan(mediaType, format string, cfg image.Config, size int, reason string) Span {
	return Span{Text: fmt.Sprintf(
		"Image document (%s, %s format, %dx%d pixels, %d bytes). Visual content not transcribed: %s.",
		mediaType, format, cfg.Width, cfg.Height, size, reason,
	)}
}
