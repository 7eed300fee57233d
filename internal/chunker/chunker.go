// Package chunker splits long-form text into bounded, overlapping segments
// sized for an embedding model's input budget. Splitting prefers natural
// boundaries (paragraph, sentence, whitespace) so chunks don't sever words
// or sentences mid-stream.
package chunker

import (
	"strings"
	"unicode"
)

const (
	// DefaultMaxSize is the default chunk size in runes.
	DefaultMaxSize = 1000
	// DefaultOverlap is the default number of runes shared between
	// consecutive chunks.
	DefaultOverlap = 200

	// boundaryWindow bounds how far back from the size limit the chunker
	// searches for a natural break point.
	boundaryWindow = 200
)

// Chunk splits text into segments of at most maxSize runes. Consecutive
// chunks share a trailing/leading window of overlap runes so local context
// survives the split. The function is pure: identical inputs always produce
// identical output.
//
// Text no longer than maxSize yields exactly one chunk (the trimmed input).
// A run of maxSize runes with no break point at all is cut hard at the
// limit rather than rejected.
func Chunk(text string, maxSize, overlap int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize - 1
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= maxSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end = breakPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			// Overlap would stall the scan; give up the shared window
			// for this boundary instead of looping forever.
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint searches backward from end for the best place to cut:
// paragraph break first, then sentence end, then any whitespace. The search
// stays within boundaryWindow runes of end so short chunks aren't produced
// from text with early breaks. Returns end unchanged when nothing suitable
// is found.
func breakPoint(runes []rune, start, end int) int {
	low := end - boundaryWindow
	if low <= start {
		low = start + 1
	}

	// Paragraph break: blank line.
	for i := end - 1; i > low; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}

	// Sentence end: terminal punctuation followed by space, or a newline.
	for i := end - 1; i > low; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
		if i > 0 && isSentenceEnd(runes[i-1]) && runes[i] == ' ' {
			return i + 1
		}
	}

	// Any whitespace.
	for i := end - 1; i > low; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
