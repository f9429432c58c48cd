// Package splitter cuts document content into overlapping chunks for
// indexing. Splitting is deterministic: the same input always yields the same
// chunks, which keeps external-index chunk IDs stable across reindex runs.
package splitter

import "strings"

type Splitter struct {
	size    int // target chunk size in runes
	overlap int // runes carried over between adjacent chunks
}

const (
	DefaultChunkSize    = 900
	DefaultChunkOverlap = 150

	// breakWindow is how far back from the size boundary a whitespace break
	// point is searched for before cutting mid-word.
	breakWindow = 80
)

func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split returns the overlapping chunks of text. Chunks that contain only
// whitespace are dropped.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakAt(runes, start, end)
		}

		if chunk := string(runes[start:end]); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakAt moves the cut point back to the nearest newline or space within
// breakWindow of the boundary, preferring newlines, so chunks end on natural
// boundaries when possible.
func (s *Splitter) breakAt(runes []rune, start, end int) int {
	limit := end - breakWindow
	if limit < start+1 {
		limit = start + 1
	}

	for i := end - 1; i >= limit; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= limit; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}
	return end
}
