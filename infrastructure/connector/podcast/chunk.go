package podcast

import "strings"

// Default transcript chunking geometry. Overlap keeps sentences that
// straddle a boundary retrievable from both sides.
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// Chunks splits text into overlapping rune windows of at most size,
// preferring to break at a word boundary near the window end. Text that
// fits in one window is returned whole.
func Chunks(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := end
		for cut > start+step && runes[cut-1] != ' ' && runes[cut-1] != '\n' {
			cut--
		}
		if cut == start+step {
			cut = end
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
	}
	return chunks
}
