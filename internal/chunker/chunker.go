package chunker

import (
	"strings"

	"document-qa/internal/models"
)

const (
	DefaultChunkSize    = 1500 // runes
	DefaultChunkOverlap = 200  // runes
)

// Normalize maps invalid parameters onto usable ones.
func Normalize(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return size, overlap
}

// Split cuts text into windows of at most size runes, each starting exactly
// overlap runes before the end of the previous one. A window prefers to end
// on whitespace or a full stop found in its last tenth. The result is never
// empty: text that fits one window comes back unchanged as a single chunk.
func Split(text string, size, overlap int) []models.Chunk {
	size, overlap = Normalize(size, overlap)

	runes := []rune(text)
	n := len(runes)
	if n <= size {
		return []models.Chunk{{Index: 0, Offset: 0, Text: text}}
	}

	var chunks []models.Chunk
	start := 0
	for {
		end := min(start+size, n)

		if end < n {
			// the break must stay past start+overlap so the next window advances
			lookBack := max(size/10, 1)
			for i := end - 1; i >= end-lookBack && i > start+overlap; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunks = append(chunks, models.Chunk{
			Index:  len(chunks),
			Offset: start,
			Text:   string(runes[start:end]),
		})

		if end == n {
			break
		}
		start = end - overlap
	}
	return chunks
}

// Join rebuilds the source text from chunks produced by Split with the same
// overlap: the first chunk whole, every later one minus its leading overlap.
func Join(chunks []models.Chunk, overlap int) string {
	var content strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			content.WriteString(chunk.Text)
			continue
		}
		runes := []rune(chunk.Text)
		if len(runes) > overlap {
			content.WriteString(string(runes[overlap:]))
		}
	}
	return content.String()
}
