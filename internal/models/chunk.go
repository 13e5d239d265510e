package models

// Chunk is a window of extracted document text. Offset is the rune offset
// of the window in the source text.
type Chunk struct {
	Index  int
	Offset int
	Text   string
}

// Match is a chunk returned by a similarity query, best first.
type Match struct {
	DocumentID string
	Chunk      Chunk
	Score      float32
}
