package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func invoiceText(lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		b.WriteString("Line item: consulting services rendered in March. Amount due €120.50\n")
	}
	return b.String()
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	in := "Invoice #123, Total: $45.00"
	chunks := Split(in, 1500, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != in {
		t.Fatalf("chunk=%q", chunks[0].Text)
	}
}

func TestSplit_EmptyTextIsOneEmptyChunk(t *testing.T) {
	chunks := Split("", 1500, 200)
	if len(chunks) != 1 || chunks[0].Text != "" {
		t.Fatalf("chunks=%+v", chunks)
	}
}

func TestSplit_BoundsAndReconstruction(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		size, overlap int
	}{
		{"defaults", invoiceText(120), 1500, 200},
		{"small windows", invoiceText(10), 100, 20},
		{"no overlap", invoiceText(10), 64, 0},
		{"no break points", strings.Repeat("x", 1000), 128, 32},
		{"multibyte", strings.Repeat("€ü日本 ", 300), 97, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.size, tt.overlap)
			if len(chunks) < 2 {
				t.Fatalf("expected several chunks, got %d", len(chunks))
			}
			for i, c := range chunks {
				if n := utf8.RuneCountInString(c.Text); n > tt.size {
					t.Fatalf("chunk %d has %d runes > %d", i, n, tt.size)
				}
				if c.Index != i {
					t.Fatalf("chunk %d index=%d", i, c.Index)
				}
			}
			if got := Join(chunks, tt.overlap); got != tt.text {
				t.Fatalf("reconstruction mismatch: got %d runes, want %d", utf8.RuneCountInString(got), utf8.RuneCountInString(tt.text))
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := invoiceText(50)
	a := Split(text, 300, 40)
	b := Split(text, 300, 40)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestSplit_OffsetsPointIntoSource(t *testing.T) {
	text := invoiceText(20)
	runes := []rune(text)
	for _, c := range Split(text, 150, 30) {
		n := utf8.RuneCountInString(c.Text)
		if string(runes[c.Offset:c.Offset+n]) != c.Text {
			t.Fatalf("chunk %d offset %d does not match source", c.Index, c.Offset)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{0, 0, DefaultChunkSize, 0},
		{100, -5, 100, 0},
		{100, 100, 100, 50},
		{100, 250, 100, 50},
		{1500, 200, 1500, 200},
	}
	for _, tt := range tests {
		s, o := Normalize(tt.size, tt.overlap)
		if s != tt.wantSize || o != tt.wantOverlap {
			t.Fatalf("Normalize(%d,%d) = %d,%d", tt.size, tt.overlap, s, o)
		}
	}
}
