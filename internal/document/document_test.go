package document

import "testing"

func TestDetect(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	tests := []struct {
		name string
		file string
		data []byte
		want Media
	}{
		{"pdf magic", "upload.bin", []byte("%PDF-1.4\n1 0 obj\n"), PDF},
		{"png magic", "scan", png, Image},
		{"plain text", "notes.txt", []byte("Invoice #123"), Text},
		{"comma separated txt", "notes.txt", []byte("item,amount\nconsulting,45.00\n"), Text},
		{"csv", "items.csv", []byte("item,amount\nconsulting,45.00\n"), Text},
		{"markdown with commas", "notes.md", []byte("item,amount\nconsulting,45.00\n"), Text},
		{"text without extension", "README", []byte("Total due: 45.00\n"), Text},
		{"corrupt pdf by extension", "broken.pdf", []byte{0x00, 0x01, 0x02}, PDF},
		{"unknown", "archive.7z", []byte{0x00, 0x01}, Unknown},
		{"binary named txt", "fake.txt", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, Image},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Detect(tt.file, tt.data)
			if got != tt.want {
				t.Fatalf("Detect(%q) = %s, want %s", tt.file, got, tt.want)
			}
		})
	}
}

func TestID_ContentAddressed(t *testing.T) {
	a := New("a.pdf", []byte("%PDF-1.4 same"))
	b := New("dir/b.pdf", []byte("%PDF-1.4 same"))
	c := New("a.pdf", []byte("%PDF-1.4 other"))

	if a.ID() != b.ID() {
		t.Fatalf("same bytes must share an id: %s vs %s", a.ID(), b.ID())
	}
	if a.ID() == c.ID() {
		t.Fatalf("different bytes must not share an id")
	}
	if len(a.ID()) != 16 {
		t.Fatalf("id length=%d", len(a.ID()))
	}
	if b.Name != "b.pdf" {
		t.Fatalf("name=%q", b.Name)
	}
}
