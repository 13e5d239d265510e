package document

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Media is the tagged variant an uploaded file is dispatched on.
type Media int

const (
	Unknown Media = iota
	PDF
	Image
	DOCX
	PPTX
	Spreadsheet
	Text
)

func (m Media) String() string {
	switch m {
	case PDF:
		return "pdf"
	case Image:
		return "image"
	case DOCX:
		return "docx"
	case PPTX:
		return "pptx"
	case Spreadsheet:
		return "spreadsheet"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Document is one uploaded file. It only lives for the request or session
// that received it.
type Document struct {
	Name     string
	Data     []byte
	Media    Media
	MIMEType string
}

// New sniffs the media type from data, falling back to the file extension
// when the bytes are not conclusive.
func New(name string, data []byte) Document {
	media, mimeType := Detect(name, data)
	return Document{
		Name:     filepath.Base(name),
		Data:     data,
		Media:    media,
		MIMEType: mimeType,
	}
}

// ID identifies the document by content, so the same bytes uploaded under
// another name map to the same index.
func (d Document) ID() string {
	sum := sha256.Sum256(d.Data)
	return hex.EncodeToString(sum[:8])
}

func Detect(name string, data []byte) (Media, string) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return PDF, mt.String()
	case strings.HasPrefix(mt.String(), "image/"):
		return Image, mt.String()
	case mt.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return DOCX, mt.String()
	case mt.Is("application/vnd.openxmlformats-officedocument.presentationml.presentation"):
		return PPTX, mt.String()
	case mt.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return Spreadsheet, mt.String()
	}

	// zip containers and empty/garbled files fall back to the extension
	media := byExtension(name)
	if media == Text && !isText(mt) && len(data) > 0 {
		return Unknown, mt.String()
	}
	if media == Unknown && len(data) > 0 && isText(mt) {
		return Text, mt.String()
	}
	return media, mt.String()
}

// isText reports whether mt is text/plain or one of its descendants
// (csv, html, json, ...).
func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func byExtension(name string) Media {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return Image
	case ".docx":
		return DOCX
	case ".pptx":
		return PPTX
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return Spreadsheet
	case ".txt", ".md", ".csv":
		return Text
	default:
		return Unknown
	}
}
