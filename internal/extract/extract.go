package extract

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"document-qa/internal/document"
)

// Extractor turns the bytes of one media kind into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches a document to the extractor registered for its media.
type Registry struct {
	extractors map[document.Media]Extractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[document.Media]Extractor)}
}

// NewDefaultRegistry wires every built-in extractor; images go to ocr, which
// may be nil when no OCR engine is configured.
func NewDefaultRegistry(ocr OCREngine) *Registry {
	r := NewRegistry()
	r.Register(document.PDF, PDF{})
	r.Register(document.DOCX, DOCX{})
	r.Register(document.PPTX, PPTX{})
	r.Register(document.Spreadsheet, Spreadsheet{})
	r.Register(document.Text, PlainText{})
	if ocr != nil {
		r.Register(document.Image, OCR{Engine: ocr})
	}
	return r
}

func (r *Registry) Register(media document.Media, e Extractor) {
	r.extractors[media] = e
}

// Text extracts the document text. On failure the text is empty and the
// error says why; callers are expected to carry on with the empty text.
func (r *Registry) Text(ctx context.Context, doc document.Document) (string, error) {
	e, ok := r.extractors[doc.Media]
	if !ok {
		return "", fmt.Errorf("unsupported media %s for %s", doc.Media, doc.Name)
	}

	text, err := e.Extract(ctx, doc.Data)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s (%s): %w", doc.Name, doc.Media, err)
	}
	log.Debug().Str("document", doc.Name).Str("media", doc.Media.String()).Int("chars", len(text)).Msg("Extracted text")
	return text, nil
}
