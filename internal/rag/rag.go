// Package rag runs the two question-answering flows over an uploaded
// document: one-shot extraction and retrieval-augmented chat.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"document-qa/internal/blobstore"
	"document-qa/internal/chunker"
	"document-qa/internal/document"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/session"
)

// Index is the vector index the chat flow retrieves from.
type Index interface {
	Has(ctx context.Context, docID string) (bool, error)
	Build(ctx context.Context, docID string, chunks []models.Chunk) error
	Query(ctx context.Context, docID, question string, k int) ([]models.Match, error)
}

// Extractor turns a document into text.
type Extractor interface {
	Text(ctx context.Context, doc document.Document) (string, error)
}

// Model answers an assembled prompt.
type Model interface {
	Complete(ctx context.Context, prompt string) models.Result
	Stream(ctx context.Context, prompt string) *llmservice.Stream
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	TypingDelay  time.Duration
}

type RAG struct {
	extractor Extractor
	index     Index
	model     Model
	blobs     blobstore.Store
	opts      Options

	extractPrompt prompts.PromptTemplate
	chatPrompt    prompts.PromptTemplate
}

// NewRAG wires the orchestrator. blobs may be nil, in which case uploads
// are not persisted.
func NewRAG(extractor Extractor, index Index, model Model, blobs blobstore.Store, opts Options) *RAG {
	opts.ChunkSize, opts.ChunkOverlap = chunker.Normalize(opts.ChunkSize, opts.ChunkOverlap)
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &RAG{
		extractor: extractor,
		index:     index,
		model:     model,
		blobs:     blobs,
		opts:      opts,
		extractPrompt: prompts.NewPromptTemplate(models.ExtractPromptTemplate,
			[]string{"document", "prompt"}),
		chatPrompt: prompts.NewPromptTemplate(models.ChatPromptTemplate,
			[]string{"context", "history", "question"}),
	}
}

// Extract answers userPrompt about doc in one pass, streaming the answer.
// A document that cannot be read is sent to the model as empty text.
func (r *RAG) Extract(ctx context.Context, doc document.Document, userPrompt string) *llmservice.Stream {
	text, err := r.extractor.Text(ctx, doc)
	if err != nil {
		log.Error().Err(err).Str("document", doc.Name).Msg("Extraction failed, continuing with empty text")
		text = ""
	}

	prompt, err := r.extractPrompt.Format(map[string]any{
		"document": text,
		"prompt":   userPrompt,
	})
	if err != nil {
		return llmservice.Failed(ctx, models.NewFailure(models.KindModelCall, "failed to build prompt", err))
	}
	return r.model.Stream(ctx, prompt)
}

// Upload loads doc into the session and makes sure its index exists.
func (r *RAG) Upload(ctx context.Context, s *session.Session, doc document.Document) models.Result {
	s.Lock()
	defer s.Unlock()

	id := doc.ID()
	if s.State() == session.Indexed && s.DocumentID() == id {
		return models.Success(fmt.Sprintf("%s is already loaded.", doc.Name))
	}

	r.persist(ctx, id, doc)
	s.SetDocument(id, doc.Name)

	text, err := r.extractor.Text(ctx, doc)
	if err != nil {
		log.Error().Err(err).Str("document", doc.Name).Msg("Extraction failed")
		return models.Failed(models.NewFailure(models.KindExtraction, "could not read "+doc.Name, err))
	}
	if strings.TrimSpace(text) == "" {
		return models.Failed(models.NewFailure(models.KindExtraction, "no text found in "+doc.Name, nil))
	}

	built, err := r.index.Has(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("document", id).Msg("Index lookup failed")
		return models.Failed(models.NewFailure(models.KindIndexBuild, "could not check the index", err))
	}
	if built {
		log.Info().Str("document", id).Msg("Reusing existing index")
	} else {
		chunks := chunker.Split(text, r.opts.ChunkSize, r.opts.ChunkOverlap)
		if err := r.index.Build(ctx, id, chunks); err != nil {
			log.Error().Err(err).Str("document", id).Msg("Index build failed")
			return models.Failed(models.NewFailure(models.KindIndexBuild, "could not index "+doc.Name, err))
		}
		log.Info().Str("document", id).Int("chunks", len(chunks)).Msg("Index built")
	}

	s.SetState(session.Indexed)
	return models.Success(fmt.Sprintf("%s is ready. Ask a question about it.", doc.Name))
}

// persist stores the upload once per document ID and name. Failures are
// logged; chat works without the stored copy.
func (r *RAG) persist(ctx context.Context, id string, doc document.Document) {
	if r.blobs == nil {
		return
	}
	key := blobstore.Key(id, doc.Name)
	stored, err := r.blobs.Exists(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not check stored upload")
	}
	if stored {
		log.Debug().Str("key", key).Msg("Upload already stored")
		return
	}
	if err := r.blobs.Put(ctx, key, doc.Data); err != nil {
		log.Error().Err(err).Str("document", doc.Name).Msg("Failed to persist upload")
	}
}

// ErrNoDocument is returned by Document when the session has no stored
// upload to serve.
var ErrNoDocument = errors.New("no stored document")

// Document returns the name and original bytes of the session's document.
func (r *RAG) Document(ctx context.Context, s *session.Session) (string, []byte, error) {
	snap := s.Snapshot()
	if r.blobs == nil || snap.State == session.NoDocument {
		return "", nil, ErrNoDocument
	}
	data, err := r.blobs.Get(ctx, blobstore.Key(snap.DocumentID, snap.DocumentName))
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", nil, ErrNoDocument
	}
	if err != nil {
		return "", nil, err
	}
	return snap.DocumentName, data, nil
}

// Ask answers question from the session's document and records the
// exchange. A failed answer is recorded as its error text.
func (r *RAG) Ask(ctx context.Context, s *session.Session, question string) models.Result {
	s.Lock()
	defer s.Unlock()

	if s.State() != session.Indexed {
		return models.Failed(models.NewFailure(models.KindNoDocument, "upload a document before asking", nil))
	}

	res := r.answer(ctx, s, question)
	if err := s.History().Append(ctx, question, res.Text); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("Failed to record exchange")
	}
	return res
}

func (r *RAG) answer(ctx context.Context, s *session.Session, question string) models.Result {
	matches, err := r.index.Query(ctx, s.DocumentID(), question, r.opts.TopK)
	if err != nil {
		log.Error().Err(err).Str("document", s.DocumentID()).Msg("Retrieval failed")
		return models.Failed(models.NewFailure(models.KindRetrieval, "could not search the document", err))
	}

	history, err := s.History().Buffer(ctx)
	if err != nil {
		return models.Failed(models.NewFailure(models.KindRetrieval, "could not read the conversation", err))
	}

	prompt, err := r.chatPrompt.Format(map[string]any{
		"context":  joinContext(matches),
		"history":  history,
		"question": question,
	})
	if err != nil {
		return models.Failed(models.NewFailure(models.KindModelCall, "failed to build prompt", err))
	}
	return r.model.Complete(ctx, prompt)
}

// Type replays text with the typing effect.
func (r *RAG) Type(ctx context.Context, text string) *llmservice.Stream {
	return llmservice.Typewriter(ctx, text, r.opts.TypingDelay)
}

func joinContext(matches []models.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Chunk.Text
	}
	return strings.Join(parts, models.ContextSeparator)
}
