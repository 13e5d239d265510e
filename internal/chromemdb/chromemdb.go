package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const (
	metaDocumentID = "document_id"
	metaChunkIndex = "chunk_index"
	metaOffset     = "offset"
)

type Options struct {
	Path          string
	InMemory      bool
	Compress      bool
	EncryptionKey string
	// Scope is config.ScopeDocument (one collection per document) or
	// config.ScopeShared (every document in Collection).
	Scope      string
	Collection string
}

// VectorDBManager is the chromem-go backed document index.
type VectorDBManager struct {
	db       *chromem.DB
	embedder embeddings.Embedder
	opts     Options

	mu       sync.Mutex
	manifest *manifest
}

// NewVectorDBManager opens (or creates) the chromem database.
func NewVectorDBManager(opts Options, embedder embeddings.Embedder) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(opts.Path); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}
	if opts.Scope == "" {
		opts.Scope = config.ScopeDocument
	}

	m := newManifest()
	if !opts.InMemory {
		m, err = loadManifest(filepath.Join(opts.Path, manifestFile))
		if err != nil {
			return nil, err
		}
	}

	return &VectorDBManager{
		db:       db,
		embedder: embedder,
		opts:     opts,
		manifest: m,
	}, nil
}

// CollectionName is where the chunks of docID live.
func (m *VectorDBManager) CollectionName(docID string) string {
	if m.opts.Scope == config.ScopeShared {
		return m.opts.Collection
	}
	return "doc-" + docID
}

// Has reports whether a completed build exists for docID.
func (m *VectorDBManager) Has(_ context.Context, docID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.CollectionName(docID)
	if !m.manifest.has(name, docID) {
		return false, nil
	}
	c := m.db.GetCollection(name, m.embeddingFunc())
	return c != nil && c.Count() > 0, nil
}

// Build embeds the chunks of docID and stores them.
func (m *VectorDBManager) Build(ctx context.Context, docID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to index")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.CollectionName(docID)
	c, err := m.db.GetOrCreateCollection(name, nil, m.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedding.EmbedChunks(ctx, m.embedder, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%s-%d", docID, chunk.Index),
			Content: chunk.Text,
			Metadata: map[string]string{
				metaDocumentID: docID,
				metaChunkIndex: strconv.Itoa(chunk.Index),
				metaOffset:     strconv.Itoa(chunk.Offset),
			},
			Embedding: vectors[i],
		}
	}

	log.Info().Str("collection", name).Str("document", docID).Msgf("Adding %d documents to vector database", len(docs))
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	m.manifest.add(name, docID)
	if m.opts.InMemory {
		return nil
	}
	return m.manifest.save(filepath.Join(m.opts.Path, manifestFile))
}

// Query returns up to k chunks most similar to question. In the shared
// scope the search spans every document in the collection.
func (m *VectorDBManager) Query(ctx context.Context, docID, question string, k int) ([]models.Match, error) {
	if question == "" {
		return nil, errors.New("empty question")
	}
	name := m.CollectionName(docID)
	c := m.db.GetCollection(name, m.embeddingFunc())
	if c == nil {
		return nil, fmt.Errorf("no index for document %s", docID)
	}

	n := min(k, c.Count())
	if n <= 0 {
		return nil, nil
	}

	queryEmbedding, err := m.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		index, _ := strconv.Atoi(r.Metadata[metaChunkIndex])
		offset, _ := strconv.Atoi(r.Metadata[metaOffset])
		matches = append(matches, models.Match{
			DocumentID: r.Metadata[metaDocumentID],
			Chunk:      models.Chunk{Index: index, Offset: offset, Text: r.Content},
			Score:      r.Similarity,
		})
	}
	return matches, nil
}

// Reset drops every collection and forgets every completed build.
func (m *VectorDBManager) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.db.ListCollections() {
		if err := m.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
		m.manifest.drop(name)
		log.Debug().Str("collection", name).Msg("Dropped collection")
	}
	if m.opts.InMemory {
		return nil
	}
	return m.manifest.save(filepath.Join(m.opts.Path, manifestFile))
}

// Export writes every collection to one encrypted file. The manifest is
// written next to it so Import knows which documents the file holds.
func (m *VectorDBManager) Export(filePath string) error {
	if m.opts.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log.Debug().Str("file", filePath).Bool("compress", m.opts.Compress).Msg("Exporting vector database")
	if err := m.db.ExportToFile(filePath, m.opts.Compress, m.opts.EncryptionKey); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return m.manifest.save(filePath + manifestSuffix)
}

// Import loads collections from a file written by Export.
func (m *VectorDBManager) Import(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.ImportFromFile(filePath, m.opts.EncryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	imported, err := loadManifest(filePath + manifestSuffix)
	if err != nil {
		return err
	}
	m.manifest.merge(imported)
	if m.opts.InMemory {
		return nil
	}
	return m.manifest.save(filepath.Join(m.opts.Path, manifestFile))
}

func (m *VectorDBManager) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return m.embedder.EmbedQuery(ctx, text)
	}
}
