package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/blobstore"
	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/extract"
	"document-qa/internal/llmservice"
	"document-qa/internal/rag"
)

// resettableIndex is implemented by both index backends.
type resettableIndex interface {
	rag.Index
	Reset(ctx context.Context) error
}

// app holds the wired orchestrator and whatever must be closed on exit.
type app struct {
	rag     *rag.RAG
	index   resettableIndex
	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}
}

// newApp wires every component. On error, whatever was opened is closed.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	chatModel, err := llmservice.NewModel(cfg.ChatLLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing chat model: %w", err)
	}
	client := llmservice.NewClient(chatModel, cfg.ChatLLM.Timeout)

	ocr, err := a.newOCR(ctx, cfg)
	if err != nil {
		return nil, err
	}
	registry := extract.NewDefaultRegistry(ocr)

	embedder, err := embedding.NewEmbedder(cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	if a.index, err = a.newIndex(ctx, cfg, embedder); err != nil {
		return nil, err
	}
	blobs, err := a.newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.rag = rag.NewRAG(registry, a.index, client, blobs, rag.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		TopK:         cfg.RAG.TopK,
		TypingDelay:  cfg.RAG.TypingDelay,
	})
	return a, nil
}

func (a *app) newOCR(ctx context.Context, cfg *config.Config) (extract.OCREngine, error) {
	switch cfg.OCR.Engine {
	case config.OCRGCP:
		v, err := extract.NewVisionOCR(ctx, cfg.OCR.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("error initializing Cloud Vision: %w", err)
		}
		a.closers = append(a.closers, v)
		return v, nil
	default:
		model, err := llmservice.NewModel(cfg.VisionLLM)
		if err != nil {
			return nil, fmt.Errorf("error initializing vision model: %w", err)
		}
		return extract.ModelOCR{Model: model}, nil
	}
}

func (a *app) newIndex(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (resettableIndex, error) {
	if cfg.RAG.IndexBackend == config.BackendPGVector {
		sqldb, err := db.ConnectDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		a.closers = append(a.closers, bunDB)
		if err := db.InitDB(ctx, bunDB); err != nil {
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		return db.NewStore(bunDB, embedder, cfg.RAG.IndexScope, cfg.RAG.Collection), nil
	}

	mgr, err := newChromem(cfg, embedder)
	if err != nil {
		return nil, fmt.Errorf("error opening vector database: %w", err)
	}
	return mgr, nil
}

func newChromem(cfg *config.Config, embedder embeddings.Embedder) (*chromemdb.VectorDBManager, error) {
	return chromemdb.NewVectorDBManager(chromemdb.Options{
		Path:          cfg.Storage.IndexDir,
		InMemory:      !cfg.RAG.Persist,
		Compress:      cfg.RAG.Compress,
		EncryptionKey: cfg.RAG.EncryptionKey,
		Scope:         cfg.RAG.IndexScope,
		Collection:    cfg.RAG.Collection,
	}, embedder)
}

func (a *app) newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.Storage.Backend == config.StorageGCS {
		g, err := blobstore.NewGCS(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("error initializing Cloud Storage: %w", err)
		}
		a.closers = append(a.closers, g)
		return g, nil
	}
	local, err := blobstore.NewLocal(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("error creating upload directory: %w", err)
	}
	return local, nil
}
