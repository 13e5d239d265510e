package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/models"
)

type DocumentChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`
	ID            string          `bun:"id,pk"`
	Collection    string          `bun:"collection,notnull"`
	DocumentID    string          `bun:"document_id,notnull"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	CharOffset    int             `bun:"char_offset,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Score         float32         `bun:"score,scanonly"`
}

// IndexedDocument marks a completed build; chunks without a row here
// belong to an interrupted one.
type IndexedDocument struct {
	bun.BaseModel `bun:"table:indexed_documents,alias:idoc"`
	Collection    string `bun:"collection,pk"`
	DocumentID    string `bun:"document_id,pk"`
	Chunks        int    `bun:"chunks,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with either bun's pgdriver or lib/pq.
func ConnectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	case "", "pgdriver":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

var tables = []any{(*DocumentChunk)(nil), (*IndexedDocument)(nil)}

// InitDB enables pgvector and creates the tables.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// DropDocuments removes both tables.
func DropDocuments(ctx context.Context, db *bun.DB) error {
	for _, q := range dropQueries(db) {
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func dropQueries(db *bun.DB) []*bun.DropTableQuery {
	queries := make([]*bun.DropTableQuery, 0, len(tables))
	for _, model := range tables {
		queries = append(queries, db.NewDropTable().Model(model).IfExists())
	}
	return queries
}

// Store is the pgvector backed document index.
type Store struct {
	db         *bun.DB
	embedder   embeddings.Embedder
	scope      string
	collection string
}

func NewStore(db *bun.DB, embedder embeddings.Embedder, scope, collection string) *Store {
	if scope == "" {
		scope = config.ScopeDocument
	}
	return &Store{db: db, embedder: embedder, scope: scope, collection: collection}
}

// CollectionName is the collection value rows of docID are stored under.
func (s *Store) CollectionName(docID string) string {
	if s.scope == config.ScopeShared {
		return s.collection
	}
	return "doc-" + docID
}

// Reset forgets every indexed document and leaves empty tables behind.
func (s *Store) Reset(ctx context.Context) error {
	if err := DropDocuments(ctx, s.db); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return InitDB(ctx, s.db)
}

func (s *Store) Has(ctx context.Context, docID string) (bool, error) {
	return s.db.NewSelect().
		Model((*IndexedDocument)(nil)).
		Where("collection = ?", s.CollectionName(docID)).
		Where("document_id = ?", docID).
		Exists(ctx)
}

// Build replaces any chunks of docID and records the build as complete
// in the same transaction.
func (s *Store) Build(ctx context.Context, docID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to index")
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedding.EmbedChunks(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	collection := s.CollectionName(docID)
	rows := make([]DocumentChunk, len(chunks))
	for i, chunk := range chunks {
		rows[i] = DocumentChunk{
			ID:         fmt.Sprintf("%s/%s-%d", collection, docID, chunk.Index),
			Collection: collection,
			DocumentID: docID,
			ChunkIndex: chunk.Index,
			CharOffset: chunk.Offset,
			Content:    chunk.Text,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}

	log.Info().Str("collection", collection).Str("document", docID).Msgf("Storing %d chunks in pgvector", len(rows))
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*DocumentChunk)(nil)).
			Where("collection = ?", collection).
			Where("document_id = ?", docID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&IndexedDocument{Collection: collection, DocumentID: docID, Chunks: len(rows)}).
			On("CONFLICT (collection, document_id) DO UPDATE").
			Set("chunks = EXCLUDED.chunks").
			Exec(ctx)
		return err
	})
}

func (s *Store) Query(ctx context.Context, docID, question string, k int) ([]models.Match, error) {
	if question == "" {
		return nil, errors.New("empty question")
	}
	if k <= 0 {
		return nil, nil
	}
	queryEmbedding, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	var rows []DocumentChunk
	if err := s.searchQuery(docID, pgvector.NewVector(queryEmbedding), k).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, len(rows))
	for i, r := range rows {
		matches[i] = models.Match{
			DocumentID: r.DocumentID,
			Chunk:      models.Chunk{Index: r.ChunkIndex, Offset: r.CharOffset, Text: r.Content},
			Score:      r.Score,
		}
	}
	return matches, nil
}

// searchQuery orders by cosine distance; score is cosine similarity.
func (s *Store) searchQuery(docID string, v pgvector.Vector, k int) *bun.SelectQuery {
	q := s.db.NewSelect().
		Model((*DocumentChunk)(nil)).
		Column("document_id", "chunk_index", "char_offset", "content").
		ColumnExpr("1 - (embedding <=> ?) AS score", v).
		Where("collection = ?", s.CollectionName(docID))
	if s.scope != config.ScopeShared {
		q = q.Where("document_id = ?", docID)
	}
	return q.OrderExpr("embedding <=> ?", v).Limit(k)
}
