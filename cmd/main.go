package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/document"
	"document-qa/internal/embedding"
	"document-qa/internal/logger"
	"document-qa/internal/models"
	"document-qa/internal/rag"
	"document-qa/internal/server"
	"document-qa/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	os.Exit(run())
}

// run returns the exit code, so deferred cleanup happens before exiting.
func run() int {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file")
	prompt := flag.String("prompt", "", "Prompt for a one-shot extraction from -file")
	chat := flag.Bool("chat", false, "Chat about -file in the terminal")
	serve := flag.Bool("serve", false, "Serve the HTTP API")
	exportPath := flag.String("export", "", "Export the vector index to an encrypted file")
	importPath := flag.String("import", "", "Import the vector index from an encrypted file")
	resetIndex := flag.Bool("reset-index", false, "Drop every indexed document")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		return 1
	}

	logOut, closeLog := logOutput(cfg, *chat)
	defer closeLog()
	logger.SetupWriter(cfg.Log, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportPath != "" || *importPath != "" {
		if err := runIndexBackup(cfg, *exportPath, *importPath); err != nil {
			log.Error().Err(err).Msg("Index backup failed")
			return 1
		}
		return 0
	}

	var doc document.Document
	switch {
	case *serve, *resetIndex:
	case *chat || (*filePath != "" && *prompt != ""):
		if doc, err = readDocument(*filePath); err != nil {
			log.Error().Err(err).Msg("Error reading document")
			return 1
		}
	default:
		flag.Usage()
		return 2
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return 1
	}
	defer app.Close()

	switch {
	case *resetIndex:
		if err := app.index.Reset(ctx); err != nil {
			log.Error().Err(err).Msg("Error resetting the index")
			return 1
		}
		log.Info().Str("backend", cfg.RAG.IndexBackend).Msg("Index reset")
	case *serve:
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		if err := server.New(cfg.Server, app.rag).Run(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			return 1
		}
	case *chat:
		if err := tui.Run(ctx, app.rag, doc); err != nil {
			log.Error().Err(err).Msg("Chat failed")
			return 1
		}
	default:
		if f := extractOnce(ctx, app.rag, doc, *prompt, os.Stdout); f != nil {
			return 1
		}
	}
	return 0
}

// logOutput keeps logs off stdout, which carries the answer (or the chat
// screen).
func logOutput(cfg *config.Config, chat bool) (io.Writer, func()) {
	if !chat {
		return os.Stderr, func() {}
	}
	dir := filepath.Dir(cfg.Storage.IndexDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, "docqa.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}

func readDocument(path string) (document.Document, error) {
	if path == "" {
		return document.Document{}, errors.New("please provide a document with the -file flag")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, err
	}
	doc := document.New(filepath.Base(path), data)
	log.Debug().Str("document", doc.Name).Str("id", doc.ID()).Str("media", doc.Media.String()).Msg("Loaded document")
	return doc, nil
}

// extractOnce prints the streamed answer and reports how it ended.
func extractOnce(ctx context.Context, r *rag.RAG, doc document.Document, prompt string, out io.Writer) *models.Failure {
	stream := r.Extract(ctx, doc, prompt)
	defer stream.Close()
	for stream.Next() {
		fmt.Fprint(out, stream.Text())
	}
	fmt.Fprintln(out)
	return stream.Err()
}

func runIndexBackup(cfg *config.Config, exportPath, importPath string) error {
	if cfg.RAG.IndexBackend != config.BackendChromem {
		return fmt.Errorf("export and import need the chromem index backend, not %s", cfg.RAG.IndexBackend)
	}
	embedder, err := embedding.NewEmbedder(cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}
	mgr, err := newChromem(cfg, embedder)
	if err != nil {
		return fmt.Errorf("error opening vector database: %w", err)
	}
	if importPath != "" {
		if err := mgr.Import(importPath); err != nil {
			return fmt.Errorf("error importing vector database: %w", err)
		}
		log.Info().Str("file", importPath).Msg("Imported vector database")
	}
	if exportPath != "" {
		if err := mgr.Export(exportPath); err != nil {
			return fmt.Errorf("error exporting vector database: %w", err)
		}
		log.Info().Str("file", exportPath).Msg("Exported vector database")
	}
	return nil
}
