// Package server exposes both question-answering flows over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/document"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/session"
)

type Orchestrator interface {
	Extract(ctx context.Context, doc document.Document, prompt string) *llmservice.Stream
	Upload(ctx context.Context, s *session.Session, doc document.Document) models.Result
	Ask(ctx context.Context, s *session.Session, question string) models.Result
	Type(ctx context.Context, text string) *llmservice.Stream
	Document(ctx context.Context, s *session.Session) (string, []byte, error)
}

type Server struct {
	cfg      config.ServerConfig
	rag      Orchestrator
	sessions *Sessions
	engine   *gin.Engine
}

func New(cfg config.ServerConfig, rag Orchestrator) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	s := &Server{
		cfg:      cfg,
		rag:      rag,
		sessions: NewSessions(cfg.SessionTTL),
		engine:   gin.New(),
	}
	s.engine.MaxMultipartMemory = s.maxUpload()
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api")
	api.POST("/extract", s.extract)
	api.POST("/sessions", s.createSession)
	api.POST("/sessions/:id/document", s.uploadDocument)
	api.GET("/sessions/:id/document", s.download)
	api.POST("/sessions/:id/messages", s.ask)
	api.GET("/sessions/:id/messages", s.messages)
	api.GET("/sessions/:id/transcript", s.transcript)
	api.DELETE("/sessions/:id", s.deleteSession)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) maxUpload() int64 {
	return s.cfg.MaxUploadMB << 20
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
