package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"document-qa/internal/document"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/rag"
	"document-qa/internal/session"
	"document-qa/internal/transcript"
)

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type uploadResponse struct {
	State      string `json:"state"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

func respondError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// readUpload returns the multipart "file" field as a Document.
func (s *Server) readUpload(c *gin.Context) (document.Document, int, error) {
	if c.Request.ContentLength > s.maxUpload() {
		return document.Document{}, http.StatusRequestEntityTooLarge,
			fmt.Errorf("upload exceeds %d MB", s.cfg.MaxUploadMB)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload())

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return document.Document{}, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %d MB", s.cfg.MaxUploadMB)
		}
		return document.Document{}, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
	}
	f, err := header.Open()
	if err != nil {
		return document.Document{}, http.StatusBadRequest, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return document.Document{}, http.StatusBadRequest, err
	}
	if len(data) == 0 {
		return document.Document{}, http.StatusBadRequest, errors.New("file is empty")
	}
	return document.New(header.Filename, data), http.StatusOK, nil
}

func (s *Server) extract(c *gin.Context) {
	doc, status, err := s.readUpload(c)
	if err != nil {
		respondError(c, status, err)
		return
	}
	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		respondError(c, http.StatusBadRequest, errors.New("prompt is required"))
		return
	}

	log.Info().Str("document", doc.Name).Str("media", doc.Media.String()).Msg("Extract request")
	f := streamEvents(c, s.rag.Extract(c.Request.Context(), doc, prompt))
	finishEvents(c, f)
}

func (s *Server) createSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "state": sess.State().String()})
}

// download serves the original bytes of the session's document.
func (s *Server) download(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	name, data, err := s.rag.Document(c.Request.Context(), sess)
	if errors.Is(err, rag.ErrNoDocument) {
		respondError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("Failed to read stored document")
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessions.Delete(c.Param("id")) {
		respondError(c, http.StatusNotFound, fmt.Errorf("session %s not found", c.Param("id")))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("session %s not found", c.Param("id")))
	}
	return sess, ok
}

func (s *Server) uploadDocument(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	doc, status, err := s.readUpload(c)
	if err != nil {
		respondError(c, status, err)
		return
	}

	res := s.rag.Upload(c.Request.Context(), sess, doc)
	snap := sess.Snapshot()
	resp := uploadResponse{
		State:      snap.State.String(),
		DocumentID: snap.DocumentID,
		Message:    res.Text,
	}
	if !res.OK() {
		resp.Error = res.Failure.Kind.String()
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ask answers synchronously, then replays the answer with the typing
// effect as server-sent events.
func (s *Server) ask(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		respondError(c, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	res := s.rag.Ask(c.Request.Context(), sess, strings.TrimSpace(req.Question))
	streamEvents(c, s.rag.Type(c.Request.Context(), res.Text))
	finishEvents(c, res.Failure)
}

func (s *Server) messages(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sess.History().Turns()})
}

func (s *Server) transcript(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	body, err := transcript.HTML(sess.History().Turns())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// streamEvents writes each fragment as a "message" event.
func streamEvents(c *gin.Context, stream *llmservice.Stream) *models.Failure {
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for stream.Next() {
		c.SSEvent("message", gin.H{"text": stream.Text()})
		c.Writer.Flush()
	}
	return stream.Err()
}

// finishEvents ends an event stream with the failure, if any, and "done".
func finishEvents(c *gin.Context, f *models.Failure) {
	if f != nil {
		c.SSEvent("error", gin.H{"kind": f.Kind.String(), "message": f.Error()})
	}
	c.SSEvent("done", gin.H{"ok": f == nil})
	c.Writer.Flush()
}
