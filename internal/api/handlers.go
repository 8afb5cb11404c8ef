package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studyrag/internal/extract"
	"studyrag/internal/models"
	"studyrag/internal/rag"
	"studyrag/internal/source"
	"studyrag/internal/workflows"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

type askRequest struct {
	Question string `json:"question"`
}

type chatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId"`
}

type notesRequest struct {
	Topic  string `json:"topic"`
	Format string `json:"format"`
}

type answerResponse struct {
	Answer         string       `json:"answer"`
	ChunksUsed     []int64      `json:"chunksUsed"`
	Confidence     float64      `json:"confidence"`
	ConversationID string       `json:"conversationId,omitempty"`
	Sources        []rag.Source `json:"sources"`
}

type notesResponse struct {
	Notes      string       `json:"notes"`
	Format     string       `json:"format"`
	ChunksUsed []int64      `json:"chunksUsed"`
	Confidence float64      `json:"confidence"`
	Sources    []rag.Source `json:"sources"`
}

type turnResponse struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ChunkIDs   []int64   `json:"chunkIds,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errInvalidBody)
		return
	}
	ans, err := s.rag.Ask(c.Request.Context(), rag.AskRequest{Question: req.Question})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAnswerResponse(ans))
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errInvalidBody)
		return
	}
	ans, err := s.rag.Chat(c.Request.Context(), rag.ChatRequest{Question: req.Question, ConversationID: req.ConversationID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAnswerResponse(ans))
}

func (s *Server) handleNotes(c *gin.Context) {
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errInvalidBody)
		return
	}
	notes, err := s.rag.Notes(c.Request.Context(), rag.NotesRequest{Topic: req.Topic, Format: req.Format})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notesResponse{
		Notes:      notes.Text,
		Format:     string(notes.Format),
		ChunksUsed: nonNilIDs(notes.ChunksUsed),
		Confidence: notes.Confidence,
		Sources:    notes.Sources,
	})
}

func (s *Server) handleConversation(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	id := c.Param("id")
	turns, err := s.rag.History(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]turnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnResponse{
			Role:       string(t.Role),
			Content:    t.Content,
			ChunkIDs:   parseIDs(t.ChunkIDs),
			Confidence: t.Confidence,
			CreatedAt:  t.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": id, "turns": out})
}

// handleUpload stores the file in the inbox and starts ingestion without
// waiting for it. If the workflow cannot be started the file stays queued
// for the inbox scan.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, badRequest("A file field named \"file\" is required."))
		return
	}
	if !extract.Supported(fh.Filename) {
		writeError(c, badRequest("Unsupported file type. Upload a PDF, Markdown or text file."))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	key := source.UploadKey(fh.Filename)
	meta := models.ClassMeta{
		Class:   strings.TrimSpace(c.PostForm("class")),
		Subject: strings.TrimSpace(c.PostForm("subject")),
		Chapter: strings.TrimSpace(c.PostForm("chapter")),
	}
	// The sidecar goes first so a scan never sees the file without it.
	if err := source.SaveMeta(ctx, s.inbox, key, source.UploadInfo{Name: fh.Filename, Meta: meta}); err != nil {
		logutil.GetLogger(ctx).Warn("save upload info failed", zap.String("key", key), zap.Error(err))
	}
	if _, err := s.inbox.Save(ctx, key, f); err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"key": key}
	if s.starter != nil {
		id, err := s.starter.StartIngest(ctx, workflows.DocumentIngestInput{Key: key, Name: fh.Filename, Meta: meta})
		switch {
		case err == nil, errors.Is(err, workflows.ErrAlreadyStarted):
			resp["workflowId"] = id
		default:
			logutil.GetLogger(ctx).Warn("start ingest failed, left for inbox scan", zap.String("key", key), zap.Error(err))
		}
	}
	c.JSON(http.StatusAccepted, resp)
}

func toAnswerResponse(a rag.Answer) answerResponse {
	return answerResponse{
		Answer:         a.Text,
		ChunksUsed:     nonNilIDs(a.ChunksUsed),
		Confidence:     a.Confidence,
		ConversationID: a.ConversationID,
		Sources:        a.Sources,
	}
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func parseIDs(csv string) []int64 {
	if csv == "" {
		return nil
	}
	out := make([]int64, 0, 8)
	for _, part := range strings.Split(csv, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
