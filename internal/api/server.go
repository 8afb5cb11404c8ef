package api

import (
	"context"
	"net/http"

	"studyrag/internal/models"
	"studyrag/internal/rag"
	"studyrag/internal/source"
	"studyrag/internal/workflows"

	"github.com/gin-gonic/gin"
)

const defaultMaxUploadBytes = 64 << 20

type Answerer interface {
	Ask(ctx context.Context, req rag.AskRequest) (rag.Answer, error)
	Chat(ctx context.Context, req rag.ChatRequest) (rag.Answer, error)
	Notes(ctx context.Context, req rag.NotesRequest) (rag.Notes, error)
	History(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error)
}

type IngestStarter interface {
	StartIngest(ctx context.Context, in workflows.DocumentIngestInput) (string, error)
}

type Deps struct {
	Answerer    Answerer
	Inbox       source.Inbox
	Starter     IngestStarter
	CORSOrigins []string
	// MaxUploadBytes defaults to 64 MiB.
	MaxUploadBytes int64
}

type Server struct {
	rag       Answerer
	inbox     source.Inbox
	starter   IngestStarter
	cors      []string
	maxUpload int64
}

func NewServer(d Deps) *Server {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Server{
		rag:       d.Answerer,
		inbox:     d.Inbox,
		starter:   d.Starter,
		cors:      d.CORSOrigins,
		maxUpload: maxUpload,
	}
}

func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(CORS(s.cors))

	router.GET("/healthz", s.handleHealthz)
	router.POST("/ask", s.handleAsk)
	router.POST("/chat", s.handleChat)
	router.POST("/notes", s.handleNotes)
	router.GET("/conversations/:id", s.handleConversation)
	router.POST("/documents", s.handleUpload)
	return router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
