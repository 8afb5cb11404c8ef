// Package rag answers questions and writes study notes grounded in the
// retrieved corpus.
package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"studyrag/internal/embedding"
	"studyrag/internal/models"
	"studyrag/internal/providers"
	"studyrag/internal/util"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	AnswerTopK   = 5
	NotesTopK    = 15
	HistoryTurns = 10

	snippetRunes = 240

	answerMaxTokens = 800
	notesMaxTokens  = 2000
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoContentFound = errors.New("no relevant content found")
	ErrCompletion     = errors.New("completion failed")
)

type Retriever interface {
	Search(ctx context.Context, query []byte, k int) ([]models.SearchResultChunk, error)
}

// Store is the persistence the orchestrator needs. Write failures are logged
// and never fail a request.
type Store interface {
	InsertInteractionLog(ctx context.Context, l models.InteractionLog) error
	ConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error)
	AppendConversationTurn(ctx context.Context, t models.ConversationTurn) (int64, error)
}

type AskRequest struct {
	Question string
}

type ChatRequest struct {
	Question       string
	ConversationID string
}

type NotesRequest struct {
	Topic  string
	Format string
}

type Source struct {
	ChunkID    int64   `json:"chunkId"`
	DocumentID int64   `json:"documentId"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

type Answer struct {
	Text           string
	ChunksUsed     []int64
	Confidence     float64
	ConversationID string
	Sources        []Source
}

type Notes struct {
	Text       string
	Format     NotesFormat
	ChunksUsed []int64
	Confidence float64
	Sources    []Source
}

type Orchestrator struct {
	embedder  embedding.Embedder
	retriever Retriever
	llm       providers.LLMProvider
	store     Store
	newID     func() string
}

func NewOrchestrator(embedder embedding.Embedder, retriever Retriever, llm providers.LLMProvider, store Store) *Orchestrator {
	return &Orchestrator{
		embedder:  embedder,
		retriever: retriever,
		llm:       llm,
		store:     store,
		newID:     uuid.NewString,
	}
}

func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	question, err := required("question", req.Question)
	if err != nil {
		return Answer{}, err
	}
	chunks, err := o.retrieve(ctx, question, AnswerTopK)
	if err != nil {
		return Answer{}, err
	}
	text, err := o.complete(ctx, "ask", BuildAnswerPrompt(question, chunks, nil), answerMaxTokens)
	if err != nil {
		return Answer{}, err
	}
	ans := newAnswer(text, question, chunks)
	o.logInteraction(ctx, question, ans.Text, ans.ChunksUsed, ans.Confidence)
	return ans, nil
}

// Chat is Ask with conversation memory. An empty ConversationID starts a new
// conversation.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (Answer, error) {
	question, err := required("question", req.Question)
	if err != nil {
		return Answer{}, err
	}
	chunks, err := o.retrieve(ctx, question, AnswerTopK)
	if err != nil {
		return Answer{}, err
	}
	convID := strings.TrimSpace(req.ConversationID)
	var history []models.ConversationTurn
	if convID != "" {
		history = o.loadHistory(ctx, convID)
	} else {
		convID = o.newID()
	}
	text, err := o.complete(ctx, "chat", BuildAnswerPrompt(question, chunks, history), answerMaxTokens)
	if err != nil {
		return Answer{}, err
	}
	ans := newAnswer(text, question, chunks)
	ans.ConversationID = convID

	o.logInteraction(ctx, question, ans.Text, ans.ChunksUsed, ans.Confidence)
	conf := ans.Confidence
	o.appendTurn(ctx, models.ConversationTurn{ConversationID: convID, Role: models.RoleUser, Content: question})
	o.appendTurn(ctx, models.ConversationTurn{
		ConversationID: convID,
		Role:           models.RoleAssistant,
		Content:        ans.Text,
		ChunkIDs:       joinIDs(ans.ChunksUsed),
		Confidence:     &conf,
	})
	return ans, nil
}

func (o *Orchestrator) Notes(ctx context.Context, req NotesRequest) (Notes, error) {
	topic, err := required("topic", req.Topic)
	if err != nil {
		return Notes{}, err
	}
	format := ParseNotesFormat(req.Format)
	chunks, err := o.retrieve(ctx, topic, NotesTopK)
	if err != nil {
		return Notes{}, err
	}
	text, err := o.complete(ctx, "notes", BuildNotesPrompt(topic, format, chunks), notesMaxTokens)
	if err != nil {
		return Notes{}, err
	}
	ans := newAnswer(text, topic, chunks)
	o.logInteraction(ctx, topic, ans.Text, ans.ChunksUsed, ans.Confidence)
	return Notes{
		Text:       ans.Text,
		Format:     format,
		ChunksUsed: ans.ChunksUsed,
		Confidence: ans.Confidence,
		Sources:    ans.Sources,
	}, nil
}

// History returns up to limit stored turns of a conversation, oldest first.
func (o *Orchestrator) History(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	id, err := required("conversation id", conversationID)
	if err != nil {
		return nil, err
	}
	turns, err := o.store.ConversationHistory(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return turns, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string, k int) ([]models.SearchResultChunk, error) {
	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := o.retriever.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoContentFound
	}
	return chunks, nil
}

func (o *Orchestrator) complete(ctx context.Context, op, prompt string, maxTokens int) (string, error) {
	resp, info, err := o.llm.Generate(ctx, providers.GenerateRequest{Operation: op, Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		logutil.GetLogger(ctx).Error("completion failed", zap.String("operation", op), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	logutil.GetLogger(ctx).Debug("completion done",
		zap.String("operation", op),
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
	)
	return strings.TrimSpace(resp.Text), nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, convID string) []models.ConversationTurn {
	turns, err := o.store.ConversationHistory(ctx, convID, HistoryTurns)
	if err != nil {
		logutil.GetLogger(ctx).Warn("load history failed", zap.String("conversation_id", convID), zap.Error(err))
		return nil
	}
	return turns
}

func (o *Orchestrator) logInteraction(ctx context.Context, question, answer string, ids []int64, confidence float64) {
	err := o.store.InsertInteractionLog(ctx, models.InteractionLog{
		Question:   question,
		Answer:     answer,
		ChunkIDs:   joinIDs(ids),
		Confidence: confidence,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("write interaction log failed", zap.Error(err))
	}
}

func (o *Orchestrator) appendTurn(ctx context.Context, t models.ConversationTurn) {
	if _, err := o.store.AppendConversationTurn(ctx, t); err != nil {
		logutil.GetLogger(ctx).Warn("append conversation turn failed",
			zap.String("conversation_id", t.ConversationID),
			zap.String("role", string(t.Role)),
			zap.Error(err),
		)
	}
}

func newAnswer(text, query string, chunks []models.SearchResultChunk) Answer {
	ids := make([]int64, 0, len(chunks))
	sources := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ChunkID)
		sources = append(sources, Source{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Score:      roundScore(c.Score),
			Snippet:    util.DisplayEvidenceSnippet(c.Text, query, snippetRunes),
		})
	}
	return Answer{
		Text:       text,
		ChunksUsed: ids,
		Confidence: Confidence(chunks),
		Sources:    sources,
	}
}

// Confidence is the best similarity among chunks, rounded to 4 decimals.
// Scores that are not real numbers count as 0.
func Confidence(chunks []models.SearchResultChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, c := range chunks {
		s := c.Score
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		if s > best {
			best = s
		}
	}
	return roundScore(best)
}

func roundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
	}
	return v, nil
}
