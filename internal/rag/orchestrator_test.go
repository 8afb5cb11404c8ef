package rag

import (
	"context"
	"errors"
	"math"
	"testing"

	"studyrag/internal/models"
	"studyrag/internal/providers"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(context.Context, string) ([]byte, error) {
	f.calls++
	return []byte{0, 0, 128, 63}, nil
}

type fakeRetriever struct {
	results []models.SearchResultChunk
	err     error
	lastK   int
}

func (f *fakeRetriever) Search(_ context.Context, _ []byte, k int) ([]models.SearchResultChunk, error) {
	f.lastK = k
	return f.results, f.err
}

type fakeLLM struct {
	reply    string
	err      error
	requests []providers.GenerateRequest
}

func (f *fakeLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, f.err
	}
	return providers.GenerateResponse{Text: f.reply}, providers.ProviderInfo{Name: "fake"}, nil
}

type fakeStore struct {
	logs       []models.InteractionLog
	turns      []models.ConversationTurn
	history    []models.ConversationTurn
	historyErr error
	writeErr   error
	lastLimit  int
}

func (f *fakeStore) InsertInteractionLog(_ context.Context, l models.InteractionLog) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeStore) ConversationHistory(_ context.Context, _ string, limit int) ([]models.ConversationTurn, error) {
	f.lastLimit = limit
	return f.history, f.historyErr
}

func (f *fakeStore) AppendConversationTurn(_ context.Context, t models.ConversationTurn) (int64, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.turns = append(f.turns, t)
	return int64(len(f.turns)), nil
}

func chunk(id int64, score float64, text string) models.SearchResultChunk {
	return models.SearchResultChunk{CorpusChunk: models.CorpusChunk{ChunkID: id, DocumentID: 1, Text: text}, Score: score}
}

type harness struct {
	emb   *fakeEmbedder
	ret   *fakeRetriever
	llm   *fakeLLM
	store *fakeStore
	orch  *Orchestrator
}

func newHarness(results ...models.SearchResultChunk) *harness {
	h := &harness{
		emb:   &fakeEmbedder{},
		ret:   &fakeRetriever{results: results},
		llm:   &fakeLLM{reply: "  Cells are the basic unit of life.  "},
		store: &fakeStore{},
	}
	h.orch = NewOrchestrator(h.emb, h.ret, h.llm, h.store)
	h.orch.newID = func() string { return "conv-new" }
	return h
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	h := newHarness(chunk(1, 0.5, "x"))
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := h.orch.Ask(context.Background(), AskRequest{Question: q})
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
	require.Zero(t, h.emb.calls)
	require.Empty(t, h.llm.requests)
}

func TestAskEmptyCorpusSkipsCompletion(t *testing.T) {
	h := newHarness()
	_, err := h.orch.Ask(context.Background(), AskRequest{Question: "What is a cell?"})
	require.ErrorIs(t, err, ErrNoContentFound)
	require.Empty(t, h.llm.requests)
	require.Empty(t, h.store.logs)
}

func TestAskAnswersFromContext(t *testing.T) {
	h := newHarness(
		chunk(3, 0.912345, "A cell is the basic unit of life. Cells divide."),
		chunk(1, 0.5, "Plants make food by photosynthesis."),
	)
	ans, err := h.orch.Ask(context.Background(), AskRequest{Question: " What is a cell? "})
	require.NoError(t, err)

	require.Equal(t, "Cells are the basic unit of life.", ans.Text)
	require.Equal(t, []int64{3, 1}, ans.ChunksUsed)
	require.Equal(t, 0.9123, ans.Confidence)
	require.Empty(t, ans.ConversationID)
	require.Len(t, ans.Sources, 2)
	require.Contains(t, ans.Sources[0].Snippet, "A cell is the basic unit of life.")
	require.Equal(t, AnswerTopK, h.ret.lastK)

	require.Len(t, h.llm.requests, 1)
	prompt := h.llm.requests[0].Prompt
	require.Equal(t, "ask", h.llm.requests[0].Operation)
	require.Contains(t, prompt, "ONLY the context")
	require.Contains(t, prompt, "A cell is the basic unit of life. Cells divide.\n\n---\n\nPlants make food")
	require.Contains(t, prompt, "Question: What is a cell?")
	require.NotContains(t, prompt, "Previous conversation")

	require.Len(t, h.store.logs, 1)
	require.Equal(t, models.InteractionLog{
		Question:   "What is a cell?",
		Answer:     "Cells are the basic unit of life.",
		ChunkIDs:   "3,1",
		Confidence: 0.9123,
	}, h.store.logs[0])
	require.Empty(t, h.store.turns)
}

func TestAskPersistFailureIsNotFatal(t *testing.T) {
	h := newHarness(chunk(1, 0.7, "text"))
	h.store.writeErr = errors.New("db locked")
	ans, err := h.orch.Ask(context.Background(), AskRequest{Question: "q?"})
	require.NoError(t, err)
	require.Equal(t, 0.7, ans.Confidence)
}

func TestAskCompletionFailure(t *testing.T) {
	h := newHarness(chunk(1, 0.7, "text"))
	h.llm.err = providers.ErrRetriesExhausted
	_, err := h.orch.Ask(context.Background(), AskRequest{Question: "q?"})
	require.ErrorIs(t, err, ErrCompletion)
	require.ErrorIs(t, err, providers.ErrRetriesExhausted)
	require.Empty(t, h.store.logs)
}

func TestAskRetrieveFailure(t *testing.T) {
	h := newHarness()
	h.ret.err = errors.New("corpus unavailable")
	_, err := h.orch.Ask(context.Background(), AskRequest{Question: "q?"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoContentFound)
	require.Empty(t, h.llm.requests)
}

func TestChatStartsConversation(t *testing.T) {
	h := newHarness(chunk(4, 0.66666, "Mitosis splits a cell."))
	ans, err := h.orch.Chat(context.Background(), ChatRequest{Question: "What is mitosis?"})
	require.NoError(t, err)
	require.Equal(t, "conv-new", ans.ConversationID)
	require.Zero(t, h.store.lastLimit)

	require.Len(t, h.store.turns, 2)
	user, assistant := h.store.turns[0], h.store.turns[1]
	require.Equal(t, models.RoleUser, user.Role)
	require.Equal(t, "What is mitosis?", user.Content)
	require.Nil(t, user.Confidence)
	require.Equal(t, models.RoleAssistant, assistant.Role)
	require.Equal(t, "Cells are the basic unit of life.", assistant.Content)
	require.Equal(t, "4", assistant.ChunkIDs)
	require.NotNil(t, assistant.Confidence)
	require.Equal(t, 0.6667, *assistant.Confidence)
	for _, turn := range h.store.turns {
		require.Equal(t, "conv-new", turn.ConversationID)
	}
}

func TestChatUsesHistory(t *testing.T) {
	h := newHarness(chunk(4, 0.5, "Mitosis splits a cell."))
	h.store.history = []models.ConversationTurn{
		{Role: models.RoleUser, Content: "What is a cell?"},
		{Role: models.RoleAssistant, Content: "The unit of life."},
	}
	ans, err := h.orch.Chat(context.Background(), ChatRequest{Question: "How does it divide?", ConversationID: "c-42"})
	require.NoError(t, err)
	require.Equal(t, "c-42", ans.ConversationID)
	require.Equal(t, HistoryTurns, h.store.lastLimit)
	require.Contains(t, h.llm.requests[0].Prompt, "Previous conversation:\nStudent: What is a cell?\nAssistant: The unit of life.\n")
	require.Equal(t, "chat", h.llm.requests[0].Operation)
}

func TestChatHistoryFailureIsNotFatal(t *testing.T) {
	h := newHarness(chunk(4, 0.5, "Mitosis splits a cell."))
	h.store.historyErr = errors.New("timeout")
	ans, err := h.orch.Chat(context.Background(), ChatRequest{Question: "How?", ConversationID: "c-1"})
	require.NoError(t, err)
	require.Equal(t, "c-1", ans.ConversationID)
	require.NotContains(t, h.llm.requests[0].Prompt, "Previous conversation")
	require.Len(t, h.store.turns, 2)
}

func TestNotesUsesWiderContextAndFormat(t *testing.T) {
	h := newHarness(chunk(2, 0.8, "Osmosis moves water."))
	notes, err := h.orch.Notes(context.Background(), NotesRequest{Topic: "osmosis", Format: "FlashCards"})
	require.NoError(t, err)
	require.Equal(t, FormatFlashcards, notes.Format)
	require.Equal(t, NotesTopK, h.ret.lastK)
	require.Equal(t, []int64{2}, notes.ChunksUsed)
	require.Equal(t, "notes", h.llm.requests[0].Operation)
	require.Equal(t, notesMaxTokens, h.llm.requests[0].MaxTokens)
	require.Contains(t, h.llm.requests[0].Prompt, "Q: ...")
	require.Contains(t, h.llm.requests[0].Prompt, "Topic: osmosis")
	require.Len(t, h.store.logs, 1)
}

func TestNotesUnknownFormatDefaults(t *testing.T) {
	h := newHarness(chunk(2, 0.8, "Osmosis moves water."))
	notes, err := h.orch.Notes(context.Background(), NotesRequest{Topic: "osmosis", Format: "haiku"})
	require.NoError(t, err)
	require.Equal(t, FormatBulletPoints, notes.Format)
	require.Contains(t, h.llm.requests[0].Prompt, "bullet points")

	_, err = h.orch.Notes(context.Background(), NotesRequest{Topic: " "})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHistory(t *testing.T) {
	h := newHarness()
	h.store.history = []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}}
	turns, err := h.orch.History(context.Background(), "c-1", 50)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, 50, h.store.lastLimit)

	_, err = h.orch.History(context.Background(), "", 50)
	require.ErrorIs(t, err, ErrInvalidRequest)

	h.store.historyErr = errors.New("down")
	_, err = h.orch.History(context.Background(), "c-1", 50)
	require.Error(t, err)
}

func TestConfidence(t *testing.T) {
	require.Zero(t, Confidence(nil))
	require.Equal(t, 0.9, Confidence([]models.SearchResultChunk{chunk(1, 0.3, ""), chunk(2, 0.89999, "")}))
	require.Equal(t, 0.9, Confidence([]models.SearchResultChunk{chunk(1, math.NaN(), ""), chunk(2, 0.9, "")}))
	require.Equal(t, 0.0, Confidence([]models.SearchResultChunk{chunk(1, math.Inf(1), ""), chunk(2, -0.2, "")}))
}
