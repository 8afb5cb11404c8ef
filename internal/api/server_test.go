package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studyrag/internal/models"
	"studyrag/internal/rag"
	"studyrag/internal/schedule"
	"studyrag/internal/source"
	"studyrag/internal/workflows"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnswerer struct {
	answer    rag.Answer
	notes     rag.Notes
	turns     []models.ConversationTurn
	err       error
	lastChat  rag.ChatRequest
	lastNotes rag.NotesRequest
	lastLimit int
}

func (f *fakeAnswerer) Ask(_ context.Context, req rag.AskRequest) (rag.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return rag.Answer{}, fmt.Errorf("%w: question is required", rag.ErrInvalidRequest)
	}
	return f.answer, f.err
}

func (f *fakeAnswerer) Chat(_ context.Context, req rag.ChatRequest) (rag.Answer, error) {
	f.lastChat = req
	return f.answer, f.err
}

func (f *fakeAnswerer) Notes(_ context.Context, req rag.NotesRequest) (rag.Notes, error) {
	f.lastNotes = req
	return f.notes, f.err
}

func (f *fakeAnswerer) History(_ context.Context, _ string, limit int) ([]models.ConversationTurn, error) {
	f.lastLimit = limit
	return f.turns, f.err
}

type fakeStarter struct {
	inputs []workflows.DocumentIngestInput
	err    error
}

func (f *fakeStarter) StartIngest(_ context.Context, in workflows.DocumentIngestInput) (string, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return "", f.err
	}
	return workflows.WorkflowID(in.Key), nil
}

func newTestServer(t *testing.T, a *fakeAnswerer, st IngestStarter) (*gin.Engine, *source.LocalInbox) {
	t.Helper()
	inbox, err := source.NewLocalInbox(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(Deps{Answerer: a, Inbox: inbox, Starter: st, MaxUploadBytes: 1 << 20})
	return srv.Routes(), inbox
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, &fakeAnswerer{}, nil)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAsk(t *testing.T) {
	a := &fakeAnswerer{answer: rag.Answer{
		Text:       "Photosynthesis makes sugar.",
		ChunksUsed: []int64{3, 1},
		Confidence: 0.8123,
		Sources:    []rag.Source{{ChunkID: 3, DocumentID: 1, Score: 0.9, Snippet: "sugar"}},
	}}
	h, _ := newTestServer(t, a, nil)

	rec := doJSON(t, h, http.MethodPost, "/ask", `{"question":"what is photosynthesis?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "Photosynthesis makes sugar.", body["answer"])
	require.Equal(t, []any{3.0, 1.0}, body["chunksUsed"])
	require.InDelta(t, 0.8123, body["confidence"], 1e-9)
	require.NotContains(t, body, "conversationId")
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	require.Equal(t, 3.0, sources[0].(map[string]any)["chunkId"])
}

func TestAskErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed", body: `{"question":`, status: http.StatusBadRequest},
		{name: "blank", body: `{"question":"  "}`, status: http.StatusBadRequest},
		{name: "no content", body: `{"question":"q"}`, err: rag.ErrNoContentFound, status: http.StatusNotFound},
		{name: "completion", body: `{"question":"q"}`, err: fmt.Errorf("%w: boom", rag.ErrCompletion), status: http.StatusInternalServerError},
		{name: "other", body: `{"question":"q"}`, err: errors.New("db gone"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestServer(t, &fakeAnswerer{err: tc.err}, nil)
			rec := doJSON(t, h, http.MethodPost, "/ask", tc.body)
			require.Equal(t, tc.status, rec.Code)
			msg, _ := decode(t, rec)["error"].(string)
			require.NotEmpty(t, msg)
			require.NotContains(t, msg, "db gone")
		})
	}
}

func TestAskEmptyChunksSerializeAsArray(t *testing.T) {
	h, _ := newTestServer(t, &fakeAnswerer{answer: rag.Answer{Text: "x"}}, nil)
	rec := doJSON(t, h, http.MethodPost, "/ask", `{"question":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"chunksUsed":[]`)
}

func TestChatPassesConversationID(t *testing.T) {
	a := &fakeAnswerer{answer: rag.Answer{Text: "hi", ConversationID: "conv-1"}}
	h, _ := newTestServer(t, a, nil)
	rec := doJSON(t, h, http.MethodPost, "/chat", `{"question":"and then?","conversationId":"conv-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "conv-1", a.lastChat.ConversationID)
	require.Equal(t, "conv-1", decode(t, rec)["conversationId"])
}

func TestNotes(t *testing.T) {
	a := &fakeAnswerer{notes: rag.Notes{Text: "- cells", Format: rag.NotesFormat("outline"), ChunksUsed: []int64{2}}}
	h, _ := newTestServer(t, a, nil)
	rec := doJSON(t, h, http.MethodPost, "/notes", `{"topic":"cells","format":"outline"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "outline", a.lastNotes.Format)
	body := decode(t, rec)
	require.Equal(t, "- cells", body["notes"])
	require.Equal(t, "outline", body["format"])
}

func TestConversationHistory(t *testing.T) {
	conf := 0.5
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &fakeAnswerer{turns: []models.ConversationTurn{
		{ConversationID: "c", Role: models.RoleUser, Content: "q", CreatedAt: created},
		{ConversationID: "c", Role: models.RoleAssistant, Content: "a", ChunkIDs: "4,9", Confidence: &conf, CreatedAt: created},
	}}
	h, _ := newTestServer(t, a, nil)

	rec := doJSON(t, h, http.MethodGet, "/conversations/c", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, defaultHistoryLimit, a.lastLimit)
	body := decode(t, rec)
	require.Equal(t, "c", body["conversationId"])
	turns := body["turns"].([]any)
	require.Len(t, turns, 2)
	second := turns[1].(map[string]any)
	require.Equal(t, "assistant", second["role"])
	require.Equal(t, []any{4.0, 9.0}, second["chunkIds"])
	require.Equal(t, 0.5, second["confidence"])

	rec = doJSON(t, h, http.MethodGet, "/conversations/c?limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, a.lastLimit)

	rec = doJSON(t, h, http.MethodGet, "/conversations/c?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadSavesAndStartsIngest(t *testing.T) {
	st := &fakeStarter{}
	h, inbox := newTestServer(t, &fakeAnswerer{}, st)

	req := multipartUpload(t, "Cell Biology.md", "# Cells\n\nCells are small.", map[string]string{"class": "10", "subject": "Biology"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	key := body["key"].(string)
	require.True(t, strings.HasSuffix(key, source.CleanKey("Cell Biology.md")))
	require.Equal(t, workflows.WorkflowID(key), body["workflowId"])

	require.Len(t, st.inputs, 1)
	require.Equal(t, key, st.inputs[0].Key)
	require.Equal(t, "Cell Biology.md", st.inputs[0].Name)
	require.Equal(t, models.ClassMeta{Class: "10", Subject: "Biology"}, st.inputs[0].Meta)

	data, err := source.ReadAll(context.Background(), inbox, key)
	require.NoError(t, err)
	require.Equal(t, "# Cells\n\nCells are small.", string(data))
}

func TestUploadKeepsFileWhenStartFails(t *testing.T) {
	st := &fakeStarter{err: errors.New("temporal unavailable")}
	h, inbox := newTestServer(t, &fakeAnswerer{}, st)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "notes.txt", "plain notes", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotContains(t, decode(t, rec), "workflowId")

	objs, err := inbox.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 1)
}

type noDocuments struct{}

func (noDocuments) HasDocument(context.Context, string) (bool, error) { return false, nil }

func TestUploadInfoSurvivesStartFailure(t *testing.T) {
	st := &fakeStarter{err: errors.New("temporal unavailable")}
	h, inbox := newTestServer(t, &fakeAnswerer{}, st)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "Cells.pdf", "%PDF-1.4", map[string]string{"class": " 9 ", "subject": "Biology", "chapter": "1"}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	key := decode(t, rec)["key"].(string)

	st.err = nil
	st.inputs = nil
	require.NoError(t, schedule.NewInboxScanJob(inbox, noDocuments{}, st).Run(context.Background()))
	require.Len(t, st.inputs, 1)
	require.Equal(t, workflows.DocumentIngestInput{
		Key:  key,
		Name: "Cells.pdf",
		Meta: models.ClassMeta{Class: "9", Subject: "Biology", Chapter: "1"},
	}, st.inputs[0])
}

func TestUploadRejects(t *testing.T) {
	h, inbox := newTestServer(t, &fakeAnswerer{}, &fakeStarter{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "slides.pptx", "x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "", "", map[string]string{"class": "9"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	objs, err := inbox.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, objs)
}

func TestCORS(t *testing.T) {
	inbox, err := source.NewLocalInbox(t.TempDir())
	require.NoError(t, err)
	h := NewServer(Deps{Answerer: &fakeAnswerer{}, Inbox: inbox, CORSOrigins: []string{"https://study.example"}}).Routes()

	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "https://study.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://study.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	open, _ := newTestServer(t, &fakeAnswerer{}, nil)
	rec = doJSON(t, open, http.MethodGet, "/healthz", "")
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
