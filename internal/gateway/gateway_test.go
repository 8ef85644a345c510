// ABOUTME: Tests for the HTTP API, SSE turn streaming, auth and CORS wiring.
// ABOUTME: Uses httptest with the scripted provider and an in-memory store.

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/socrates-gateway/internal/auth"
	"github.com/2389/socrates-gateway/internal/config"
	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/llm/scripted"
	"github.com/2389/socrates-gateway/internal/store"
	"github.com/2389/socrates-gateway/internal/turn"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	gw       *Gateway
	srv      *httptest.Server
	provider *scripted.Provider
	store    *store.MemoryStore
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "memory"
	cfg.Persona.Text = "Eres un mentor."
	if mutate != nil {
		mutate(cfg)
	}

	provider := scripted.New(0, testLogger())
	mem := store.NewMemoryStore()
	gw, err := New(cfg, testLogger(),
		WithProvider(provider),
		WithStore(mem),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})

	return &harness{gw: gw, srv: srv, provider: provider, store: mem}
}

func (h *harness) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) createConversation(t *testing.T) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/conversations", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreateConversationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

type sseEvent struct {
	Event string
	Raw   json.RawMessage
	Data  map[string]any
	Text  string
}

func readEvents(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Raw = json.RawMessage(strings.TrimPrefix(line, "data: "))
			if current.Event == "text" {
				require.NoError(t, json.Unmarshal(current.Raw, &current.Text))
			} else {
				require.NoError(t, json.Unmarshal(current.Raw, &current.Data))
			}
		case line == "":
			if current.Event != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func eventTypes(events []sseEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Event
	}
	return types
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestNew_RegistersBuiltinPacks(t *testing.T) {
	h := newHarness(t, nil)

	ids := make([]string, 0)
	for _, p := range h.gw.Tools() {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"builtin:notes", "builtin:clock"}, ids)
}

func TestCreateAndGetConversation(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	resp := h.do(t, http.MethodGet, "/api/conversations/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec conversation.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, id, rec.ID)
	assert.Empty(t, rec.Messages)

	resp = h.do(t, http.MethodGet, "/api/conversations", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListConversationsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, id, list.Conversations[0].ID)
}

func TestGetConversation_NotFound(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/api/conversations/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "conversation not found", errorBody(t, resp))
}

func TestListConversations_BadLimit(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/api/conversations?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_StreamsTextTurn(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	h.provider.Enqueue(
		turn.TextChunk{Content: "¿Qué "},
		turn.TextChunk{Content: "buscas?"},
		turn.UsageChunk{
			Usage:        conversation.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
			FinishReason: "stop",
		},
	)

	resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"Quiero aprender Go"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp.Body)
	require.Equal(t, []string{"text", "text", "finish"}, eventTypes(events))
	assert.Equal(t, "¿Qué ", events[0].Text)
	assert.Equal(t, "stop", events[2].Data["finishReason"])
	assert.Equal(t, false, events[2].Data["isContinued"])
	usage := events[2].Data["usage"].(map[string]any)
	assert.InDelta(t, 12, usage["totalTokens"], 0)

	conv, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role())
	assert.Equal(t, "Quiero aprender Go", msgs[0].Content())
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role())
	assert.Equal(t, "¿Qué buscas?", msgs[1].Content())

	resp = h.do(t, http.MethodGet, "/api/conversations/"+id+"/usage", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary store.UsageSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, int64(12), summary.TotalTokens)
	assert.Equal(t, int64(1), summary.Requests)
}

func TestSendMessage_ToolTurn(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	h.provider.Enqueue(
		turn.ToolCallChunk{ID: "call_1", Name: "note_set", Arguments: map[string]any{"key": "meta", "value": "correr 10k"}},
		turn.ToolCallChunk{ID: "call_2", Name: "current_time", Arguments: map[string]any{}},
		turn.UsageChunk{FinishReason: "tool_calls"},
	)

	resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"Mi meta es correr 10k"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp.Body)
	require.Equal(t, []string{"tool_call", "tool_call", "tool_result", "tool_result", "finish"}, eventTypes(events))
	assert.Equal(t, "call_1", events[2].Data["toolCallId"])
	clock := events[3].Data["result"].(map[string]any)
	assert.Equal(t, fixedNow.Format(time.RFC3339), clock["time"])
	assert.Equal(t, "tool_calls", events[4].Data["finishReason"])

	resp = h.do(t, http.MethodGet, "/api/conversations/"+id+"/notes", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notes ListNotesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notes))
	require.Len(t, notes.Notes, 1)
	assert.Equal(t, "correr 10k", notes.Notes[0].Value)

	conv, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, conversation.RoleTool, msgs[2].Role())
	assert.Equal(t, "call_1", msgs[2].ToolCallID())
	assert.Equal(t, conversation.RoleTool, msgs[3].Role())
}

func TestSendMessage_ProviderErrorFrame(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	h.provider.Enqueue(turn.TextChunk{Content: "Hm"}, turn.ErrorChunk{Message: "upstream overloaded"})

	resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"hola"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp.Body)
	require.Equal(t, []string{"text", "error"}, eventTypes(events))
	assert.Contains(t, events[1].Data["error"], "upstream overloaded")

	// The user message survives; the failed assistant reply does not.
	conv, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, conv.Messages(), 1)
}

func TestSendMessage_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrEmptyContent.Error(), errorBody(t, resp))

	resp = h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/conversations/missing/messages", `{"content":"hola"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	release, err := h.gw.locks.Acquire(id)
	require.NoError(t, err)
	resp = h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"hola"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	release()

	// Nothing was appended by the rejected requests.
	conv, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, conv.Len())
}

func TestResumeTurn(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	h.provider.Enqueue(turn.ErrorChunk{Message: "boom"})
	resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"hola"}`, nil)
	require.Equal(t, []string{"error"}, eventTypes(readEvents(t, resp.Body)))

	h.provider.Enqueue(turn.TextChunk{Content: "Sigamos."}, turn.UsageChunk{FinishReason: "stop"})
	resp = h.do(t, http.MethodPost, "/api/conversations/"+id+"/turns", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"text", "finish"}, eventTypes(readEvents(t, resp.Body)))

	conv, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Sigamos.", msgs[1].Content())

	resp = h.do(t, http.MethodPost, "/api/conversations/missing/turns", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessage_ReleasesLock(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	for i := 0; i < 2; i++ {
		resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"hola"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		readEvents(t, resp.Body)
	}
	assert.False(t, h.gw.locks.Held(id))
}

func TestAuth_RequiresBearerToken(t *testing.T) {
	const secret = "gateway-test-secret"
	h := newHarness(t, func(cfg *config.Config) { cfg.Auth.JWTSecret = secret })

	resp := h.do(t, http.MethodPost, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health stays public.
	resp = h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	verifier, err := auth.NewJWTVerifier([]byte(secret))
	require.NoError(t, err)
	token, err := verifier.Generate("alice", time.Hour)
	require.NoError(t, err)

	resp = h.do(t, http.MethodPost, "/api/conversations", "", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	})

	resp := h.do(t, http.MethodOptions, "/api/conversations", "", http.Header{
		"Origin":                        {"http://localhost:5173"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = h.do(t, http.MethodGet, "/health", "", http.Header{"Origin": {"http://evil.example"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSSESink_CloseTwice(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := newSSESink(rec, rec)

	require.NoError(t, sink.Write(turn.TextFrame{Text: "hola"}))
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Close(), ErrSinkClosed)
	assert.ErrorIs(t, sink.Write(turn.TextFrame{Text: "late"}), ErrSinkClosed)

	assert.Equal(t, "event: text\ndata: \"hola\"\n\n", rec.Body.String())
}

// closeCountingStore records how often the gateway closes its store.
type closeCountingStore struct {
	*store.MemoryStore
	closes atomic.Int32
}

func (s *closeCountingStore) Close() error {
	s.closes.Add(1)
	return s.MemoryStore.Close()
}

func TestShutdown_LeavesStoreOpenWhileTurnsRun(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "memory"
	cfg.Persona.Text = "Eres un mentor."

	st := &closeCountingStore{MemoryStore: store.NewMemoryStore()}
	gw, err := New(cfg, testLogger(), WithProvider(scripted.New(0, testLogger())), WithStore(st))
	require.NoError(t, err)

	conv, err := gw.CreateConversation(context.Background())
	require.NoError(t, err)
	release, err := gw.beginTurn(context.Background(), conv.ID(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = gw.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, st.closes.Load())

	_, err = gw.beginTurn(context.Background(), conv.ID(), nil)
	assert.ErrorIs(t, err, ErrShuttingDown)

	release()
	require.NoError(t, gw.Shutdown(context.Background()))
	assert.Equal(t, int32(1), st.closes.Load())
}

func TestSendMessage_RejectedWhileShuttingDown(t *testing.T) {
	h := newHarness(t, nil)
	id := h.createConversation(t)

	h.gw.locks.Close()
	resp := h.do(t, http.MethodPost, "/api/conversations/"+id+"/messages", `{"content":"hola"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, ErrShuttingDown.Error(), errorBody(t, resp))
}
