// ABOUTME: Tests for the OpenAI provider against a fake SSE endpoint.
// ABOUTME: Covers event translation, request mapping and transport errors.

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/turn"
)

func sseServer(t *testing.T, events []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(p *Provider, req turn.Request) ([]turn.Chunk, error) {
	var chunks []turn.Chunk
	for c, err := range p.Stream(context.Background(), req) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestStream_TranslatesEvents(t *testing.T) {
	events := []string{
		`{"type":"response.output_text.delta","delta":"Hola ","item_id":"m1","output_index":0,"content_index":0,"sequence_number":1}`,
		`{"type":"response.output_text.delta","delta":"mundo","item_id":"m1","output_index":0,"content_index":0,"sequence_number":2}`,
		`{"type":"response.output_item.done","output_index":1,"sequence_number":3,"item":{"type":"function_call","id":"fc1","call_id":"call_1","name":"note_get","arguments":"{\"key\":\"meta\"}","status":"completed"}}`,
		`{"type":"response.completed","sequence_number":4,"response":{"id":"r1","object":"response","status":"completed","usage":{"input_tokens":12,"output_tokens":4,"total_tokens":16}}}`,
	}
	var body map[string]any
	srv := sseServer(t, events, &body)

	p, err := New(Config{APIKey: "test", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	chunks, err := collect(p, turn.Request{
		Model:    "gpt-test",
		Messages: []*conversation.Message{conversation.NewSystemMessage("persona"), conversation.NewUserMessage("hola")},
		Tools:    []turn.ToolDefinition{{Name: "note_get", Description: "Read a note"}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, turn.TextChunk{Content: "Hola "}, chunks[0])
	assert.Equal(t, turn.TextChunk{Content: "mundo"}, chunks[1])
	assert.Equal(t, turn.ToolCallChunk{ID: "call_1", Name: "note_get", Arguments: map[string]any{"key": "meta"}}, chunks[2])
	assert.Equal(t, turn.UsageChunk{
		Usage:        conversation.TokenUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
		FinishReason: "tool_calls",
	}, chunks[3])

	assert.Equal(t, "gpt-test", body["model"])
	assert.Equal(t, true, body["stream"])
	input, ok := body["input"].([]any)
	require.True(t, ok)
	assert.Len(t, input, 2)
}

func TestStream_ErrorEvent(t *testing.T) {
	srv := sseServer(t, []string{`{"type":"error","code":"rate_limit","message":"slow down","sequence_number":1}`}, nil)

	p, err := New(Config{APIKey: "test", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	chunks, err := collect(p, turn.Request{Model: "gpt-test"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, turn.ErrorChunk{Message: "slow down"}, chunks[0])
}

func TestStream_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "test", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	_, err = collect(p, turn.Request{Model: "gpt-test"})
	assert.Error(t, err)
}

func TestInputItems_MapsToolHistory(t *testing.T) {
	inv, err := conversation.NewToolInvocation("call_1", "current_time", map[string]any{})
	require.NoError(t, err)
	toolMsg, err := conversation.NewToolMessage("call_1", "current_time", map[string]any{"time": "now"})
	require.NoError(t, err)

	items, err := inputItems([]*conversation.Message{
		conversation.NewAssistantMessage("", []*conversation.ToolInvocation{inv}),
		toolMsg,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NotNil(t, items[0].OfFunctionCall)
	assert.Equal(t, "call_1", items[0].OfFunctionCall.CallID)
	assert.Equal(t, "{}", items[0].OfFunctionCall.Arguments)

	require.NotNil(t, items[1].OfFunctionCallOutput)
	assert.Equal(t, "call_1", items[1].OfFunctionCallOutput.CallID)
}

func TestInputItems_AnswersInterruptedCalls(t *testing.T) {
	pending, err := conversation.NewToolInvocation("call_1", "current_time", map[string]any{})
	require.NoError(t, err)
	executing, err := conversation.NewToolInvocation("call_2", "note_set", map[string]any{"key": "goal"})
	require.NoError(t, err)
	require.NoError(t, executing.MarkAsExecuting())

	items, err := inputItems([]*conversation.Message{
		conversation.NewUserMessage("hola"),
		conversation.NewAssistantMessage("", []*conversation.ToolInvocation{pending, executing}),
		conversation.NewUserMessage("¿sigues ahí?"),
	})
	require.NoError(t, err)
	require.Len(t, items, 6)

	calls := map[string]int{}
	outputs := map[string]int{}
	for _, item := range items {
		if item.OfFunctionCall != nil {
			calls[item.OfFunctionCall.CallID]++
		}
		if item.OfFunctionCallOutput != nil {
			outputs[item.OfFunctionCallOutput.CallID]++
		}
	}
	assert.Equal(t, map[string]int{"call_1": 1, "call_2": 1}, calls)
	assert.Equal(t, calls, outputs)

	require.NotNil(t, items[2].OfFunctionCallOutput)
	var out turn.ToolErrorResult
	require.NoError(t, json.Unmarshal([]byte(items[2].OfFunctionCallOutput.Output.OfString.Value), &out))
	assert.True(t, out.Error)
	assert.NotEmpty(t, out.Message)
}

func TestToolParams(t *testing.T) {
	tools, err := toolParams([]turn.ToolDefinition{{
		Name:        "note_get",
		Description: "Read a note",
		Schema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"key": {Type: "string"}},
			Required:   []string{"key"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfFunction)
	assert.Equal(t, "note_get", tools[0].OfFunction.Name)
	assert.Contains(t, tools[0].OfFunction.Parameters, "properties")
	assert.Equal(t, []any{"key"}, tools[0].OfFunction.Parameters["required"])

	_, err = toolParams([]turn.ToolDefinition{{
		Name:   "broken",
		Schema: &jsonschema.Schema{Enum: []any{math.NaN()}},
	}})
	assert.ErrorContains(t, err, "encode schema for broken")
}

func TestParseArguments(t *testing.T) {
	args, err := parseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = parseArguments("{bad")
	assert.Error(t, err)
}
