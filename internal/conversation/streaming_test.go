// ABOUTME: Tests for the StreamingResponse state machine.
// ABOUTME: Covers legal transitions, chunk accumulation and rejection of misuse.

package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingResponse_HappyPath(t *testing.T) {
	r := NewStreamingResponse()
	assert.Equal(t, ResponseIdle, r.State())

	require.NoError(t, r.Start())
	assert.True(t, r.IsStreaming())

	require.NoError(t, r.AppendText("Hola"))
	require.NoError(t, r.AppendText(" mundo"))
	require.NoError(t, r.RecordToolCall("1", "search", map[string]any{"q": "x"}))
	require.NoError(t, r.RecordToolResult("1", "search", map[string]any{"hits": 3}))

	usage := TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	require.NoError(t, r.Complete(usage, "tool_calls"))

	assert.Equal(t, ResponseCompleted, r.State())
	assert.Equal(t, "Hola mundo", r.Text())
	assert.Equal(t, usage, r.Usage())
	assert.Equal(t, "tool_calls", r.FinishReason())

	chunks := r.Chunks()
	require.Len(t, chunks, 4)
	assert.Equal(t, ChunkText, chunks[0].Kind)
	assert.Equal(t, ChunkToolCall, chunks[2].Kind)
	assert.Equal(t, "search", chunks[2].ToolName)
	assert.Equal(t, ChunkToolResult, chunks[3].Kind)
}

func TestStreamingResponse_DefaultFinishReason(t *testing.T) {
	r := NewStreamingResponse()
	require.NoError(t, r.Start())
	require.NoError(t, r.Complete(TokenUsage{}, ""))
	assert.Equal(t, DefaultFinishReason, r.FinishReason())
}

func TestStreamingResponse_StartOnlyFromIdle(t *testing.T) {
	r := NewStreamingResponse()
	require.NoError(t, r.Start())

	err := r.Start()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStreamingResponse_CannotCompleteTwice(t *testing.T) {
	tests := []struct {
		name   string
		settle func(r *StreamingResponse) error
	}{
		{"after completed", func(r *StreamingResponse) error { return r.Complete(TokenUsage{}, "stop") }},
		{"after failed", func(r *StreamingResponse) error { return r.Fail(errors.New("boom")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStreamingResponse()
			require.NoError(t, r.Start())
			require.NoError(t, tt.settle(r))

			err := r.Complete(TokenUsage{TotalTokens: 1}, "stop")
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestStreamingResponse_CompleteRequiresStreaming(t *testing.T) {
	r := NewStreamingResponse()
	assert.ErrorIs(t, r.Complete(TokenUsage{}, "stop"), ErrInvalidTransition)
}

func TestStreamingResponse_FailFromIdleOrStreaming(t *testing.T) {
	idle := NewStreamingResponse()
	require.NoError(t, idle.Fail(errors.New("no start")))
	assert.Equal(t, ResponseFailed, idle.State())
	assert.EqualError(t, idle.Err(), "no start")

	streaming := NewStreamingResponse()
	require.NoError(t, streaming.Start())
	require.NoError(t, streaming.Fail(errors.New("mid stream")))
	assert.Equal(t, ResponseFailed, streaming.State())

	assert.ErrorIs(t, streaming.Fail(errors.New("again")), ErrInvalidTransition)
}

func TestStreamingResponse_RejectsChunksOutsideStreaming(t *testing.T) {
	r := NewStreamingResponse()
	assert.ErrorIs(t, r.AppendText("early"), ErrInvalidTransition)

	require.NoError(t, r.Start())
	require.NoError(t, r.Complete(TokenUsage{}, "stop"))

	assert.ErrorIs(t, r.AppendText("late"), ErrInvalidTransition)
	assert.ErrorIs(t, r.RecordToolCall("1", "search", nil), ErrInvalidTransition)
	assert.ErrorIs(t, r.RecordToolResult("1", "search", "ok"), ErrInvalidTransition)
	assert.Empty(t, r.Chunks())
	assert.Empty(t, r.Text())
}
