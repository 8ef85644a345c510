// ABOUTME: StreamingResponse accumulates one turn's provider output.
// ABOUTME: States move idle -> streaming -> completed|failed; chunks are accepted only while streaming.

package conversation

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ResponseState is the lifecycle state of a StreamingResponse.
type ResponseState string

const (
	ResponseIdle      ResponseState = "idle"
	ResponseStreaming ResponseState = "streaming"
	ResponseCompleted ResponseState = "completed"
	ResponseFailed    ResponseState = "failed"
)

// DefaultFinishReason is used when the provider does not report one.
const DefaultFinishReason = "stop"

// ChunkKind discriminates the records kept by a StreamingResponse.
type ChunkKind string

const (
	ChunkText       ChunkKind = "text"
	ChunkToolCall   ChunkKind = "tool_call"
	ChunkToolResult ChunkKind = "tool_result"
)

// ResponseChunk is one recorded fragment of the streamed output.
type ResponseChunk struct {
	Kind       ChunkKind
	Text       string
	ToolCallID string
	ToolName   string
	Args       map[string]any
	Result     any
}

// StreamingResponse is the transient accumulator for an in-flight turn.
// It is never persisted; its settled content becomes an assistant Message.
type StreamingResponse struct {
	mu           sync.Mutex
	state        ResponseState
	text         strings.Builder
	chunks       []ResponseChunk
	usage        TokenUsage
	finishReason string
	err          error
	messageID    string
}

// NewStreamingResponse returns a response in the idle state.
func NewStreamingResponse() *StreamingResponse {
	return &StreamingResponse{state: ResponseIdle}
}

// Start begins accepting chunks.
func (r *StreamingResponse) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ResponseIdle {
		return r.invalidLocked(ResponseStreaming)
	}
	r.state = ResponseStreaming
	return nil
}

// AppendText extends the accumulated text.
func (r *StreamingResponse) AppendText(fragment string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireStreamingLocked("text chunk"); err != nil {
		return err
	}
	r.text.WriteString(fragment)
	r.chunks = append(r.chunks, ResponseChunk{Kind: ChunkText, Text: fragment})
	return nil
}

// RecordToolCall records a tool call declared by the provider.
func (r *StreamingResponse) RecordToolCall(callID, name string, args map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireStreamingLocked("tool call chunk"); err != nil {
		return err
	}
	r.chunks = append(r.chunks, ResponseChunk{
		Kind:       ChunkToolCall,
		ToolCallID: callID,
		ToolName:   name,
		Args:       maps.Clone(args),
	})
	return nil
}

// RecordToolResult records the successful result of a tool call.
func (r *StreamingResponse) RecordToolResult(callID, name string, result any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireStreamingLocked("tool result chunk"); err != nil {
		return err
	}
	r.chunks = append(r.chunks, ResponseChunk{
		Kind:       ChunkToolResult,
		ToolCallID: callID,
		ToolName:   name,
		Result:     result,
	})
	return nil
}

// Complete freezes usage and finish reason and settles the response.
func (r *StreamingResponse) Complete(usage TokenUsage, finishReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ResponseStreaming {
		return r.invalidLocked(ResponseCompleted)
	}
	if finishReason == "" {
		finishReason = DefaultFinishReason
	}
	r.usage = usage
	r.finishReason = finishReason
	r.state = ResponseCompleted
	return nil
}

// Fail records the cause and settles the response as failed. Valid from
// idle or streaming.
func (r *StreamingResponse) Fail(cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ResponseIdle && r.state != ResponseStreaming {
		return r.invalidLocked(ResponseFailed)
	}
	r.err = cause
	r.state = ResponseFailed
	return nil
}

// State returns the current lifecycle state.
func (r *StreamingResponse) State() ResponseState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsStreaming reports whether chunks are still being accepted.
func (r *StreamingResponse) IsStreaming() bool { return r.State() == ResponseStreaming }

// Text returns the accumulated text.
func (r *StreamingResponse) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text.String()
}

// Chunks returns the recorded chunks in arrival order.
func (r *StreamingResponse) Chunks() []ResponseChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chunks)
}

// Usage returns the usage frozen by Complete.
func (r *StreamingResponse) Usage() TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// FinishReason returns the reason frozen by Complete.
func (r *StreamingResponse) FinishReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishReason
}

// Err returns the cause recorded by Fail.
func (r *StreamingResponse) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// MessageID returns the id of the assistant message committed for this
// response, empty until the orchestrator commits one.
func (r *StreamingResponse) MessageID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messageID
}

// attachMessage binds the committed assistant message. Only one message may
// be attached per response.
func (r *StreamingResponse) attachMessage(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messageID != "" {
		return fmt.Errorf("%w: response already bound to message %s", ErrAlreadyCommitted, r.messageID)
	}
	if r.state != ResponseStreaming && r.state != ResponseCompleted {
		return fmt.Errorf("%w: cannot commit a message for a %s response", ErrInvalidTransition, r.state)
	}
	r.messageID = id
	return nil
}

func (r *StreamingResponse) requireStreamingLocked(what string) error {
	if r.state != ResponseStreaming {
		return fmt.Errorf("%w: %s rejected in %s state", ErrInvalidTransition, what, r.state)
	}
	return nil
}

func (r *StreamingResponse) invalidLocked(to ResponseState) error {
	return fmt.Errorf("%w: streaming response cannot move %s -> %s", ErrInvalidTransition, r.state, to)
}
