// ABOUTME: Chunk is the closed set of provider output variants consumed by the coordinator.
// ABOUTME: Variants: TextChunk, ToolCallChunk, UsageChunk, ErrorChunk.

package turn

import "github.com/2389/socrates-gateway/internal/conversation"

// Chunk is one unit of provider output. The set of implementations is
// closed; switch on the concrete type.
type Chunk interface {
	isChunk()
}

// TextChunk carries a fragment of assistant text.
type TextChunk struct {
	Content string
}

// ToolCallChunk declares a fully received tool call.
type ToolCallChunk struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// UsageChunk signals the end of the turn.
type UsageChunk struct {
	Usage        conversation.TokenUsage
	FinishReason string
}

// ErrorChunk reports a provider-side failure.
type ErrorChunk struct {
	Message string
}

func (TextChunk) isChunk()     {}
func (ToolCallChunk) isChunk() {}
func (UsageChunk) isChunk()    {}
func (ErrorChunk) isChunk()    {}
