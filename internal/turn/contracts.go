// ABOUTME: Collaborator contracts for the turn coordinator.
// ABOUTME: Provider, tool registry, repository, sink and optional usage recorder.

package turn

import (
	"context"
	"iter"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/socrates-gateway/internal/conversation"
)

// ToolDefinition advertises one tool to the provider.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Request is the outbound model request for one turn.
type Request struct {
	Model    string
	Messages []*conversation.Message
	Tools    []ToolDefinition
}

// Provider streams model output for a request. The sequence is finite and
// terminated by one UsageChunk or ErrorChunk; a non-nil error is a fault in
// the provider transport.
type Provider interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]
}

// ToolRegistry exposes the tool catalogue and executes tools by name.
type ToolRegistry interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Repository loads and saves conversations. FindByID returns an error
// wrapping store.ErrNotFound when the id is unknown.
type Repository interface {
	FindByID(ctx context.Context, id string) (*conversation.Conversation, error)
	Save(ctx context.Context, conv *conversation.Conversation) error
}

// Sink receives the frames of one turn. Close is called exactly once.
type Sink interface {
	Write(f Frame) error
	Close() error
}

// UsageRecorder stores per-message token usage.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, conversationID, messageID string, usage conversation.TokenUsage) error
}
