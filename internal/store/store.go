// ABOUTME: Store interfaces and record types for conversations, usage and notes.
// ABOUTME: SQLiteStore and MemoryStore both implement Store.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/socrates-gateway/internal/conversation"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when creating a record whose id is taken.
	ErrDuplicate = errors.New("already exists")
)

// ConversationStore persists conversation aggregates.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *conversation.Conversation) error
	FindByID(ctx context.Context, id string) (*conversation.Conversation, error)
	Save(ctx context.Context, conv *conversation.Conversation) error
	ListConversations(ctx context.Context, limit int) ([]*ConversationSummary, error)
}

// UsageStore records token usage per assistant message.
type UsageStore interface {
	RecordUsage(ctx context.Context, conversationID, messageID string, usage conversation.TokenUsage) error
	GetConversationUsage(ctx context.Context, conversationID string) (*UsageSummary, error)
}

// NoteStore holds the per-conversation notes used by the notes tools.
type NoteStore interface {
	SetNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, conversationID, key string) (*Note, error)
	ListNotes(ctx context.Context, conversationID string) ([]*Note, error)
	DeleteNote(ctx context.Context, conversationID, key string) error
}

// Store is the full persistence surface.
type Store interface {
	ConversationStore
	UsageStore
	NoteStore
	Close() error
}

// ConversationSummary is a listing row for a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// UsageSummary aggregates token usage for a conversation.
type UsageSummary struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
	Requests         int64 `json:"requests"`
}

// Note is a key/value entry scoped to a conversation.
type Note struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
