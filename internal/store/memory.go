// ABOUTME: In-memory Store implementation for tests and ephemeral deployments
// ABOUTME: Keeps conversation records as snapshots so callers never share state

package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/socrates-gateway/internal/conversation"
)

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

type memoryConversation struct {
	record    conversation.Record
	updatedAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*memoryConversation
	usage         map[string][]conversation.TokenUsage
	notes         map[string]map[string]*Note // conversation ID -> key -> note
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*memoryConversation),
		usage:         make(map[string][]conversation.TokenUsage),
		notes:         make(map[string]map[string]*Note),
	}
}

// CreateConversation stores a new conversation snapshot.
func (m *MemoryStore) CreateConversation(_ context.Context, conv *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID()]; exists {
		return ErrDuplicate
	}
	m.conversations[conv.ID()] = &memoryConversation{
		record:    copyRecord(conv.Record()),
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// FindByID rebuilds a conversation from its latest snapshot.
func (m *MemoryStore) FindByID(_ context.Context, id string) (*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conversation.Restore(copyRecord(c.record))
}

// Save replaces the stored snapshot with the conversation's current state.
func (m *MemoryStore) Save(_ context.Context, conv *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations[conv.ID()] = &memoryConversation{
		record:    copyRecord(conv.Record()),
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// ListConversations returns summaries ordered by most recent update.
func (m *MemoryStore) ListConversations(_ context.Context, limit int) ([]*ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*ConversationSummary, 0, len(m.conversations))
	for id, c := range m.conversations {
		out = append(out, &ConversationSummary{
			ID:           id,
			CreatedAt:    c.record.CreatedAt,
			UpdatedAt:    c.updatedAt,
			MessageCount: len(c.record.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordUsage appends usage for a conversation.
func (m *MemoryStore) RecordUsage(_ context.Context, conversationID, _ string, usage conversation.TokenUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[conversationID] = append(m.usage[conversationID], usage)
	return nil
}

// GetConversationUsage sums recorded usage for a conversation.
func (m *MemoryStore) GetConversationUsage(_ context.Context, conversationID string) (*UsageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s UsageSummary
	for _, u := range m.usage[conversationID] {
		s.PromptTokens += u.PromptTokens
		s.CompletionTokens += u.CompletionTokens
		s.TotalTokens += u.TotalTokens
		s.Requests++
	}
	return &s, nil
}

// SetNote creates or updates a note.
func (m *MemoryStore) SetNote(_ context.Context, note *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey, ok := m.notes[note.ConversationID]
	if !ok {
		byKey = make(map[string]*Note)
		m.notes[note.ConversationID] = byKey
	}

	now := time.Now().UTC()
	if existing, ok := byKey[note.Key]; ok {
		note.ID = existing.ID
		note.CreatedAt = existing.CreatedAt
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	n := *note
	byKey[note.Key] = &n
	return nil
}

// GetNote returns a copy of the note or ErrNotFound.
func (m *MemoryStore) GetNote(_ context.Context, conversationID, key string) (*Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[conversationID][key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

// ListNotes returns copies of all notes for a conversation ordered by key.
func (m *MemoryStore) ListNotes(_ context.Context, conversationID string) ([]*Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := slices.Sorted(maps.Keys(m.notes[conversationID]))
	notes := make([]*Note, 0, len(keys))
	for _, k := range keys {
		cp := *m.notes[conversationID][k]
		notes = append(notes, &cp)
	}
	return notes, nil
}

// DeleteNote removes a note or returns ErrNotFound.
func (m *MemoryStore) DeleteNote(_ context.Context, conversationID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[conversationID][key]; !ok {
		return ErrNotFound
	}
	delete(m.notes[conversationID], key)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// copyRecord detaches the slices of a record from the caller.
func copyRecord(rec conversation.Record) conversation.Record {
	out := rec
	out.Messages = make([]conversation.MessageRecord, len(rec.Messages))
	for i, msg := range rec.Messages {
		out.Messages[i] = msg
		out.Messages[i].ToolInvocations = slices.Clone(msg.ToolInvocations)
		for j := range out.Messages[i].ToolInvocations {
			out.Messages[i].ToolInvocations[j].Args = maps.Clone(msg.ToolInvocations[j].Args)
		}
	}
	return out
}
