// ABOUTME: Plain records used to persist and rehydrate conversations.
// ABOUTME: Stores and the HTTP API exchange these instead of the live aggregate.

package conversation

import (
	"fmt"
	"maps"
	"time"
)

// InvocationRecord is the stored form of a ToolInvocation.
type InvocationRecord struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Args          map[string]any  `json:"args"`
	State         InvocationState `json:"state"`
	Result        any             `json:"result,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
}

// MessageRecord is the stored form of a Message.
type MessageRecord struct {
	ID              string             `json:"id"`
	Role            Role               `json:"role"`
	Content         string             `json:"content"`
	ToolCallID      string             `json:"toolCallId,omitempty"`
	ToolName        string             `json:"toolName,omitempty"`
	ToolInvocations []InvocationRecord `json:"toolInvocations,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Record is the stored form of a Conversation.
type Record struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Messages  []MessageRecord `json:"messages"`
}

// Record snapshots the conversation, including current invocation states.
func (c *Conversation) Record() Record {
	msgs := c.Messages()
	rec := Record{
		ID:        c.id,
		CreatedAt: c.createdAt,
		Messages:  make([]MessageRecord, 0, len(msgs)),
	}
	for _, m := range msgs {
		rec.Messages = append(rec.Messages, m.Record())
	}
	return rec
}

// Record snapshots the message.
func (m *Message) Record() MessageRecord {
	rec := MessageRecord{
		ID:         m.id,
		Role:       m.role,
		Content:    m.content,
		ToolCallID: m.toolCallID,
		ToolName:   m.toolName,
		CreatedAt:  m.createdAt,
	}
	for _, inv := range m.invocations {
		rec.ToolInvocations = append(rec.ToolInvocations, inv.Record())
	}
	return rec
}

// Record snapshots the invocation.
func (t *ToolInvocation) Record() InvocationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return InvocationRecord{
		ID:            t.id,
		Name:          t.name,
		Args:          maps.Clone(t.args),
		State:         t.state,
		Result:        t.result,
		FailureReason: t.failure,
	}
}

// Restore rebuilds a conversation from its record.
func Restore(rec Record) (*Conversation, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: conversation record without id", ErrInvalidMessage)
	}
	conv := &Conversation{id: rec.ID, createdAt: rec.CreatedAt}
	for _, mr := range rec.Messages {
		m, err := RestoreMessage(mr)
		if err != nil {
			return nil, fmt.Errorf("restoring conversation %s: %w", rec.ID, err)
		}
		conv.messages = append(conv.messages, m)
	}
	return conv, nil
}

// RestoreMessage rebuilds a message from its record.
func RestoreMessage(rec MessageRecord) (*Message, error) {
	if _, err := ParseRole(string(rec.Role)); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: message record without id", ErrInvalidMessage)
	}
	m := &Message{
		id:         rec.ID,
		role:       rec.Role,
		content:    rec.Content,
		toolCallID: rec.ToolCallID,
		toolName:   rec.ToolName,
		createdAt:  rec.CreatedAt,
	}
	for _, ir := range rec.ToolInvocations {
		inv, err := RestoreToolInvocation(ir)
		if err != nil {
			return nil, err
		}
		m.invocations = append(m.invocations, inv)
	}
	return m, nil
}

// RestoreToolInvocation rebuilds an invocation in its recorded state.
func RestoreToolInvocation(rec InvocationRecord) (*ToolInvocation, error) {
	inv, err := NewToolInvocation(rec.ID, rec.Name, rec.Args)
	if err != nil {
		return nil, err
	}
	switch rec.State {
	case InvocationPending, InvocationExecuting, InvocationCompleted, InvocationFailed:
		inv.state = rec.State
	default:
		return nil, fmt.Errorf("%w: unknown invocation state %q", ErrInvalidMessage, rec.State)
	}
	inv.result = rec.Result
	inv.failure = rec.FailureReason
	return inv, nil
}
