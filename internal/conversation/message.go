// ABOUTME: Message is an immutable entry in a conversation's history.
// ABOUTME: Built only through the New*Message factories or RestoreMessage.

package conversation

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Message is one authored entry of a conversation. Fields are fixed at
// construction; assistant messages own their tool invocations.
type Message struct {
	id          string
	role        Role
	content     string
	invocations []*ToolInvocation
	toolCallID  string
	toolName    string
	createdAt   time.Time
}

func newMessage(role Role, content string) *Message {
	return &Message{
		id:        uuid.New().String(),
		role:      role,
		content:   content,
		createdAt: time.Now().UTC(),
	}
}

// NewSystemMessage builds a system directive.
func NewSystemMessage(content string) *Message {
	return newMessage(RoleSystem, content)
}

// NewUserMessage builds a user-authored message.
func NewUserMessage(content string) *Message {
	return newMessage(RoleUser, content)
}

// NewAssistantMessage builds an assistant message. Content may be empty when
// the assistant only requested tools.
func NewAssistantMessage(content string, invocations []*ToolInvocation) *Message {
	m := newMessage(RoleAssistant, content)
	m.invocations = slices.Clone(invocations)
	return m
}

// NewToolMessage builds the tool-role answer to a tool call. The result is
// serialized to JSON and stored as the message content.
func NewToolMessage(toolCallID, toolName string, result any) (*Message, error) {
	if toolCallID == "" {
		return nil, fmt.Errorf("%w: tool message requires a tool call id", ErrInvalidMessage)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("serializing tool result for %s: %w", toolCallID, err)
	}
	m := newMessage(RoleTool, string(data))
	m.toolCallID = toolCallID
	m.toolName = toolName
	return m, nil
}

func (m *Message) ID() string           { return m.id }
func (m *Message) Role() Role           { return m.role }
func (m *Message) Content() string      { return m.content }
func (m *Message) ToolCallID() string   { return m.toolCallID }
func (m *Message) ToolName() string     { return m.toolName }
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// ToolInvocations returns the ordered invocations declared by an assistant
// message. The slice is a copy; the invocations are shared.
func (m *Message) ToolInvocations() []*ToolInvocation {
	return slices.Clone(m.invocations)
}

// HasToolInvocations reports whether the message declared any tool calls.
func (m *Message) HasToolInvocations() bool {
	return len(m.invocations) > 0
}
