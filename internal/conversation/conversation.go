// ABOUTME: Conversation is the append-only aggregate of messages for one conversation id.
// ABOUTME: Insertion order is chronological order and is never changed.

package conversation

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Conversation holds the ordered message history of one conversation.
type Conversation struct {
	mu        sync.RWMutex
	id        string
	createdAt time.Time
	messages  []*Message
}

// New creates an empty conversation.
func New(id string) *Conversation {
	return &Conversation{
		id:        id,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// CreatedAt returns when the conversation was first created.
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// AddMessage appends a fully constructed message.
func (c *Conversation) AddMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
	return nil
}

// Messages returns a copy of the message sequence.
func (c *Conversation) Messages() []*Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// UserMessageCount returns how many messages were authored by the user.
func (c *Conversation) UserMessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.messages {
		if m.role == RoleUser {
			n++
		}
	}
	return n
}
