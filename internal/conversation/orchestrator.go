// ABOUTME: Orchestrator binds streaming responses to conversations and commits assistant messages.
// ABOUTME: Committing is the single point where streamed fragments become history.

package conversation

import (
	"fmt"
	"log/slog"
)

// StreamingContext ties a fresh StreamingResponse to the conversation it
// will answer.
type StreamingContext struct {
	Conversation *Conversation
	Response     *StreamingResponse
}

// Orchestrator prepares and commits streamed assistant turns.
type Orchestrator struct {
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger uses slog.Default().
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{logger: logger.With("component", "orchestrator")}
}

// PrepareForStreaming allocates an idle StreamingResponse for conv. The
// conversation is not modified.
func (o *Orchestrator) PrepareForStreaming(conv *Conversation) (*StreamingContext, error) {
	if conv == nil {
		return nil, fmt.Errorf("%w: nil conversation", ErrInvalidMessage)
	}
	return &StreamingContext{
		Conversation: conv,
		Response:     NewStreamingResponse(),
	}, nil
}

// ProcessAssistantMessage appends msg to conv and binds it to resp. It must
// be called once per turn, after the provider signalled end of turn.
func (o *Orchestrator) ProcessAssistantMessage(conv *Conversation, msg *Message, resp *StreamingResponse) error {
	if conv == nil || msg == nil || resp == nil {
		return fmt.Errorf("%w: conversation, message and response are required", ErrInvalidMessage)
	}
	if msg.Role() != RoleAssistant {
		return fmt.Errorf("%w: expected assistant message, got %s", ErrInvalidMessage, msg.Role())
	}
	if err := resp.attachMessage(msg.ID()); err != nil {
		return err
	}
	if err := conv.AddMessage(msg); err != nil {
		return err
	}

	o.logger.Debug("assistant message committed",
		"conversation_id", conv.ID(),
		"message_id", msg.ID(),
		"tool_calls", len(msg.invocations),
		"content_length", len(msg.Content()),
	)
	return nil
}
