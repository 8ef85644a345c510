// ABOUTME: Turn entry points shared by the HTTP API and the CLI.
// ABOUTME: Creates conversations, appends user messages and runs turns under the conversation lock.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/store"
	"github.com/2389/socrates-gateway/internal/turn"
	"github.com/2389/socrates-gateway/internal/turnlock"
)

// Turn errors
var (
	// ErrEmptyContent means the user message had no text.
	ErrEmptyContent = errors.New("content is required")

	// ErrTurnInProgress means another turn is running for the conversation.
	ErrTurnInProgress = errors.New("a turn is already in progress for this conversation")

	// ErrShuttingDown means the gateway no longer starts turns.
	ErrShuttingDown = errors.New("gateway is shutting down")
)

// CreateConversation stores a new empty conversation and returns it.
func (g *Gateway) CreateConversation(ctx context.Context) (*conversation.Conversation, error) {
	conv := conversation.New(uuid.NewString())
	if err := g.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	g.logger.Info("conversation created", "conversation_id", conv.ID())
	return conv, nil
}

// beginTurn takes the conversation lock and, when content is non-empty,
// appends and persists the user message. Errors returned here happen before
// any frame is written. The returned function releases the lock.
func (g *Gateway) beginTurn(ctx context.Context, conversationID string, content *string) (func(), error) {
	if content != nil && strings.TrimSpace(*content) == "" {
		return nil, ErrEmptyContent
	}

	release, err := g.locks.Acquire(conversationID)
	if errors.Is(err, turnlock.ErrBusy) {
		if since, ok := g.locks.Since(conversationID); ok {
			g.logger.Info("turn already running", "conversation_id", conversationID, "since", since)
		}
		return nil, ErrTurnInProgress
	}
	if errors.Is(err, turnlock.ErrClosed) {
		return nil, ErrShuttingDown
	}
	if err != nil {
		return nil, err
	}

	conv, err := g.store.FindByID(ctx, conversationID)
	if err != nil {
		release()
		return nil, err
	}

	if content != nil {
		if err := conv.AddMessage(conversation.NewUserMessage(*content)); err != nil {
			release()
			return nil, err
		}
		if err := g.store.Save(ctx, conv); err != nil {
			release()
			return nil, fmt.Errorf("saving user message: %w", err)
		}
	}

	return release, nil
}

// SendMessage appends a user message and runs one turn, writing frames to
// sink. Errors wrapping ErrEmptyContent, ErrTurnInProgress or
// store.ErrNotFound are returned before the sink is used.
func (g *Gateway) SendMessage(ctx context.Context, conversationID, content string, sink turn.Sink) error {
	release, err := g.beginTurn(ctx, conversationID, &content)
	if err != nil {
		return err
	}
	defer release()

	return g.coordinator.Run(ctx, conversationID, sink)
}

// ResumeTurn runs one turn over the stored history without a new user
// message.
func (g *Gateway) ResumeTurn(ctx context.Context, conversationID string, sink turn.Sink) error {
	release, err := g.beginTurn(ctx, conversationID, nil)
	if err != nil {
		return err
	}
	defer release()

	return g.coordinator.Run(ctx, conversationID, sink)
}
