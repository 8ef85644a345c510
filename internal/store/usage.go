// ABOUTME: SQLite implementation for token usage tracking
// ABOUTME: Stores per-message provider usage and aggregates it per conversation

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/socrates-gateway/internal/conversation"
)

// RecordUsage stores the usage reported for one assistant message.
func (s *SQLiteStore) RecordUsage(ctx context.Context, conversationID, messageID string, usage conversation.TokenUsage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_usage (
			id, conversation_id, message_id,
			prompt_tokens, completion_tokens, total_tokens,
			created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(),
		conversationID,
		nullString(messageID),
		usage.PromptTokens,
		usage.CompletionTokens,
		usage.TotalTokens,
		time.Now().UTC().Format(timestampFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting usage: %w", err)
	}

	s.logger.Debug("saved token usage",
		"conversation_id", conversationID,
		"message_id", messageID,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
	)
	return nil
}

// GetConversationUsage sums all usage recorded for a conversation.
func (s *SQLiteStore) GetConversationUsage(ctx context.Context, conversationID string) (*UsageSummary, error) {
	var summary UsageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COUNT(*)
		FROM message_usage
		WHERE conversation_id = ?
	`, conversationID).Scan(
		&summary.PromptTokens,
		&summary.CompletionTokens,
		&summary.TotalTokens,
		&summary.Requests,
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	return &summary, nil
}
