// ABOUTME: SQLite implementation of NoteStore for the notes tool pack.
// ABOUTME: Notes are key/value pairs scoped to one conversation.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SetNote creates or updates a note.
func (s *SQLiteStore) SetNote(ctx context.Context, note *Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, conversation_id, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, note.ID, note.ConversationID, note.Key, note.Value,
		note.CreatedAt.Format(timestampFormat), note.UpdatedAt.Format(timestampFormat))
	if err != nil {
		return fmt.Errorf("upserting note: %w", err)
	}
	return nil
}

// GetNote retrieves a note by conversation and key.
func (s *SQLiteStore) GetNote(ctx context.Context, conversationID, key string) (*Note, error) {
	var n Note
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, key, value, created_at, updated_at
		FROM notes WHERE conversation_id = ? AND key = ?
	`, conversationID, key).Scan(&n.ID, &n.ConversationID, &n.Key, &n.Value, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying note: %w", err)
	}

	n.CreatedAt, _ = time.Parse(timestampFormat, createdAt)
	n.UpdatedAt, _ = time.Parse(timestampFormat, updatedAt)
	return &n, nil
}

// ListNotes lists all notes for a conversation ordered by key.
func (s *SQLiteStore) ListNotes(ctx context.Context, conversationID string) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, key, value, created_at, updated_at
		FROM notes WHERE conversation_id = ?
		ORDER BY key ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []*Note
	for rows.Next() {
		var n Note
		var createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.ConversationID, &n.Key, &n.Value, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.CreatedAt, _ = time.Parse(timestampFormat, createdAt)
		n.UpdatedAt, _ = time.Parse(timestampFormat, updatedAt)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteNote(ctx context.Context, conversationID, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE conversation_id = ? AND key = ?`, conversationID, key)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
