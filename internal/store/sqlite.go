// ABOUTME: SQLite implementation of the Store interface
// ABOUTME: Persists conversations, messages and tool invocations with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389/socrates-gateway/internal/conversation"
)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// timestampFormat has fixed width so stored timestamps sort lexically.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens a store at path with the pure-Go driver.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return Open(DriverSQLite, path)
}

// Open creates a SQLite store at the given path using the named driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func Open(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	switch driver {
	case DriverSQLite, DriverSQLite3:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			tool_call_id    TEXT,
			tool_name       TEXT,
			created_at      TEXT NOT NULL,

			UNIQUE (conversation_id, seq),
			CHECK (role IN ('system', 'user', 'assistant', 'tool'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

		CREATE TABLE IF NOT EXISTS tool_invocations (
			message_id  TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			call_id     TEXT NOT NULL,
			position    INTEGER NOT NULL,
			tool_name   TEXT NOT NULL,
			args_json   TEXT NOT NULL,
			state       TEXT NOT NULL,
			result_json TEXT,
			failure     TEXT,

			PRIMARY KEY (message_id, call_id),
			CHECK (state IN ('pending', 'executing', 'completed', 'failed'))
		);

		CREATE TABLE IF NOT EXISTS message_usage (
			id                TEXT PRIMARY KEY,
			conversation_id   TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			message_id        TEXT,
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens      INTEGER NOT NULL DEFAULT 0,
			created_at        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_usage_conversation ON message_usage(conversation_id);

		CREATE TABLE IF NOT EXISTS notes (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			key             TEXT NOT NULL,
			value           TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			UNIQUE (conversation_id, key)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateConversation inserts a new conversation with any messages it
// already holds. Returns ErrDuplicate if the id is taken.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *conversation.Conversation) error {
	created := conv.CreatedAt().UTC().Format(timestampFormat)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, conv.ID(), created, created)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID())
	if conv.Len() == 0 {
		return nil
	}
	return s.Save(ctx, conv)
}

// Save persists the conversation's current message sequence in one
// transaction. Messages are immutable and inserted once; invocation state is
// updated in place.
func (s *SQLiteStore) Save(ctx context.Context, conv *conversation.Conversation) error {
	rec := conv.Record()
	now := time.Now().UTC().Format(timestampFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, rec.ID, rec.CreatedAt.UTC().Format(timestampFormat), now)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	for seq, m := range rec.Messages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, seq, role, content, tool_call_id, tool_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, m.ID, rec.ID, seq, string(m.Role), m.Content,
			nullString(m.ToolCallID), nullString(m.ToolName),
			m.CreatedAt.UTC().Format(timestampFormat))
		if err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}

		for pos, inv := range m.ToolInvocations {
			if err := saveInvocation(ctx, tx, m.ID, pos, inv); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation %s: %w", rec.ID, err)
	}

	s.logger.Debug("saved conversation", "id", rec.ID, "messages", len(rec.Messages))
	return nil
}

func saveInvocation(ctx context.Context, tx *sql.Tx, messageID string, pos int, inv conversation.InvocationRecord) error {
	args, err := json.Marshal(inv.Args)
	if err != nil {
		return fmt.Errorf("marshaling args for %s: %w", inv.ID, err)
	}

	var result *string
	if inv.Result != nil {
		b, err := json.Marshal(inv.Result)
		if err != nil {
			return fmt.Errorf("marshaling result for %s: %w", inv.ID, err)
		}
		str := string(b)
		result = &str
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tool_invocations (message_id, call_id, position, tool_name, args_json, state, result_json, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, call_id) DO UPDATE SET
			state = excluded.state,
			result_json = excluded.result_json,
			failure = excluded.failure
	`, messageID, inv.ID, pos, inv.Name, string(args), string(inv.State), result, nullString(inv.FailureReason))
	if err != nil {
		return fmt.Errorf("upserting tool invocation %s: %w", inv.ID, err)
	}
	return nil
}

// FindByID loads a conversation with its messages and invocations.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	var createdAtStr string
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM conversations WHERE id = ?`, id).Scan(&createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	rec := conversation.Record{ID: id}
	rec.CreatedAt, err = time.Parse(timestampFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	rec.Messages, err = s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	invocations, err := s.loadInvocations(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range rec.Messages {
		rec.Messages[i].ToolInvocations = invocations[rec.Messages[i].ID]
	}

	return conversation.Restore(rec)
}

func (s *SQLiteStore) loadMessages(ctx context.Context, conversationID string) ([]conversation.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_call_id, tool_name, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []conversation.MessageRecord
	for rows.Next() {
		var m conversation.MessageRecord
		var role, createdAtStr string
		var toolCallID, toolName sql.NullString

		if err := rows.Scan(&m.ID, &role, &m.Content, &toolCallID, &toolName, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = conversation.Role(role)
		m.ToolCallID = toolCallID.String
		m.ToolName = toolName.String
		m.CreatedAt, err = time.Parse(timestampFormat, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// loadInvocations returns invocation records keyed by message id, each list
// in declaration order.
func (s *SQLiteStore) loadInvocations(ctx context.Context, conversationID string) (map[string][]conversation.InvocationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.message_id, t.call_id, t.tool_name, t.args_json, t.state, t.result_json, t.failure
		FROM tool_invocations t
		JOIN messages m ON m.id = t.message_id
		WHERE m.conversation_id = ?
		ORDER BY m.seq ASC, t.position ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying tool invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]conversation.InvocationRecord)
	for rows.Next() {
		var messageID, argsJSON, state string
		var resultJSON, failure sql.NullString
		var inv conversation.InvocationRecord

		if err := rows.Scan(&messageID, &inv.ID, &inv.Name, &argsJSON, &state, &resultJSON, &failure); err != nil {
			return nil, fmt.Errorf("scanning tool invocation: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &inv.Args); err != nil {
			return nil, fmt.Errorf("unmarshaling args for %s: %w", inv.ID, err)
		}
		if resultJSON.Valid {
			if err := json.Unmarshal([]byte(resultJSON.String), &inv.Result); err != nil {
				return nil, fmt.Errorf("unmarshaling result for %s: %w", inv.ID, err)
			}
		}
		inv.State = conversation.InvocationState(state)
		inv.FailureReason = failure.String
		out[messageID] = append(out[messageID], inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool invocations: %w", err)
	}
	return out, nil
}

// ListConversations returns the most recently updated conversations.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*ConversationSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&c.ID, &createdAtStr, &updatedAtStr, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.CreatedAt, _ = time.Parse(timestampFormat, createdAtStr)
		c.UpdatedAt, _ = time.Parse(timestampFormat, updatedAtStr)
		out = append(out, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
