// Package store persists conversations, token usage and notes.
//
// # Architecture
//
// The package is interface-driven:
//
//   - ConversationStore: create, load, save and list conversation aggregates
//   - UsageStore: per-message token usage and per-conversation totals
//   - NoteStore: key-value notes scoped to a conversation
//
// Store combines them. SQLiteStore and MemoryStore both implement Store.
//
// # SQLite Configuration
//
// Open accepts two database/sql drivers: "sqlite" (modernc.org/sqlite, pure
// Go, the default) and "sqlite3" (github.com/mattn/go-sqlite3, cgo). The
// store enables WAL mode and foreign keys:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// ":memory:" opens a private in-memory database on a single connection.
//
// # Saving
//
// Save is idempotent. Messages are insert-only keyed by id; tool invocation
// rows are upserted so state changes (executing, completed, failed) land on
// the same row. Each save runs in one transaction.
//
// # Error Handling
//
//   - ErrNotFound: requested conversation or note does not exist
//   - ErrDuplicate: CreateConversation with an id already in use
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMemoryStore() for unit tests and NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
