package jobchat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/zishu-lab/jobchat/observability"
)

// SQLiteChatHistoryStorage is an SQLite implementation of ChatHistoryStorage
type SQLiteChatHistoryStorage struct {
	db     *sql.DB
	logger observability.Logger
}

// NewSQLiteChatHistoryStorage wraps an opened "sqlite3" database and creates the
// schema when missing.
func NewSQLiteChatHistoryStorage(db *sql.DB, logger observability.Logger) (*SQLiteChatHistoryStorage, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	storage := &SQLiteChatHistoryStorage{
		db:     db,
		logger: logger,
	}

	if err := storage.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return storage, nil
}

// OpenSQLiteChatHistoryStorage opens the database file at path.
func OpenSQLiteChatHistoryStorage(path string, logger observability.Logger) (*SQLiteChatHistoryStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Serialize writers; sqlite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	storage, err := NewSQLiteChatHistoryStorage(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

func (s *SQLiteChatHistoryStorage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			generated_at DATETIME NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			FOREIGN KEY (session_id) REFERENCES chats(session_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages (session_id);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	s.logger.Debug("sqlite chat history schema ready")
	return nil
}

// CreateChat inserts a new conversation row
func (s *SQLiteChatHistoryStorage) CreateChat(ctx context.Context, sessionID string, metadata map[string]interface{}) (*ChatHistory, error) {
	chat := &ChatHistory{
		SessionID: sessionID,
		Messages:  []ChatHistoryMessage{},
		CreatedAt: time.Now().UTC(),
		Metadata:  copyMetadata(metadata),
	}

	metadataJSON, err := json.Marshal(chat.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chats (session_id, created_at, metadata) VALUES (?, ?, ?)`,
		sessionID, chat.CreatedAt, string(metadataJSON))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatExists)
		}
		return nil, fmt.Errorf("failed to insert new chat (id: %s): %w", sessionID, err)
	}

	return chat, nil
}

// AddMessage appends a message to an existing conversation
func (s *SQLiteChatHistoryStorage) AddMessage(ctx context.Context, sessionID string, message ChatHistoryMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for adding message: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats WHERE session_id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check chat existence: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
	}

	if message.GeneratedAt.IsZero() {
		message.GeneratedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(copyMetadata(message.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, generated_at, metadata) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(message.Role), message.Content, message.GeneratedAt, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit()
}

// GetChat loads a conversation with its messages in insertion order
func (s *SQLiteChatHistoryStorage) GetChat(ctx context.Context, sessionID string) (*ChatHistory, error) {
	var chat ChatHistory
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at, metadata FROM chats WHERE session_id = ?`, sessionID).
		Scan(&chat.SessionID, &chat.CreatedAt, &metadataJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
		}
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}

	if chat.Metadata, err = decodeMetadata(metadataJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, generated_at, metadata FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	chat.Messages = []ChatHistoryMessage{}
	for rows.Next() {
		var message ChatHistoryMessage
		var role, msgMetadataJSON string

		if err := rows.Scan(&role, &message.Content, &message.GeneratedAt, &msgMetadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		message.Role = LLMMessageRole(role)

		if message.Metadata, err = decodeMetadata(msgMetadataJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
		}

		chat.Messages = append(chat.Messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return &chat, nil
}

// ListChatHistories returns all chats, newest first, without messages
func (s *SQLiteChatHistoryStorage) ListChatHistories(ctx context.Context) ([]ChatHistory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, created_at, metadata FROM chats ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := []ChatHistory{}
	for rows.Next() {
		var chat ChatHistory
		var metadataJSON string

		if err := rows.Scan(&chat.SessionID, &chat.CreatedAt, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		if chat.Metadata, err = decodeMetadata(metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat metadata: %w", err)
		}

		chat.Messages = []ChatHistoryMessage{}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}

	return chats, nil
}

// DeleteChat removes a chat and its messages
func (s *SQLiteChatHistoryStorage) DeleteChat(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for deleting chat: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
	}

	return tx.Commit()
}

// Close closes the database connection
func (s *SQLiteChatHistoryStorage) Close() error {
	return s.db.Close()
}

func decodeMetadata(raw string) (map[string]interface{}, error) {
	metadata := make(map[string]interface{})
	if raw == "" || raw == "{}" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
