package jobchat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zishu-lab/jobchat/observability"
)

const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS chat_messages (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session_id ON chat_messages (session_id);
`

// PostgresChatHistoryStorage is a PostgreSQL implementation of ChatHistoryStorage
type PostgresChatHistoryStorage struct {
	db     *sql.DB
	logger observability.Logger
}

// NewPostgresChatHistoryStorage wraps an opened "postgres" database and creates the
// schema when missing.
func NewPostgresChatHistoryStorage(db *sql.DB, logger observability.Logger) (*PostgresChatHistoryStorage, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	if _, err := db.ExecContext(context.Background(), postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &PostgresChatHistoryStorage{db: db, logger: logger}, nil
}

// OpenPostgresChatHistoryStorage connects using a lib/pq DSN.
func OpenPostgresChatHistoryStorage(dsn string, logger observability.Logger) (*PostgresChatHistoryStorage, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}

	db := sql.OpenDB(connector)
	storage, err := NewPostgresChatHistoryStorage(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// CreateChat inserts a new conversation row
func (s *PostgresChatHistoryStorage) CreateChat(ctx context.Context, sessionID string, metadata map[string]interface{}) (*ChatHistory, error) {
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
		`INSERT INTO chat_sessions (session_id, created_at, metadata) VALUES ($1, $2, $3)`,
		sessionID, chat.CreatedAt, string(metadataJSON))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatExists)
		}
		return nil, fmt.Errorf("failed to insert new chat (id: %s): %w", sessionID, err)
	}

	return chat, nil
}

// AddMessage appends a message to an existing conversation
func (s *PostgresChatHistoryStorage) AddMessage(ctx context.Context, sessionID string, message ChatHistoryMessage) error {
	if message.GeneratedAt.IsZero() {
		message.GeneratedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(copyMetadata(message.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, generated_at, metadata)
		SELECT session_id, $2, $3, $4, $5 FROM chat_sessions WHERE session_id = $1`,
		sessionID, string(message.Role), message.Content, message.GeneratedAt, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
	}
	return nil
}

// GetChat loads a conversation with its messages in insertion order
func (s *PostgresChatHistoryStorage) GetChat(ctx context.Context, sessionID string) (*ChatHistory, error) {
	var chat ChatHistory
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at, metadata FROM chat_sessions WHERE session_id = $1`, sessionID).
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
		`SELECT role, content, generated_at, metadata FROM chat_messages WHERE session_id = $1 ORDER BY id ASC`, sessionID)
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
func (s *PostgresChatHistoryStorage) ListChatHistories(ctx context.Context) ([]ChatHistory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, created_at, metadata FROM chat_sessions ORDER BY created_at DESC`)
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

// DeleteChat removes a chat; messages go with it through the cascade
func (s *PostgresChatHistoryStorage) DeleteChat(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE session_id = $1`, sessionID)
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

	s.logger.WithFields(map[string]interface{}{"session_id": sessionID}).Debug("chat deleted")
	return nil
}

// Close closes the database connection
func (s *PostgresChatHistoryStorage) Close() error {
	return s.db.Close()
}
