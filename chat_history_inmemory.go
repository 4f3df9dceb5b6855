package jobchat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryChatHistoryStorage is an in-memory implementation of ChatHistoryStorage.
// Histories live for the lifetime of the process.
type InMemoryChatHistoryStorage struct {
	conversations map[string]*ChatHistory
	mu            sync.RWMutex
}

// NewInMemoryChatHistoryStorage creates a new instance of InMemoryChatHistoryStorage
func NewInMemoryChatHistoryStorage() *InMemoryChatHistoryStorage {
	return &InMemoryChatHistoryStorage{
		conversations: make(map[string]*ChatHistory),
	}
}

// CreateChat initializes a new chat conversation
func (s *InMemoryChatHistoryStorage) CreateChat(ctx context.Context, sessionID string, metadata map[string]interface{}) (*ChatHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[sessionID]; exists {
		return nil, fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatExists)
	}

	chat := &ChatHistory{
		SessionID: sessionID,
		Messages:  []ChatHistoryMessage{},
		CreatedAt: time.Now(),
		Metadata:  copyMetadata(metadata),
	}

	s.conversations[sessionID] = chat
	return cloneChat(chat), nil
}

// AddMessage adds a new message to an existing conversation
func (s *InMemoryChatHistoryStorage) AddMessage(ctx context.Context, sessionID string, message ChatHistoryMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.conversations[sessionID]
	if !exists {
		return fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
	}

	if message.GeneratedAt.IsZero() {
		message.GeneratedAt = time.Now()
	}
	message.Metadata = copyMetadata(message.Metadata)

	chat.Messages = append(chat.Messages, message)
	return nil
}

// GetChat retrieves a snapshot of a conversation
func (s *InMemoryChatHistoryStorage) GetChat(ctx context.Context, sessionID string) (*ChatHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, exists := s.conversations[sessionID]
	if !exists {
		return nil, fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
	}

	return cloneChat(chat), nil
}

// ListChatHistories returns all stored conversations, newest first
func (s *InMemoryChatHistoryStorage) ListChatHistories(ctx context.Context) ([]ChatHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]ChatHistory, 0, len(s.conversations))
	for _, chat := range s.conversations {
		chats = append(chats, ChatHistory{
			SessionID: chat.SessionID,
			Messages:  []ChatHistoryMessage{},
			CreatedAt: chat.CreatedAt,
			Metadata:  copyMetadata(chat.Metadata),
		})
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})

	return chats, nil
}

// DeleteChat removes a conversation by its session id
func (s *InMemoryChatHistoryStorage) DeleteChat(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[sessionID]; !exists {
		return fmt.Errorf("chat with ID %s: %w", sessionID, ErrChatNotFound)
	}

	delete(s.conversations, sessionID)
	return nil
}

func cloneChat(chat *ChatHistory) *ChatHistory {
	messages := make([]ChatHistoryMessage, len(chat.Messages))
	for i, m := range chat.Messages {
		m.Metadata = copyMetadata(m.Metadata)
		messages[i] = m
	}
	return &ChatHistory{
		SessionID: chat.SessionID,
		Messages:  messages,
		CreatedAt: chat.CreatedAt,
		Metadata:  copyMetadata(chat.Metadata),
	}
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
