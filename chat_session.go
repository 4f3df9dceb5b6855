package jobchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zishu-lab/jobchat/observability"
)

// DefaultConversationID is the key used when a caller does not name a conversation.
const DefaultConversationID = "default"

// jobContextMetadataKey stores the job context a conversation was seeded with.
const jobContextMetadataKey = "job_context"

// ChunkHandler receives each non-empty content delta, in arrival order.
type ChunkHandler func(delta string)

// SessionManagerConfig holds the knobs of a SessionManager.
type SessionManagerConfig struct {
	// DefaultConversationID replaces an empty conversation id.
	DefaultConversationID string
	// SystemPromptPrefix precedes the serialized job context in the system message.
	SystemPromptPrefix string
	// RequestConfig is sent with every completion request.
	RequestConfig LLMRequestConfig
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManagerConfig)

// WithDefaultConversationID overrides DefaultConversationID.
func WithDefaultConversationID(id string) SessionManagerOption {
	return func(c *SessionManagerConfig) {
		c.DefaultConversationID = id
	}
}

// WithSystemPromptPrefix overrides DefaultSystemPromptPrefix.
func WithSystemPromptPrefix(prefix string) SessionManagerOption {
	return func(c *SessionManagerConfig) {
		c.SystemPromptPrefix = prefix
	}
}

// WithRequestConfig sets the sampling parameters of every request.
func WithRequestConfig(config LLMRequestConfig) SessionManagerOption {
	return func(c *SessionManagerConfig) {
		c.RequestConfig = config
	}
}

// SessionManager sends user messages to the chat service with the accumulated
// conversation history and records the exchange.
//
// Calls on the same conversation id are serialized; calls on different ids run
// concurrently.
type SessionManager struct {
	provider LLMProvider
	storage  ChatHistoryStorage
	logger   observability.Logger
	locks    *keyedMutex
	config   SessionManagerConfig
}

// NewSessionManager creates a SessionManager. A nil storage selects an in-memory one.
//
// Example usage:
//
//	provider := jobchat.NewOpenAICompatibleLLMProvider(jobchat.OpenAICompatibleProviderConfig{
//	    APIKey: os.Getenv("CHAT_API_KEY"),
//	})
//	manager := jobchat.NewSessionManager(provider, nil, observability.NewDefaultLogger())
//
//	result := manager.SendMessage(ctx, "Is this role remote?", job, "", func(delta string) {
//	    fmt.Print(delta)
//	})
func NewSessionManager(provider LLMProvider, storage ChatHistoryStorage, logger observability.Logger, opts ...SessionManagerOption) *SessionManager {
	config := SessionManagerConfig{
		DefaultConversationID: DefaultConversationID,
		SystemPromptPrefix:    DefaultSystemPromptPrefix,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.DefaultConversationID == "" {
		config.DefaultConversationID = DefaultConversationID
	}

	if storage == nil {
		storage = NewInMemoryChatHistoryStorage()
	}
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	return &SessionManager{
		provider: provider,
		storage:  storage,
		logger:   logger,
		locks:    newKeyedMutex(),
		config:   config,
	}
}

// NewConversationID returns a fresh random conversation id.
func NewConversationID() string {
	return uuid.New().String()
}

// DefaultID returns the id used for an empty conversation id.
func (m *SessionManager) DefaultID() string {
	return m.config.DefaultConversationID
}

func (m *SessionManager) resolveID(conversationID string) string {
	if conversationID == "" {
		return m.config.DefaultConversationID
	}
	return conversationID
}

// SendMessage appends message to the conversation, streams the reply through onChunk
// and records the full reply as an assistant message.
//
// The system message is created from jobContext only when the conversation does not
// exist yet. Failures never panic or return an error value: they come back as a
// result with Success false. Deltas already handed to onChunk are not retracted when
// the stream fails later, and no assistant message is stored in that case.
func (m *SessionManager) SendMessage(ctx context.Context, message string, jobContext interface{}, conversationID string, onChunk ChunkHandler) ChatResult {
	id := m.resolveID(conversationID)
	logger := m.logger.WithContext(ctx).WithFields(map[string]interface{}{"conversation_id": id})

	result, err := m.sendMessage(ctx, id, message, jobContext, onChunk)
	if err != nil {
		logger.WithErr(err).Error("AI API error")
		return failureResult(err)
	}

	logger.WithFields(map[string]interface{}{"reply_length": len(result)}).Debug("chat reply completed")
	return successResult(result, id)
}

func (m *SessionManager) sendMessage(ctx context.Context, id, message string, jobContext interface{}, onChunk ChunkHandler) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.ensureConversation(ctx, id, jobContext); err != nil {
		return "", err
	}

	if err := m.storage.AddMessage(ctx, id, ChatHistoryMessage{
		LLMMessage:  LLMMessage{Role: UserRole, Content: message},
		GeneratedAt: time.Now(),
	}); err != nil {
		return "", fmt.Errorf("failed to store user message: %w", err)
	}

	chat, err := m.storage.GetChat(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}

	stream, err := m.provider.GetStreamingResponse(ctx, chat.LLMMessages(), m.config.RequestConfig)
	if err != nil {
		return "", err
	}

	reply, err := collectStream(stream, onChunk)
	if err != nil {
		return "", err
	}
	// A reply cut short by cancellation is never stored as a turn.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := m.storage.AddMessage(ctx, id, ChatHistoryMessage{
		LLMMessage:  LLMMessage{Role: AssistantRole, Content: reply},
		GeneratedAt: time.Now(),
	}); err != nil {
		return "", fmt.Errorf("failed to store assistant message: %w", err)
	}

	return reply, nil
}

// ensureConversation creates the conversation with its system message on first use.
// Callers must hold the key lock for id.
func (m *SessionManager) ensureConversation(ctx context.Context, id string, jobContext interface{}) error {
	_, err := m.storage.GetChat(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	systemMessage, err := BuildSystemMessage(m.config.SystemPromptPrefix, jobContext)
	if err != nil {
		return err
	}

	if _, err := m.storage.CreateChat(ctx, id, map[string]interface{}{jobContextMetadataKey: jobContext}); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := m.storage.AddMessage(ctx, id, ChatHistoryMessage{
		LLMMessage:  systemMessage,
		GeneratedAt: time.Now(),
	}); err != nil {
		// The system message must open the history, so drop the half-created chat.
		if delErr := m.storage.DeleteChat(ctx, id); delErr != nil {
			m.logger.WithErr(delErr).Warn("failed to roll back conversation without system message")
		}
		return fmt.Errorf("failed to store system message: %w", err)
	}

	return nil
}

// collectStream drains stream, forwarding each non-empty delta to onChunk.
func collectStream(stream <-chan StreamingLLMResponse, onChunk ChunkHandler) (string, error) {
	var reply strings.Builder
	var streamErr error

	for response := range stream {
		if streamErr != nil {
			continue
		}
		if response.Error != nil {
			streamErr = response.Error
			continue
		}
		if response.Text != "" {
			reply.WriteString(response.Text)
			if onChunk != nil {
				onChunk(response.Text)
			}
		}
	}

	if streamErr != nil {
		return "", streamErr
	}
	return reply.String(), nil
}

// ClearConversation removes the named history. Unknown ids are not an error.
func (m *SessionManager) ClearConversation(ctx context.Context, conversationID string) error {
	id := m.resolveID(conversationID)

	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.storage.DeleteChat(ctx, id); err != nil && !errors.Is(err, ErrChatNotFound) {
		return fmt.Errorf("failed to clear conversation %s: %w", id, err)
	}
	return nil
}

// GetConversationHistory returns a snapshot of the conversation. Unknown ids yield
// an empty slice.
func (m *SessionManager) GetConversationHistory(ctx context.Context, conversationID string) ([]LLMMessage, error) {
	id := m.resolveID(conversationID)

	chat, err := m.storage.GetChat(ctx, id)
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			return []LLMMessage{}, nil
		}
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	return chat.LLMMessages(), nil
}

// ListConversations returns the known conversations without their messages.
func (m *SessionManager) ListConversations(ctx context.Context) ([]ChatHistory, error) {
	return m.storage.ListChatHistories(ctx)
}
