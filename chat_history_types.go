package jobchat

import (
	"context"
	"time"
)

// ChatHistoryMessage is a stored conversation entry.
type ChatHistoryMessage struct {
	LLMMessage
	GeneratedAt time.Time              `json:"generated_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ChatHistory is a conversation keyed by SessionID with messages in append order.
type ChatHistory struct {
	SessionID string                 `json:"session_id"`
	Messages  []ChatHistoryMessage   `json:"messages"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// LLMMessages returns the conversation in the shape sent to the chat service.
func (h *ChatHistory) LLMMessages() []LLMMessage {
	messages := make([]LLMMessage, 0, len(h.Messages))
	for _, m := range h.Messages {
		messages = append(messages, m.LLMMessage)
	}
	return messages
}

// ChatHistoryStorage defines the interface for conversation history storage.
// Implementations must be safe for concurrent use.
type ChatHistoryStorage interface {
	// CreateChat starts an empty conversation under sessionID.
	// It returns ErrChatExists if the id is taken.
	CreateChat(ctx context.Context, sessionID string, metadata map[string]interface{}) (*ChatHistory, error)

	// AddMessage appends a message. It returns ErrChatNotFound for unknown ids.
	AddMessage(ctx context.Context, sessionID string, message ChatHistoryMessage) error

	// GetChat returns a snapshot of the conversation, or ErrChatNotFound.
	GetChat(ctx context.Context, sessionID string) (*ChatHistory, error)

	// ListChatHistories returns all conversations without their messages.
	ListChatHistories(ctx context.Context) ([]ChatHistory, error)

	// DeleteChat removes a conversation and its messages, or returns ErrChatNotFound.
	DeleteChat(ctx context.Context, sessionID string) error
}
