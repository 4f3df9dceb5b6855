// Package jobchat provides the conversational layer of the job search assistant:
// streamed chat completions, per-conversation history storage and the session
// manager tying them together.
package jobchat

import (
	"context"
)

// LLMMessageRole is the author of a message in a conversation.
type LLMMessageRole string

const (
	// SystemRole carries instructions and job context for the assistant.
	SystemRole LLMMessageRole = "system"
	// UserRole is a message typed by the job seeker.
	UserRole LLMMessageRole = "user"
	// AssistantRole is a reply produced by the chat service.
	AssistantRole LLMMessageRole = "assistant"
)

// LLMMessage is a single role-tagged entry of a conversation.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`
	Content string         `json:"content"`
}

// LLMRequestConfig holds optional sampling parameters sent with each request.
// Zero values are omitted from the request so the service defaults apply.
type LLMRequestConfig struct {
	MaxToken    int64
	Temperature float64
	TopP        float64
}

// RequestOption configures an LLMRequestConfig.
type RequestOption func(*LLMRequestConfig)

// WithMaxToken caps the number of generated tokens.
func WithMaxToken(maxToken int64) RequestOption {
	return func(c *LLMRequestConfig) {
		c.MaxToken = maxToken
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) RequestOption {
	return func(c *LLMRequestConfig) {
		c.Temperature = temperature
	}
}

// WithTopP sets nucleus sampling.
func WithTopP(topP float64) RequestOption {
	return func(c *LLMRequestConfig) {
		c.TopP = topP
	}
}

// NewRequestConfig builds an LLMRequestConfig from options.
func NewRequestConfig(opts ...RequestOption) LLMRequestConfig {
	var cfg LLMRequestConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// StreamingLLMResponse is one element of a streamed completion.
// Text holds a single content delta, never the cumulative reply.
type StreamingLLMResponse struct {
	Text       string
	Done       bool
	Error      error
	TokenCount int
}

// LLMProvider opens streamed chat completions.
//
// A failure that happens before any content can arrive (transport, non-2xx status)
// is returned directly. Failures after the stream opened are delivered as a final
// element with Error set. The channel is always closed by the provider.
type LLMProvider interface {
	GetStreamingResponse(ctx context.Context, messages []LLMMessage, config LLMRequestConfig) (<-chan StreamingLLMResponse, error)
}
