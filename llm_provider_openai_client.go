package jobchat

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIClientProvider abstracts the streaming call used by OpenAILLMProvider.
type OpenAIClientProvider interface {
	// CreateStreamingCompletion creates a streaming chat completion.
	CreateStreamingCompletion(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk]
}

// OpenAIClient implements OpenAIClientProvider using the official SDK.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client for the given API key. A non-empty baseURL points
// the SDK at an OpenAI-compatible service instead of api.openai.com.
//
// Example usage:
//
//	client := NewOpenAIClient("sk-...", "https://api.deepseek.com/v1")
func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
	}
}

// CreateStreamingCompletion implements OpenAIClientProvider.
func (c *OpenAIClient) CreateStreamingCompletion(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	return c.client.Chat.Completions.NewStreaming(ctx, params)
}
