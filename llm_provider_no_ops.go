package jobchat

import (
	"context"
	"sync"
)

// NoOpsLLMProvider implements LLMProvider with scripted output. It is used by tests
// and by the server when no chat service is configured.
type NoOpsLLMProvider struct {
	chunks    []string
	openErr   error
	streamErr error

	mu       sync.Mutex
	requests [][]LLMMessage
}

// NoOpsOption defines the function signature for option pattern.
type NoOpsOption func(*NoOpsLLMProvider)

// WithStreamingChunks sets the deltas emitted for every request.
func WithStreamingChunks(chunks ...string) NoOpsOption {
	return func(n *NoOpsLLMProvider) {
		n.chunks = chunks
	}
}

// WithOpenError makes GetStreamingResponse fail before streaming.
func WithOpenError(err error) NoOpsOption {
	return func(n *NoOpsLLMProvider) {
		n.openErr = err
	}
}

// WithStreamError ends every stream with err after the scripted chunks.
func WithStreamError(err error) NoOpsOption {
	return func(n *NoOpsLLMProvider) {
		n.streamErr = err
	}
}

// NewNoOpsLLMProvider creates a new NoOpsLLMProvider with optional configurations.
func NewNoOpsLLMProvider(opts ...NoOpsOption) *NoOpsLLMProvider {
	provider := &NoOpsLLMProvider{
		chunks: []string{"Default NoOps streaming response"},
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Requests returns the message lists received so far.
func (n *NoOpsLLMProvider) Requests() [][]LLMMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]LLMMessage(nil), n.requests...)
}

// GetStreamingResponse implements the LLMProvider interface.
func (n *NoOpsLLMProvider) GetStreamingResponse(ctx context.Context, messages []LLMMessage, _ LLMRequestConfig) (<-chan StreamingLLMResponse, error) {
	n.mu.Lock()
	n.requests = append(n.requests, append([]LLMMessage(nil), messages...))
	n.mu.Unlock()

	if n.openErr != nil {
		return nil, n.openErr
	}

	responseChan := make(chan StreamingLLMResponse)

	go func() {
		defer close(responseChan)

		for _, chunk := range n.chunks {
			select {
			case <-ctx.Done():
				responseChan <- StreamingLLMResponse{Error: ctx.Err(), Done: true}
				return
			case responseChan <- StreamingLLMResponse{Text: chunk, TokenCount: 1}:
			}
		}

		if n.streamErr != nil {
			responseChan <- StreamingLLMResponse{Error: n.streamErr, Done: true}
			return
		}
		responseChan <- StreamingLLMResponse{Done: true}
	}()

	return responseChan, nil
}
