package jobchat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/zishu-lab/jobchat/observability"
	"golang.org/x/time/rate"
)

const (
	// DefaultChatCompletionsURL is the DeepSeek chat completions endpoint.
	DefaultChatCompletionsURL = "https://api.deepseek.com/v1/chat/completions"
	// DefaultChatModel is the model requested when none is configured.
	DefaultChatModel = "deepseek-chat"

	maxStreamLineSize = 1 << 20
	maxErrorBodySize  = 4 << 10
)

// OpenAICompatibleLLMProvider streams chat completions from any endpoint speaking the
// OpenAI chat completions wire format, such as DeepSeek.
type OpenAICompatibleLLMProvider struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     observability.Logger
}

// OpenAICompatibleProviderConfig configures an OpenAICompatibleLLMProvider.
type OpenAICompatibleProviderConfig struct {
	// URL is the full chat completions endpoint.
	URL    string
	APIKey string
	Model  string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// RequestsPerSecond throttles outgoing requests; zero disables throttling.
	RequestsPerSecond float64
	Logger            observability.Logger
}

// NewOpenAICompatibleLLMProvider creates a provider, filling in DeepSeek defaults.
func NewOpenAICompatibleLLMProvider(config OpenAICompatibleProviderConfig) *OpenAICompatibleLLMProvider {
	if config.URL == "" {
		config.URL = DefaultChatCompletionsURL
	}
	if config.Model == "" {
		config.Model = DefaultChatModel
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &OpenAICompatibleLLMProvider{
		url:        config.URL,
		apiKey:     config.APIKey,
		model:      config.Model,
		httpClient: config.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     config.Logger,
	}
}

type chatCompletionRequest struct {
	Model       string       `json:"model"`
	Messages    []LLMMessage `json:"messages"`
	Stream      bool         `json:"stream"`
	MaxTokens   int64        `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
}

// GetStreamingResponse posts the conversation with stream=true and decodes the
// event stream line by line. Malformed events are logged and skipped.
func (p *OpenAICompatibleLLMProvider) GetStreamingResponse(ctx context.Context, messages []LLMMessage, config LLMRequestConfig) (<-chan StreamingLLMResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "wait for rate limiter", Err: err}
	}

	body, err := sonic.Marshal(chatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Stream:      true,
		MaxTokens:   config.MaxToken,
		Temperature: config.Temperature,
		TopP:        config.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "send request", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &LLMError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	responseChan := make(chan StreamingLLMResponse, 100)
	go p.readStream(ctx, resp.Body, responseChan)

	return responseChan, nil
}

// readStream forwards deltas to out until the terminator or end of body. Callers
// drain out until it closes, so sends never block forever. A cancelled ctx always
// ends the stream with an error element, never a clean Done.
func (p *OpenAICompatibleLLMProvider) readStream(ctx context.Context, body io.ReadCloser, out chan<- StreamingLLMResponse) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		event, err := ParseStreamLine(scanner.Text())
		if err != nil {
			p.logger.WithErr(err).Warn("skipping malformed stream event")
			continue
		}

		switch event.Kind {
		case EventDone:
			out <- StreamingLLMResponse{Done: true}
			return
		case EventDelta:
			if event.Content == "" {
				continue
			}
			out <- StreamingLLMResponse{Text: event.Content, TokenCount: 1}
		}
	}

	err := scanner.Err()
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if err != nil {
		out <- StreamingLLMResponse{Error: &TransportError{Op: "read stream", Err: err}, Done: true}
		return
	}

	out <- StreamingLLMResponse{Done: true}
}
