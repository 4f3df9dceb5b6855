package jobchat

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
)

// OpenAILLMProvider implements LLMProvider on top of the official OpenAI SDK.
//
// Unlike OpenAICompatibleLLMProvider, a malformed event ends the stream with an
// error, because the SDK decoder does not expose individual events.
type OpenAILLMProvider struct {
	client OpenAIClientProvider
	model  string
}

// OpenAIProviderConfig holds configuration for OpenAI provider.
type OpenAIProviderConfig struct {
	// Client is the OpenAIClientProvider implementation to use
	Client OpenAIClientProvider
	// Model defaults to deepseek-chat.
	Model openai.ChatModel
}

// NewOpenAILLMProvider creates a new SDK backed provider.
func NewOpenAILLMProvider(config OpenAIProviderConfig) *OpenAILLMProvider {
	if config.Model == "" {
		config.Model = DefaultChatModel
	}

	return &OpenAILLMProvider{
		client: config.Client,
		model:  config.Model,
	}
}

func (p *OpenAILLMProvider) convertToOpenAIMessages(messages []LLMMessage) []openai.ChatCompletionMessageParamUnion {
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case AssistantRole:
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Content))
		case SystemRole:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Content))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Content))
		}
	}
	return openAIMessages
}

func (p *OpenAILLMProvider) createCompletionParams(messages []openai.ChatCompletionMessageParamUnion, config LLMRequestConfig) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(p.model),
	}
	if config.MaxToken > 0 {
		params.MaxTokens = openai.Int(config.MaxToken)
	}
	if config.Temperature > 0 {
		params.Temperature = openai.Float(config.Temperature)
	}
	if config.TopP > 0 {
		params.TopP = openai.Float(config.TopP)
	}
	return params
}

// GetStreamingResponse streams deltas from the SDK. Non-2xx answers surface as
// *LLMError on the first stream element.
func (p *OpenAILLMProvider) GetStreamingResponse(ctx context.Context, messages []LLMMessage, config LLMRequestConfig) (<-chan StreamingLLMResponse, error) {
	params := p.createCompletionParams(p.convertToOpenAIMessages(messages), config)

	stream := p.client.CreateStreamingCompletion(ctx, params)
	responseChan := make(chan StreamingLLMResponse, 100)

	go func() {
		defer close(responseChan)
		defer stream.Close()

		for stream.Next() {
			select {
			case <-ctx.Done():
				responseChan <- StreamingLLMResponse{Error: ctx.Err(), Done: true}
				return
			default:
			}

			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				responseChan <- StreamingLLMResponse{
					Text:       chunk.Choices[0].Delta.Content,
					TokenCount: 1,
				}
			}
		}

		if err := stream.Err(); err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				err = &LLMError{Code: apiErr.StatusCode, Message: apiErr.Message}
			} else {
				err = &TransportError{Op: "read stream", Err: err}
			}
			responseChan <- StreamingLLMResponse{Error: err, Done: true}
			return
		}

		responseChan <- StreamingLLMResponse{Done: true}
	}()

	return responseChan, nil
}
