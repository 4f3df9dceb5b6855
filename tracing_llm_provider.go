package jobchat

import (
	"context"
	"time"

	"github.com/zishu-lab/jobchat/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingLLMProvider implements the decorator pattern for tracing
type TracingLLMProvider struct {
	provider LLMProvider
}

// NewTracingLLMProvider creates a new tracing decorator for any LLMProvider
func NewTracingLLMProvider(provider LLMProvider) *TracingLLMProvider {
	return &TracingLLMProvider{
		provider: provider,
	}
}

// GetStreamingResponse implements LLMProvider interface with added tracing.
// The span stays open until the stream is drained.
func (t *TracingLLMProvider) GetStreamingResponse(ctx context.Context, messages []LLMMessage, config LLMRequestConfig) (<-chan StreamingLLMResponse, error) {
	ctx, span := observability.StartSpan(ctx, "LLMProvider.GetStreamingResponse")
	span.SetAttributes(
		attribute.Int("message_count", len(messages)),
		attribute.Int64("max_token", config.MaxToken),
		attribute.Float64("temperature", config.Temperature),
	)

	startTime := time.Now()

	originalStream, err := t.provider.GetStreamingResponse(ctx, messages, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	tracedStream := make(chan StreamingLLMResponse)

	go func() {
		defer span.End()
		defer close(tracedStream)

		var chunks, chars int

		for response := range originalStream {
			if response.Error != nil {
				span.RecordError(response.Error)
				span.SetStatus(codes.Error, response.Error.Error())
			} else if response.Text != "" {
				chunks++
				chars += len(response.Text)
			}

			tracedStream <- response
		}

		span.SetAttributes(
			attribute.Int("chunk_count", chunks),
			attribute.Int("reply_bytes", chars),
			attribute.Float64("total_streaming_time", time.Since(startTime).Seconds()),
		)
	}()

	return tracedStream, nil
}
