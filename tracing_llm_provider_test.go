package jobchat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingLLMProvider_PassesThrough(t *testing.T) {
	inner := NewNoOpsLLMProvider(WithStreamingChunks("A", "B"))
	provider := NewTracingLLMProvider(inner)

	messages := []LLMMessage{{Role: UserRole, Content: "hi"}}
	stream, err := provider.GetStreamingResponse(context.Background(), messages, LLMRequestConfig{})
	require.NoError(t, err)

	texts, err := drain(t, stream)
	assert.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, texts)
	assert.Equal(t, [][]LLMMessage{messages}, inner.Requests())
}

func TestTracingLLMProvider_Errors(t *testing.T) {
	openErr := &LLMError{Code: 401}
	_, err := NewTracingLLMProvider(NewNoOpsLLMProvider(WithOpenError(openErr))).
		GetStreamingResponse(context.Background(), nil, LLMRequestConfig{})
	assert.ErrorIs(t, err, openErr)

	streamErr := errors.New("connection reset")
	stream, err := NewTracingLLMProvider(NewNoOpsLLMProvider(WithStreamingChunks("A"), WithStreamError(streamErr))).
		GetStreamingResponse(context.Background(), nil, LLMRequestConfig{})
	require.NoError(t, err)

	texts, err := drain(t, stream)
	assert.Equal(t, []string{"A"}, texts)
	assert.ErrorIs(t, err, streamErr)
}
