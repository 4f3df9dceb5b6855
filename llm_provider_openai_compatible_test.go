package jobchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaLine(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

// newStreamServer replies to every request with the given lines, flushing after each.
func newStreamServer(t *testing.T, status int, lines []string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		if status != http.StatusOK {
			http.Error(w, `{"error":{"message":"insufficient balance"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(t *testing.T, stream <-chan StreamingLLMResponse) ([]string, error) {
	t.Helper()
	var texts []string
	var streamErr error
	for resp := range stream {
		if resp.Error != nil {
			streamErr = resp.Error
		}
		if resp.Text != "" {
			texts = append(texts, resp.Text)
		}
	}
	return texts, streamErr
}

func TestOpenAICompatibleLLMProvider_Defaults(t *testing.T) {
	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{})

	assert.Equal(t, DefaultChatCompletionsURL, provider.url)
	assert.Equal(t, DefaultChatModel, provider.model)
	assert.Equal(t, http.DefaultClient, provider.httpClient)
	assert.NotNil(t, provider.logger)
}

func TestOpenAICompatibleLLMProvider_Request(t *testing.T) {
	var got chatCompletionRequest
	var auth string

	srv := newStreamServer(t, http.StatusOK, []string{"data: [DONE]"}, func(r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{
		URL:    srv.URL,
		APIKey: "sk-test",
	})

	messages := []LLMMessage{
		{Role: SystemRole, Content: "ctx"},
		{Role: UserRole, Content: "hi"},
	}
	stream, err := provider.GetStreamingResponse(context.Background(), messages, NewRequestConfig(WithTemperature(0.5)))
	require.NoError(t, err)
	_, err = drain(t, stream)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, DefaultChatModel, got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, messages, got.Messages)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Zero(t, got.MaxTokens)
}

func TestOpenAICompatibleLLMProvider_GetStreamingResponse(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		wantTexts []string
	}{
		{
			name:      "deltas in order",
			lines:     []string{deltaLine("A"), deltaLine("B"), "data: [DONE]"},
			wantTexts: []string{"A", "B"},
		},
		{
			name:      "malformed event is skipped",
			lines:     []string{deltaLine("A"), "data: {not json", deltaLine("B"), "data: [DONE]"},
			wantTexts: []string{"A", "B"},
		},
		{
			name:      "empty deltas are dropped",
			lines:     []string{`data: {"choices":[{"delta":{"role":"assistant"}}]}`, deltaLine(""), deltaLine("x")},
			wantTexts: []string{"x"},
		},
		{
			name:      "nothing after terminator is read",
			lines:     []string{deltaLine("A"), "data: [DONE]", deltaLine("late")},
			wantTexts: []string{"A"},
		},
		{
			name:      "stream ends without terminator",
			lines:     []string{": ping", deltaLine("only")},
			wantTexts: []string{"only"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newStreamServer(t, http.StatusOK, tt.lines, nil)
			provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: srv.URL})

			stream, err := provider.GetStreamingResponse(context.Background(), []LLMMessage{{Role: UserRole, Content: "q"}}, LLMRequestConfig{})
			require.NoError(t, err)

			texts, err := drain(t, stream)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestOpenAICompatibleLLMProvider_LineSplitAcrossWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		full := deltaLine("你好") + "\n" + deltaLine("!") + "\ndata: [DONE]\n"
		half := len(full) / 3
		for _, part := range []string{full[:half], full[half : 2*half], full[2*half:]} {
			fmt.Fprint(w, part)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: srv.URL})
	stream, err := provider.GetStreamingResponse(context.Background(), nil, LLMRequestConfig{})
	require.NoError(t, err)

	texts, err := drain(t, stream)
	assert.NoError(t, err)
	assert.Equal(t, "你好!", strings.Join(texts, ""))
}

func TestOpenAICompatibleLLMProvider_StatusError(t *testing.T) {
	srv := newStreamServer(t, http.StatusPaymentRequired, nil, nil)
	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: srv.URL})

	stream, err := provider.GetStreamingResponse(context.Background(), nil, LLMRequestConfig{})
	assert.Nil(t, stream)

	var llmErr *LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, http.StatusPaymentRequired, llmErr.Code)
	assert.Contains(t, llmErr.Message, "insufficient balance")
	assert.Contains(t, err.Error(), "API request failed with status 402")
}

func TestOpenAICompatibleLLMProvider_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: url})
	_, err := provider.GetStreamingResponse(context.Background(), nil, LLMRequestConfig{})

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestOpenAICompatibleLLMProvider_ContextCanceledMidStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n", deltaLine("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: srv.URL})

	stream, err := provider.GetStreamingResponse(ctx, nil, LLMRequestConfig{})
	require.NoError(t, err)

	first := <-stream
	assert.Equal(t, "first", first.Text)
	cancel()

	var last StreamingLLMResponse
	for resp := range stream {
		assert.Empty(t, resp.Text, "no delta after cancel")
		last = resp
	}
	require.Error(t, last.Error)
	assert.True(t, last.Done)
	assert.ErrorIs(t, last.Error, context.Canceled)

	var transportErr *TransportError
	assert.True(t, errors.As(last.Error, &transportErr))
}

func TestOpenAICompatibleLLMProvider_RateLimitHonorsContext(t *testing.T) {
	srv := newStreamServer(t, http.StatusOK, []string{"data: [DONE]"}, nil)
	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{
		URL:               srv.URL,
		RequestsPerSecond: 0.001,
	})

	stream, err := provider.GetStreamingResponse(context.Background(), nil, LLMRequestConfig{})
	require.NoError(t, err)
	_, _ = drain(t, stream)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = provider.GetStreamingResponse(ctx, nil, LLMRequestConfig{})
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}
