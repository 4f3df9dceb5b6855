package jobchat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJob = map[string]interface{}{
	"title":   "Backend Engineer",
	"company": "自塾",
}

func newStreamingSessionManager(t *testing.T, status int, lines []string) *SessionManager {
	t.Helper()
	srv := newStreamServer(t, status, lines, nil)
	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: srv.URL, APIKey: "k"})
	return NewSessionManager(provider, nil, nil)
}

func TestNewSessionManager_Defaults(t *testing.T) {
	manager := NewSessionManager(NewNoOpsLLMProvider(), nil, nil)

	assert.Equal(t, DefaultConversationID, manager.DefaultID())
	assert.IsType(t, &InMemoryChatHistoryStorage{}, manager.storage)
	assert.NotNil(t, manager.logger)
	assert.Equal(t, DefaultSystemPromptPrefix, manager.config.SystemPromptPrefix)

	manager = NewSessionManager(NewNoOpsLLMProvider(), nil, nil,
		WithDefaultConversationID("main"),
		WithSystemPromptPrefix("Job: "),
		WithRequestConfig(NewRequestConfig(WithMaxToken(64))),
	)
	assert.Equal(t, "main", manager.DefaultID())
	assert.Equal(t, "Job: ", manager.config.SystemPromptPrefix)
	assert.Equal(t, int64(64), manager.config.RequestConfig.MaxToken)

	manager = NewSessionManager(NewNoOpsLLMProvider(), nil, nil, WithDefaultConversationID(""))
	assert.Equal(t, DefaultConversationID, manager.DefaultID())
}

func TestSessionManager_SendMessage_StreamsDeltas(t *testing.T) {
	manager := newStreamingSessionManager(t, http.StatusOK, []string{
		deltaLine("A"), deltaLine("B"), "data: [DONE]",
	})
	ctx := context.Background()

	var chunks []string
	result := manager.SendMessage(ctx, "Is it remote?", testJob, "c1", func(delta string) {
		chunks = append(chunks, delta)
	})

	assert.Equal(t, []string{"A", "B"}, chunks)
	assert.True(t, result.Success)
	require.NotNil(t, result.Data)
	assert.Equal(t, "AB", result.Data.Reply)
	assert.Equal(t, "c1", result.Data.ConversationID)
	assert.Empty(t, result.Error)

	history, err := manager.GetConversationHistory(ctx, "c1")
	require.NoError(t, err)
	system, err := BuildSystemMessage(DefaultSystemPromptPrefix, testJob)
	require.NoError(t, err)
	assert.Equal(t, []LLMMessage{
		system,
		{Role: UserRole, Content: "Is it remote?"},
		{Role: AssistantRole, Content: "AB"},
	}, history)
}

func TestSessionManager_SendMessage_SkipsMalformedEvent(t *testing.T) {
	manager := newStreamingSessionManager(t, http.StatusOK, []string{
		deltaLine("A"), `data: {"choices":[`, deltaLine("B"), "data: [DONE]",
	})

	var chunks []string
	result := manager.SendMessage(context.Background(), "hi", testJob, "c1", func(delta string) {
		chunks = append(chunks, delta)
	})

	assert.True(t, result.Success)
	assert.Equal(t, []string{"A", "B"}, chunks)
	assert.Equal(t, "AB", result.Data.Reply)
}

func TestSessionManager_SendMessage_StatusError(t *testing.T) {
	manager := newStreamingSessionManager(t, http.StatusInternalServerError, nil)
	ctx := context.Background()

	called := false
	result := manager.SendMessage(ctx, "hi", testJob, "c1", func(string) { called = true })

	assert.False(t, result.Success)
	assert.Nil(t, result.Data)
	assert.Contains(t, result.Error, "API request failed with status 500")
	var llmErr *LLMError
	assert.True(t, errors.As(result.Err, &llmErr))
	assert.False(t, called)

	history, err := manager.GetConversationHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, SystemRole, history[0].Role)
	assert.Equal(t, UserRole, history[1].Role)
}

func TestSessionManager_SendMessage_StreamErrorKeepsDeliveredChunks(t *testing.T) {
	provider := NewNoOpsLLMProvider(WithStreamingChunks("par", "tial"), WithStreamError(errors.New("connection reset")))
	manager := NewSessionManager(provider, nil, nil)
	ctx := context.Background()

	var chunks []string
	result := manager.SendMessage(ctx, "hi", nil, "c1", func(delta string) {
		chunks = append(chunks, delta)
	})

	assert.False(t, result.Success)
	assert.Equal(t, "connection reset", result.Error)
	assert.Equal(t, []string{"par", "tial"}, chunks)

	history, err := manager.GetConversationHistory(ctx, "c1")
	require.NoError(t, err)
	for _, m := range history {
		assert.NotEqual(t, AssistantRole, m.Role)
	}
}

func TestSessionManager_SendMessage_CancelMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n\n", deltaLine("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	provider := NewOpenAICompatibleLLMProvider(OpenAICompatibleProviderConfig{URL: srv.URL})
	manager := NewSessionManager(provider, nil, nil)

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("cancel-%d", i)
		ctx, cancel := context.WithCancel(context.Background())

		result := manager.SendMessage(ctx, "hi", testJob, id, func(string) { cancel() })
		cancel()

		require.False(t, result.Success, "run %d", i)
		assert.ErrorIs(t, result.Err, context.Canceled)
		assert.Nil(t, result.Data)

		history, err := manager.GetConversationHistory(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, SystemRole, history[0].Role)
		assert.Equal(t, UserRole, history[1].Role)
	}
}

func TestSessionManager_SendMessage_EmptyMessage(t *testing.T) {
	provider := NewNoOpsLLMProvider()
	manager := NewSessionManager(provider, nil, nil)

	result := manager.SendMessage(context.Background(), "   ", testJob, "c1", nil)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrEmptyMessage)
	assert.Empty(t, provider.Requests())

	history, err := manager.GetConversationHistory(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionManager_SendMessage_DefaultConversation(t *testing.T) {
	manager := NewSessionManager(NewNoOpsLLMProvider(WithStreamingChunks("ok")), nil, nil)

	result := manager.SendMessage(context.Background(), "hi", testJob, "", nil)
	require.True(t, result.Success)
	assert.Equal(t, DefaultConversationID, result.Data.ConversationID)

	history, err := manager.GetConversationHistory(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestSessionManager_HistoryAccumulates(t *testing.T) {
	provider := NewNoOpsLLMProvider(WithStreamingChunks("reply"))
	manager := NewSessionManager(provider, nil, nil)
	ctx := context.Background()

	first := manager.SendMessage(ctx, "one", testJob, "c1", nil)
	require.True(t, first.Success)
	// A different job context on an existing conversation does not replace the system message.
	second := manager.SendMessage(ctx, "two", map[string]interface{}{"title": "Other"}, "c1", nil)
	require.True(t, second.Success)

	history, err := manager.GetConversationHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Contains(t, history[0].Content, "Backend Engineer")
	assert.Equal(t, LLMMessage{Role: UserRole, Content: "one"}, history[1])
	assert.Equal(t, LLMMessage{Role: AssistantRole, Content: "reply"}, history[2])
	assert.Equal(t, LLMMessage{Role: UserRole, Content: "two"}, history[3])
	assert.Equal(t, LLMMessage{Role: AssistantRole, Content: "reply"}, history[4])

	requests := provider.Requests()
	require.Len(t, requests, 2)
	assert.Len(t, requests[0], 2)
	assert.Equal(t, history[:4], requests[1])
}

func TestSessionManager_ConversationsAreIsolated(t *testing.T) {
	manager := NewSessionManager(NewNoOpsLLMProvider(WithStreamingChunks("r")), nil, nil)
	ctx := context.Background()

	require.True(t, manager.SendMessage(ctx, "a", "job a", "a", nil).Success)
	require.True(t, manager.SendMessage(ctx, "b", "job b", "b", nil).Success)

	historyA, err := manager.GetConversationHistory(ctx, "a")
	require.NoError(t, err)
	historyB, err := manager.GetConversationHistory(ctx, "b")
	require.NoError(t, err)

	assert.Len(t, historyA, 3)
	assert.Len(t, historyB, 3)
	assert.True(t, strings.HasSuffix(historyA[0].Content, `"job a"`))
	assert.True(t, strings.HasSuffix(historyB[0].Content, `"job b"`))

	chats, err := manager.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestSessionManager_ConcurrentCallsOnSameConversationSerialize(t *testing.T) {
	provider := NewNoOpsLLMProvider(WithStreamingChunks("x"))
	manager := NewSessionManager(provider, nil, nil)
	ctx := context.Background()

	const calls = 10
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, manager.SendMessage(ctx, "hi", testJob, "shared", nil).Success)
		}()
	}
	wg.Wait()

	history, err := manager.GetConversationHistory(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, history, 1+2*calls)
	assert.Equal(t, SystemRole, history[0].Role)
	for i := 1; i < len(history); i += 2 {
		assert.Equal(t, UserRole, history[i].Role)
		assert.Equal(t, AssistantRole, history[i+1].Role)
	}

	// Each request saw every earlier exchange completed.
	var sizes []int
	for _, r := range provider.Requests() {
		sizes = append(sizes, len(r))
	}
	sort.Ints(sizes)
	for i, size := range sizes {
		assert.Equal(t, 2+2*i, size)
	}
}

func TestSessionManager_ClearConversation(t *testing.T) {
	manager := NewSessionManager(NewNoOpsLLMProvider(), nil, nil)
	ctx := context.Background()

	assert.NoError(t, manager.ClearConversation(ctx, "unknown"))

	require.True(t, manager.SendMessage(ctx, "hi", testJob, "c1", nil).Success)
	require.NoError(t, manager.ClearConversation(ctx, "c1"))

	history, err := manager.GetConversationHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NotNil(t, history)

	// The next message starts over with a fresh system message.
	require.True(t, manager.SendMessage(ctx, "again", "new job", "c1", nil).Success)
	history, err = manager.GetConversationHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, strings.HasSuffix(history[0].Content, `"new job"`))
}

// failingStorage fails AddMessage for the configured role.
type failingStorage struct {
	*InMemoryChatHistoryStorage
	failRole LLMMessageRole
}

func (s *failingStorage) AddMessage(ctx context.Context, sessionID string, message ChatHistoryMessage) error {
	if message.Role == s.failRole {
		return errors.New("disk full")
	}
	return s.InMemoryChatHistoryStorage.AddMessage(ctx, sessionID, message)
}

func TestSessionManager_SystemMessageFailureRollsBack(t *testing.T) {
	storage := &failingStorage{InMemoryChatHistoryStorage: NewInMemoryChatHistoryStorage(), failRole: SystemRole}
	provider := NewNoOpsLLMProvider()
	manager := NewSessionManager(provider, storage, nil)
	ctx := context.Background()

	result := manager.SendMessage(ctx, "hi", testJob, "c1", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disk full")
	assert.Empty(t, provider.Requests())

	_, err := storage.GetChat(ctx, "c1")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSessionManager_AssistantStoreFailure(t *testing.T) {
	storage := &failingStorage{InMemoryChatHistoryStorage: NewInMemoryChatHistoryStorage(), failRole: AssistantRole}
	manager := NewSessionManager(NewNoOpsLLMProvider(WithStreamingChunks("r")), storage, nil)

	result := manager.SendMessage(context.Background(), "hi", testJob, "c1", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to store assistant message")
}

func TestNewConversationID(t *testing.T) {
	a, b := NewConversationID(), NewConversationID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
