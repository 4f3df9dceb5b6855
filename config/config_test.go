package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.deepseek.com/v1/chat/completions", cfg.ChatAPIURL)
	assert.Equal(t, "deepseek-chat", cfg.ChatModel)
	assert.Equal(t, ProviderHTTP, cfg.ChatProvider)
	assert.Equal(t, 2*time.Minute, cfg.ChatTimeout)
	assert.False(t, cfg.ChatTracing)
	assert.Equal(t, "default", cfg.DefaultConversationID)
	assert.Equal(t, BackendMemory, cfg.HistoryBackend)
	assert.Equal(t, ":3000", cfg.ServerAddr)
	assert.Equal(t, "https://zishu.co/api/course/fetch_all_courses", cfg.CoursesAPIURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CHAT_API_KEY", "sk-env")
	t.Setenv("CHAT_PROVIDER", "openai")
	t.Setenv("CHAT_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("CHAT_TIMEOUT", "30s")
	t.Setenv("CHAT_TRACING", "true")
	t.Setenv("HISTORY_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/chat.db")
	t.Setenv("LOG_BACKEND", "zap")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.ChatAPIKey)
	assert.Equal(t, ProviderOpenAI, cfg.ChatProvider)
	assert.Equal(t, 2.5, cfg.ChatRequestsPerSecond)
	assert.Equal(t, 30*time.Second, cfg.ChatTimeout)
	assert.True(t, cfg.ChatTracing)
	assert.Equal(t, BackendSQLite, cfg.HistoryBackend)
	assert.Equal(t, "/tmp/chat.db", cfg.SQLitePath)
	assert.Equal(t, "zap", cfg.LogBackend)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHAT_MODEL=from-file\nSERVER_ADDR=:8080\n"), 0o600))

	// Environment wins over the file.
	t.Setenv("SERVER_ADDR", ":9090")
	// Make sure the file value is not left behind for other tests.
	t.Setenv("CHAT_MODEL", "")
	require.NoError(t, os.Unsetenv("CHAT_MODEL"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.ChatModel)
	assert.Equal(t, ":9090", cfg.ServerAddr)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("CHAT_TIMEOUT", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ChatAPIURL:            "https://api.deepseek.com/v1/chat/completions",
			ChatProvider:          ProviderHTTP,
			DefaultConversationID: "default",
			HistoryBackend:        BackendMemory,
			LogBackend:            "default",
			LogLevel:              "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad provider", mutate: func(c *Config) { c.ChatProvider = "gemini" }, wantErr: "CHAT_PROVIDER"},
		{name: "empty url", mutate: func(c *Config) { c.ChatAPIURL = "" }, wantErr: "CHAT_API_URL"},
		{name: "negative rate", mutate: func(c *Config) { c.ChatRequestsPerSecond = -1 }, wantErr: "CHAT_REQUESTS_PER_SECOND"},
		{name: "negative timeout", mutate: func(c *Config) { c.ChatTimeout = -time.Second }, wantErr: "CHAT_TIMEOUT"},
		{name: "empty default id", mutate: func(c *Config) { c.DefaultConversationID = "" }, wantErr: "DEFAULT_CONVERSATION_ID"},
		{name: "bad backend", mutate: func(c *Config) { c.HistoryBackend = "redis" }, wantErr: "HISTORY_BACKEND"},
		{name: "sqlite without path", mutate: func(c *Config) { c.HistoryBackend = BackendSQLite }, wantErr: "SQLITE_PATH"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.HistoryBackend = BackendPostgres }, wantErr: "POSTGRES_DSN"},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.HistoryBackend = BackendPostgres
				c.PostgresDSN = "postgres://localhost/jobchat?sslmode=disable"
			},
		},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log level"},
		{name: "bad log backend", mutate: func(c *Config) { c.LogBackend = "syslog" }, wantErr: "LOG_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
