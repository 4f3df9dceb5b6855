// Package config loads runtime settings from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/zishu-lab/jobchat/observability"
)

// ChatProvider selects how chat completions are requested.
type ChatProvider string

const (
	// ProviderHTTP streams through the built-in line decoder.
	ProviderHTTP ChatProvider = "http"
	// ProviderOpenAI streams through the openai-go SDK.
	ProviderOpenAI ChatProvider = "openai"
)

// HistoryBackend selects where conversations are kept.
type HistoryBackend string

const (
	BackendMemory   HistoryBackend = "memory"
	BackendSQLite   HistoryBackend = "sqlite"
	BackendPostgres HistoryBackend = "postgres"
)

type Config struct {
	// Chat service
	ChatAPIURL            string        `env:"CHAT_API_URL" envDefault:"https://api.deepseek.com/v1/chat/completions"`
	ChatAPIKey            string        `env:"CHAT_API_KEY"`
	ChatModel             string        `env:"CHAT_MODEL" envDefault:"deepseek-chat"`
	ChatProvider          ChatProvider  `env:"CHAT_PROVIDER" envDefault:"http"`
	ChatRequestsPerSecond float64       `env:"CHAT_REQUESTS_PER_SECOND" envDefault:"0"`
	ChatTimeout           time.Duration `env:"CHAT_TIMEOUT" envDefault:"2m"`
	ChatTracing           bool          `env:"CHAT_TRACING" envDefault:"false"`
	ChatMaxTokens         int64         `env:"CHAT_MAX_TOKENS"`
	ChatTemperature       float64       `env:"CHAT_TEMPERATURE"`

	// Conversations
	DefaultConversationID string         `env:"DEFAULT_CONVERSATION_ID" envDefault:"default"`
	HistoryBackend        HistoryBackend `env:"HISTORY_BACKEND" envDefault:"memory"`
	SQLitePath            string         `env:"SQLITE_PATH" envDefault:"data/chat_history.db"`
	PostgresDSN           string         `env:"POSTGRES_DSN"`

	// Logging
	LogBackend string `env:"LOG_BACKEND" envDefault:"default"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server and upstream services
	ServerAddr    string `env:"SERVER_ADDR" envDefault:":3000"`
	JobsAPIURL    string `env:"JOBS_API_URL"`
	CoursesAPIURL string `env:"COURSES_API_URL" envDefault:"https://zishu.co/api/course/fetch_all_courses"`

	// City data
	CitySourceURL  string `env:"CITY_SOURCE_URL" envDefault:"https://www.zhipin.com/wapi/zpCommon/data/cityGroup.json"`
	CityBackupPath string `env:"CITY_BACKUP_PATH" envDefault:"data/cityData.backup.json"`
	CityDataPath   string `env:"CITY_DATA_PATH" envDefault:"data/cities.json"`
}

// Load reads the given .env files (".env" when none are named), then the process
// environment. Variables already set in the environment win over file values, and
// missing files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.ChatProvider {
	case ProviderHTTP, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported CHAT_PROVIDER %q", c.ChatProvider)
	}

	if c.ChatAPIURL == "" {
		return errors.New("CHAT_API_URL must not be empty")
	}
	if c.ChatRequestsPerSecond < 0 {
		return fmt.Errorf("CHAT_REQUESTS_PER_SECOND must not be negative, got %v", c.ChatRequestsPerSecond)
	}
	if c.ChatTimeout < 0 {
		return fmt.Errorf("CHAT_TIMEOUT must not be negative, got %s", c.ChatTimeout)
	}
	if c.DefaultConversationID == "" {
		return errors.New("DEFAULT_CONVERSATION_ID must not be empty")
	}

	switch c.HistoryBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite history backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres history backend")
		}
	default:
		return fmt.Errorf("unsupported HISTORY_BACKEND %q", c.HistoryBackend)
	}

	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogBackend) {
	case "", "default", "logrus", "zap", "null", "none":
	default:
		return fmt.Errorf("unsupported LOG_BACKEND %q", c.LogBackend)
	}

	return nil
}
