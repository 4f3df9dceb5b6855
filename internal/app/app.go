// Package app assembles the chat services from a config.Config.
package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/option"
	"github.com/zishu-lab/jobchat"
	"github.com/zishu-lab/jobchat/cities"
	"github.com/zishu-lab/jobchat/config"
	"github.com/zishu-lab/jobchat/courses"
	"github.com/zishu-lab/jobchat/jobs"
	"github.com/zishu-lab/jobchat/observability"
	"github.com/zishu-lab/jobchat/server"
)

const chatCompletionsSuffix = "/chat/completions"

// App holds the long-lived components built from one configuration.
type App struct {
	Config    *config.Config
	Logger    observability.Logger
	Storage   jobchat.ChatHistoryStorage
	Provider  jobchat.LLMProvider
	Sessions  *jobchat.SessionManager
	Courses   *courses.Store
	Catalogue *courses.Client
	Jobs      *jobs.Client

	closers []io.Closer
}

// New builds every component named by cfg. Callers must Close the result.
func New(cfg *config.Config) (*App, error) {
	logger, err := observability.New(cfg.LogBackend, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Courses: courses.NewStore(),
	}

	if err := a.openStorage(); err != nil {
		return nil, err
	}

	a.Provider = NewProvider(cfg, logger)

	a.Sessions = jobchat.NewSessionManager(a.Provider, a.Storage, logger,
		jobchat.WithDefaultConversationID(cfg.DefaultConversationID),
		jobchat.WithRequestConfig(jobchat.NewRequestConfig(
			jobchat.WithMaxToken(cfg.ChatMaxTokens),
			jobchat.WithTemperature(cfg.ChatTemperature),
		)),
	)

	if cfg.CoursesAPIURL != "" {
		if a.Catalogue, err = courses.NewClient(cfg.CoursesAPIURL, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.JobsAPIURL != "" {
		if a.Jobs, err = jobs.NewClient(cfg.JobsAPIURL, jobs.WithLogger(logger)); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn("JOBS_API_URL is not set; job routes will answer 503")
	}

	return a, nil
}

func (a *App) openStorage() error {
	cfg := a.Config

	switch cfg.HistoryBackend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		storage, err := jobchat.OpenSQLiteChatHistoryStorage(cfg.SQLitePath, a.Logger)
		if err != nil {
			return err
		}
		a.Storage = storage
		a.closers = append(a.closers, storage)
	case config.BackendPostgres:
		storage, err := jobchat.OpenPostgresChatHistoryStorage(cfg.PostgresDSN, a.Logger)
		if err != nil {
			return err
		}
		a.Storage = storage
		a.closers = append(a.closers, storage)
	default:
		a.Storage = jobchat.NewInMemoryChatHistoryStorage()
	}

	a.Logger.WithFields(map[string]interface{}{"backend": string(cfg.HistoryBackend)}).Debug("chat history storage ready")
	return nil
}

// NewProvider builds the chat provider selected by cfg.ChatProvider, wrapped in
// tracing when enabled.
func NewProvider(cfg *config.Config, logger observability.Logger) jobchat.LLMProvider {
	httpClient := &http.Client{Timeout: cfg.ChatTimeout}

	var provider jobchat.LLMProvider
	switch cfg.ChatProvider {
	case config.ProviderOpenAI:
		client := jobchat.NewOpenAIClient(cfg.ChatAPIKey, SDKBaseURL(cfg.ChatAPIURL), option.WithHTTPClient(httpClient))
		provider = jobchat.NewOpenAILLMProvider(jobchat.OpenAIProviderConfig{
			Client: client,
			Model:  cfg.ChatModel,
		})
	default:
		provider = jobchat.NewOpenAICompatibleLLMProvider(jobchat.OpenAICompatibleProviderConfig{
			URL:               cfg.ChatAPIURL,
			APIKey:            cfg.ChatAPIKey,
			Model:             cfg.ChatModel,
			HTTPClient:        httpClient,
			RequestsPerSecond: cfg.ChatRequestsPerSecond,
			Logger:            logger,
		})
	}

	if cfg.ChatTracing {
		provider = jobchat.NewTracingLLMProvider(provider)
	}
	return provider
}

// SDKBaseURL turns a full chat completions endpoint into the base URL the openai-go
// client appends its own path to.
func SDKBaseURL(endpoint string) string {
	base := strings.TrimSuffix(strings.TrimRight(endpoint, "/"), chatCompletionsSuffix)
	return base + "/"
}

// ServerOptions returns the HTTP server wiring for this app.
func (a *App) ServerOptions() server.Options {
	return server.Options{
		Addr:         a.Config.ServerAddr,
		Sessions:     a.Sessions,
		Courses:      a.Courses,
		Catalogue:    a.Catalogue,
		Jobs:         a.Jobs,
		CityDataPath: a.Config.CityDataPath,
		Logger:       a.Logger,
	}
}

// CityFetcher returns a fetcher for the configured city feed.
func (a *App) CityFetcher() (*cities.Fetcher, error) {
	return cities.NewFetcher(a.Config.CitySourceURL, a.Config.CityBackupPath, a.Logger)
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("failed to close app: %w", errors.Join(errs...))
	}
	return nil
}
