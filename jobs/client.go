// Package jobs is a thin client for the job search backend. Request and response
// bodies are passed through as opaque JSON.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/zishu-lab/jobchat/observability"
)

const (
	endpointSearch              = "/api/jobs/search"
	endpointSubscribe           = "/api/jobs/subscribe"
	endpointUserEmails          = "/api/user/emails"
	endpointSubscriptions       = "/api/jobs/subscriptions"
	endpointSubscription        = "/api/jobs/subscription/%s"
	endpointSubscriptionEmails  = "/api/jobs/subscription/%s/emails"
	defaultDialTimeout          = 10 * time.Second
	defaultMaxIdleConnDuration  = 60 * time.Second
)

// APIError is a non-2xx answer from the backend. Body is kept verbatim so callers
// can relay it.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("jobs backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("jobs backend returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the job search backend.
type Client struct {
	baseURL string
	client  *client.Client
	logger  observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for failed calls.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHertzClient replaces the underlying hertz client.
func WithHertzClient(hc *client.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a client for the backend at baseURL, e.g. "http://localhost:8000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid jobs backend URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  observability.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		hc, err := client.NewClient(
			client.WithDialTimeout(defaultDialTimeout),
			client.WithMaxIdleConnDuration(defaultMaxIdleConnDuration),
			client.WithDialer(standard.NewDialer()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		c.client = hc
	}

	return c, nil
}

// SearchJobs runs a job search with the given filter parameters.
func (c *Client) SearchJobs(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.do(ctx, "search jobs", consts.MethodPost, endpointSearch, params)
}

// SubscribeJobs registers a job subscription.
func (c *Client) SubscribeJobs(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.do(ctx, "subscribe jobs", consts.MethodPost, endpointSubscribe, params)
}

// GetUserEmails returns the user's notification addresses.
func (c *Client) GetUserEmails(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "get user emails", consts.MethodGet, endpointUserEmails, nil)
}

// UpdateUserEmails replaces the user's notification addresses.
func (c *Client) UpdateUserEmails(ctx context.Context, emails []string) (json.RawMessage, error) {
	if emails == nil {
		emails = []string{}
	}
	return c.do(ctx, "update user emails", consts.MethodPut, endpointUserEmails, map[string][]string{"emails": emails})
}

// GetSubscriptions lists the user's subscriptions.
func (c *Client) GetSubscriptions(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "get subscriptions", consts.MethodGet, endpointSubscriptions, nil)
}

// DeleteSubscription removes one subscription.
func (c *Client) DeleteSubscription(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, "delete subscription", consts.MethodDelete, fmt.Sprintf(endpointSubscription, url.PathEscape(id)), nil)
}

// UpdateSubscriptionEmails sets the addresses notified for one subscription.
// emailList is sent as is.
func (c *Client) UpdateSubscriptionEmails(ctx context.Context, id string, emailList interface{}) (json.RawMessage, error) {
	return c.do(ctx, "update subscription emails", consts.MethodPut, fmt.Sprintf(endpointSubscriptionEmails, url.PathEscape(id)), emailList)
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (json.RawMessage, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		bodyBytes, err := sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(bodyBytes)
	}

	logger := c.logger.WithFields(map[string]interface{}{"op": op, "path": path})

	if err := c.client.Do(ctx, req, resp); err != nil {
		logger.WithErr(err).Error("jobs backend request failed")
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}

	// resp is released on return, so the body must be copied out.
	payload := append([]byte(nil), resp.Body()...)

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		apiErr := &APIError{StatusCode: status, Body: payload}
		logger.WithErr(apiErr).Warn("jobs backend rejected request")
		return nil, apiErr
	}

	if len(payload) == 0 {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}
