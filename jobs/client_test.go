package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newBackend(t *testing.T, status int, reply string) (*Client, *recordedRequest) {
	t.Helper()
	got := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.EscapedPath()
		got.body = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c, got
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "://bad"} {
		_, err := NewClient(raw)
		assert.Error(t, err, raw)
	}
}

func TestClient_Calls(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func(c *Client) (json.RawMessage, error)
		wantMethod string
		wantPath   string
		wantBody   string
	}{
		{
			name: "search",
			call: func(c *Client) (json.RawMessage, error) {
				return c.SearchJobs(ctx, map[string]interface{}{"query": "golang", "city": "101010100"})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/jobs/search",
			wantBody:   `{"city":"101010100","query":"golang"}`,
		},
		{
			name: "subscribe",
			call: func(c *Client) (json.RawMessage, error) {
				return c.SubscribeJobs(ctx, map[string]string{"query": "rust"})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/jobs/subscribe",
			wantBody:   `{"query":"rust"}`,
		},
		{
			name:       "get emails",
			call:       func(c *Client) (json.RawMessage, error) { return c.GetUserEmails(ctx) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/user/emails",
		},
		{
			name: "update emails",
			call: func(c *Client) (json.RawMessage, error) {
				return c.UpdateUserEmails(ctx, []string{"a@example.com"})
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/user/emails",
			wantBody:   `{"emails":["a@example.com"]}`,
		},
		{
			name:       "update emails with nil list",
			call:       func(c *Client) (json.RawMessage, error) { return c.UpdateUserEmails(ctx, nil) },
			wantMethod: http.MethodPut,
			wantPath:   "/api/user/emails",
			wantBody:   `{"emails":[]}`,
		},
		{
			name:       "list subscriptions",
			call:       func(c *Client) (json.RawMessage, error) { return c.GetSubscriptions(ctx) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/jobs/subscriptions",
		},
		{
			name:       "delete subscription",
			call:       func(c *Client) (json.RawMessage, error) { return c.DeleteSubscription(ctx, "42") },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/jobs/subscription/42",
		},
		{
			name: "update subscription emails",
			call: func(c *Client) (json.RawMessage, error) {
				return c.UpdateSubscriptionEmails(ctx, "7", []string{"b@example.com"})
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/jobs/subscription/7/emails",
			wantBody:   `["b@example.com"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, got := newBackend(t, http.StatusOK, `{"ok":true}`)

			reply, err := tt.call(c)
			require.NoError(t, err)
			assert.JSONEq(t, `{"ok":true}`, string(reply))

			assert.Equal(t, tt.wantMethod, got.method)
			assert.Equal(t, tt.wantPath, got.path)
			if tt.wantBody == "" {
				assert.Empty(t, got.body)
			} else {
				assert.JSONEq(t, tt.wantBody, got.body)
			}
		})
	}
}

func TestClient_APIError(t *testing.T) {
	c, _ := newBackend(t, http.StatusBadRequest, `{"detail":"bad city"}`)

	_, err := c.SearchJobs(context.Background(), map[string]string{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.JSONEq(t, `{"detail":"bad city"}`, string(apiErr.Body))
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestClient_EmptyReply(t *testing.T) {
	c, _ := newBackend(t, http.StatusNoContent, "")

	reply, err := c.DeleteSubscription(context.Background(), "1")
	assert.NoError(t, err)
	assert.Nil(t, reply)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.GetSubscriptions(context.Background())
	assert.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
