package courses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/zishu-lab/jobchat/observability"
	"golang.org/x/sync/singleflight"
)

// DefaultCatalogueURL serves the full course catalogue.
const DefaultCatalogueURL = "https://zishu.co/api/course/fetch_all_courses"

// FetchErrorMessage prefixes every catalogue fetch failure.
const FetchErrorMessage = "获取课程信息失败"

// fetchTimeout bounds one shared catalogue request, independent of any caller.
const fetchTimeout = 30 * time.Second

var errEmptyCatalogue = errors.New("empty response")

// Client downloads the course catalogue. Concurrent FetchAll calls share one request.
type Client struct {
	url    string
	client *client.Client
	logger observability.Logger
	group  singleflight.Group
}

// NewClient creates a catalogue client. An empty url selects DefaultCatalogueURL.
func NewClient(url string, logger observability.Logger) (*Client, error) {
	if url == "" {
		url = DefaultCatalogueURL
	}
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	hc, err := client.NewClient(
		client.WithDialTimeout(10*time.Second),
		client.WithClientReadTimeout(30*time.Second),
		client.WithDialer(standard.NewDialer()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{url: url, client: hc, logger: logger}, nil
}

// FetchAll returns the catalogue exactly as served. Any status other than 200 or an
// empty body is an error. The shared request runs detached from ctx, so one caller
// giving up does not fail the others; ctx only bounds how long this caller waits.
func (c *Client) FetchAll(ctx context.Context) (json.RawMessage, error) {
	ch := c.group.DoChan(c.url, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", FetchErrorMessage, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			c.logger.WithErr(res.Err).Error(FetchErrorMessage)
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("course catalogue request shared")
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (c *Client) fetch(ctx context.Context) (json.RawMessage, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(consts.MethodGet)
	req.SetRequestURI(c.url)
	req.Header.Set("Accept", "application/json")

	if err := c.client.Do(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("%s: %w", FetchErrorMessage, err)
	}
	if resp.StatusCode() != consts.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", FetchErrorMessage, resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("%s: %w", FetchErrorMessage, errEmptyCatalogue)
	}

	return json.RawMessage(append([]byte(nil), resp.Body()...)), nil
}
