package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/zishu-lab/jobchat/jobs"
	"github.com/zishu-lab/jobchat/observability"
)

const jobsUnavailableMessage = "jobs backend is not configured"

// jobsHandler forwards job search, subscription and email calls to the jobs backend.
type jobsHandler struct {
	client *jobs.Client
	logger observability.Logger
}

type emailsRequest struct {
	Emails []string `json:"emails"`
}

func (h *jobsHandler) search(ctx context.Context, c *app.RequestContext) {
	h.forward(c, func(body json.RawMessage) (json.RawMessage, error) {
		return h.client.SearchJobs(ctx, body)
	})
}

func (h *jobsHandler) subscribe(ctx context.Context, c *app.RequestContext) {
	h.forward(c, func(body json.RawMessage) (json.RawMessage, error) {
		return h.client.SubscribeJobs(ctx, body)
	})
}

func (h *jobsHandler) userEmails(ctx context.Context, c *app.RequestContext) {
	h.forward(c, func(json.RawMessage) (json.RawMessage, error) {
		return h.client.GetUserEmails(ctx)
	})
}

func (h *jobsHandler) updateUserEmails(ctx context.Context, c *app.RequestContext) {
	var req emailsRequest
	if err := sonic.Unmarshal(c.Request.Body(), &req); err != nil {
		errorResponse(c, consts.StatusBadRequest, "invalid request body")
		return
	}
	h.forward(c, func(json.RawMessage) (json.RawMessage, error) {
		return h.client.UpdateUserEmails(ctx, req.Emails)
	})
}

func (h *jobsHandler) subscriptions(ctx context.Context, c *app.RequestContext) {
	h.forward(c, func(json.RawMessage) (json.RawMessage, error) {
		return h.client.GetSubscriptions(ctx)
	})
}

func (h *jobsHandler) deleteSubscription(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	h.forward(c, func(json.RawMessage) (json.RawMessage, error) {
		return h.client.DeleteSubscription(ctx, id)
	})
}

func (h *jobsHandler) updateSubscriptionEmails(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	h.forward(c, func(body json.RawMessage) (json.RawMessage, error) {
		return h.client.UpdateSubscriptionEmails(ctx, id, body)
	})
}

// forward runs call with the request body and relays the backend answer. Backend
// error statuses pass through with their body; transport failures become 502.
func (h *jobsHandler) forward(c *app.RequestContext, call func(body json.RawMessage) (json.RawMessage, error)) {
	if h.client == nil {
		errorResponse(c, consts.StatusServiceUnavailable, jobsUnavailableMessage)
		return
	}

	var body json.RawMessage
	if raw := c.Request.Body(); len(raw) > 0 {
		if !sonic.Valid(raw) {
			errorResponse(c, consts.StatusBadRequest, "invalid request body")
			return
		}
		body = append(json.RawMessage(nil), raw...)
	}

	reply, err := call(body)
	if err != nil {
		var apiErr *jobs.APIError
		if errors.As(err, &apiErr) {
			if len(apiErr.Body) > 0 {
				rawJSONResponse(c, apiErr.StatusCode, apiErr.Body)
			} else {
				errorResponse(c, apiErr.StatusCode, apiErr.Error())
			}
			return
		}
		errorResponse(c, consts.StatusBadGateway, "jobs backend unavailable")
		return
	}

	rawJSONResponse(c, consts.StatusOK, reply)
}
