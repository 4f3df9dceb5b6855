package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/zishu-lab/jobchat"
	"github.com/zishu-lab/jobchat/courses"
	"github.com/zishu-lab/jobchat/observability"
)

const (
	eventDelta  = "delta"
	eventResult = "result"
	doneMarker  = "[DONE]"
)

type chatRequest struct {
	Message        string      `json:"message"`
	JobContext     interface{} `json:"jobContext"`
	ConversationID string      `json:"conversationId"`
	Stream         bool        `json:"stream"`
	WithCourses    bool        `json:"withCourses"`
}

type deltaEvent struct {
	Content string `json:"content"`
}

type conversationInfo struct {
	ConversationID string                 `json:"conversationId"`
	CreatedAt      time.Time              `json:"createdAt"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// eventWriter is the part of sse.Writer the relay needs.
type eventWriter interface {
	WriteEvent(id, event string, data []byte) error
}

type chatHandler struct {
	sessions *jobchat.SessionManager
	courses  *courses.Store
	logger   observability.Logger
}

// send handles POST /api/chat.
func (h *chatHandler) send(ctx context.Context, c *app.RequestContext) {
	var req chatRequest
	if err := sonic.Unmarshal(c.Request.Body(), &req); err != nil {
		errorResponse(c, consts.StatusBadRequest, "invalid request body")
		return
	}

	message := req.Message
	if req.WithCourses && message != "" {
		message = courses.BuildPromptWithContext(message, h.courses.All())
	}

	if !req.Stream {
		result := h.sessions.SendMessage(ctx, message, req.JobContext, req.ConversationID, nil)
		if !result.Success {
			c.JSON(statusForChatError(result.Err), result)
			return
		}
		c.JSON(consts.StatusOK, result)
		return
	}

	// Reject blank input before the event stream is opened.
	if strings.TrimSpace(message) == "" {
		c.JSON(consts.StatusBadRequest, jobchat.ChatResult{Success: false, Error: jobchat.ErrEmptyMessage.Error()})
		return
	}

	c.SetStatusCode(consts.StatusOK)
	w := sse.NewWriter(c)
	defer w.Close()

	h.relay(ctx, w, req.ConversationID, message, req.JobContext, requestLogger(c, h.logger))
}

// relay streams deltas as "delta" events, then the final ChatResult as a "result"
// event, then the done marker. A failed write cancels the upstream request.
func (h *chatHandler) relay(ctx context.Context, w eventWriter, conversationID, message string, jobContext interface{}, logger observability.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeErr error
	result := h.sessions.SendMessage(ctx, message, jobContext, conversationID, func(delta string) {
		if writeErr != nil {
			return
		}
		data, err := sonic.Marshal(deltaEvent{Content: delta})
		if err == nil {
			err = w.WriteEvent("", eventDelta, data)
		}
		if err != nil {
			writeErr = err
			cancel()
		}
	})

	if writeErr != nil {
		logger.WithErr(writeErr).Warn("client went away during chat stream")
		return
	}

	data, err := sonic.Marshal(result)
	if err != nil {
		logger.WithErr(err).Error("failed to encode chat result")
		return
	}
	if err := w.WriteEvent("", eventResult, data); err != nil {
		logger.WithErr(err).Warn("failed to write result event")
		return
	}
	if err := w.WriteEvent("", "", []byte(doneMarker)); err != nil {
		logger.WithErr(err).Warn("failed to write done event")
	}
}

// create handles POST /api/chat/conversations.
func (h *chatHandler) create(ctx context.Context, c *app.RequestContext) {
	successResponse(c, conversationInfo{
		ConversationID: jobchat.NewConversationID(),
		CreatedAt:      time.Now(),
	})
}

// list handles GET /api/chat/conversations.
func (h *chatHandler) list(ctx context.Context, c *app.RequestContext) {
	histories, err := h.sessions.ListConversations(ctx)
	if err != nil {
		requestLogger(c, h.logger).WithErr(err).Error("failed to list conversations")
		errorResponse(c, consts.StatusInternalServerError, "failed to list conversations")
		return
	}

	out := make([]conversationInfo, 0, len(histories))
	for _, history := range histories {
		out = append(out, conversationInfo{
			ConversationID: history.SessionID,
			CreatedAt:      history.CreatedAt,
			Metadata:       history.Metadata,
		})
	}
	successResponse(c, out)
}

// history handles GET /api/chat/:id/history.
func (h *chatHandler) history(ctx context.Context, c *app.RequestContext) {
	messages, err := h.sessions.GetConversationHistory(ctx, c.Param("id"))
	if err != nil {
		requestLogger(c, h.logger).WithErr(err).Error("failed to load conversation history")
		errorResponse(c, consts.StatusInternalServerError, "failed to load conversation history")
		return
	}
	successResponse(c, messages)
}

// clear handles DELETE /api/chat/:id.
func (h *chatHandler) clear(ctx context.Context, c *app.RequestContext) {
	if err := h.sessions.ClearConversation(ctx, c.Param("id")); err != nil {
		requestLogger(c, h.logger).WithErr(err).Error("failed to clear conversation")
		errorResponse(c, consts.StatusInternalServerError, "failed to clear conversation")
		return
	}
	successResponse(c, nil)
}

func statusForChatError(err error) int {
	var llmErr *jobchat.LLMError
	var transportErr *jobchat.TransportError

	switch {
	case errors.Is(err, jobchat.ErrEmptyMessage):
		return consts.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return consts.StatusGatewayTimeout
	case errors.As(err, &llmErr), errors.As(err, &transportErr):
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}
