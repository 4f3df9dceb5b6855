package server

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/zishu-lab/jobchat/courses"
	"github.com/zishu-lab/jobchat/observability"
)

// CoursesSavedMessage acknowledges a stored course list.
const CoursesSavedMessage = "Course data saved for AI prompts"

type courseHandler struct {
	store     *courses.Store
	catalogue *courses.Client
	logger    observability.Logger
}

// sendCourses handles POST /api/ai/send-courses.
func (h *courseHandler) sendCourses(ctx context.Context, c *app.RequestContext) {
	list, err := courses.ValidatePayload(c.Request.Body())
	if err != nil {
		requestLogger(c, h.logger).WithErr(err).Warn("rejected course payload")
		errorResponse(c, consts.StatusBadRequest, courses.InvalidPayloadMessage)
		return
	}

	h.store.Set(list)
	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"message": CoursesSavedMessage,
	})
}

// list handles GET /api/ai/courses and returns the stored list as posted.
func (h *courseHandler) list(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.store.All())
}

// getCatalogue handles GET /api/courses/catalogue.
func (h *courseHandler) getCatalogue(ctx context.Context, c *app.RequestContext) {
	if h.catalogue == nil {
		errorResponse(c, consts.StatusServiceUnavailable, courses.FetchErrorMessage)
		return
	}

	body, err := h.catalogue.FetchAll(ctx)
	if err != nil {
		errorResponse(c, consts.StatusBadGateway, courses.FetchErrorMessage)
		return
	}
	rawJSONResponse(c, consts.StatusOK, body)
}
