package server

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

func errorBody(message string) utils.H {
	return utils.H{"error": message}
}

func successResponse(c *app.RequestContext, data interface{}) {
	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"data":    data,
	})
}

func errorResponse(c *app.RequestContext, status int, message string) {
	c.JSON(status, errorBody(message))
}

// rawJSONResponse writes an upstream JSON body through unchanged.
func rawJSONResponse(c *app.RequestContext, status int, body []byte) {
	if len(body) == 0 {
		c.Status(status)
		return
	}
	c.Data(status, consts.MIMEApplicationJSONUTF8, body)
}
