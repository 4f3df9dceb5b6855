package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/zishu-lab/jobchat/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestLoggerKey = "request_logger"

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(logger observability.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		path := string(c.Path())

		requestID := string(c.Request.Header.Peek(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Response.Header.Set(RequestIDHeader, requestID)

		reqLogger := logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     string(c.Method()),
			"path":       path,
			"client_ip":  c.ClientIP(),
		})
		c.Set(requestLoggerKey, reqLogger)

		c.Next(ctx)

		if path == "/health" {
			return
		}

		latency := time.Since(start)
		statusCode := c.Response.StatusCode()
		done := reqLogger.WithFields(map[string]interface{}{
			"status":     statusCode,
			"latency_ms": latency.Milliseconds(),
		})

		switch {
		case statusCode >= 500:
			done.Error("request completed with server error")
		case statusCode >= 400:
			done.Warn("request completed with client error")
		default:
			done.Info("request completed")
		}
	}
}

// requestLogger returns the logger RequestLogger attached, or fallback.
func requestLogger(c *app.RequestContext, fallback observability.Logger) observability.Logger {
	if v, ok := c.Get(requestLoggerKey); ok {
		if l, ok := v.(observability.Logger); ok {
			return l
		}
	}
	return fallback
}

// Recovery turns a handler panic into a 500 response.
func Recovery(logger observability.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				requestLogger(c, logger).WithFields(map[string]interface{}{
					"panic": fmt.Sprintf("%v", err),
					"stack": string(debug.Stack()),
				}).Error("panic recovered")

				c.JSON(consts.StatusInternalServerError, errorBody("internal server error"))
				c.Abort()
			}
		}()

		c.Next(ctx)
	}
}

// CORS lets the browser frontend call the API from another origin.
func CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Response.Header.Set("Access-Control-Allow-Origin", "*")
		c.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		c.Response.Header.Set("Access-Control-Expose-Headers", RequestIDHeader)

		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}

		c.Next(ctx)
	}
}
