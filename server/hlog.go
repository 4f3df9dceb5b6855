package server

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/zishu-lab/jobchat/observability"
)

// hlogAdapter routes hertz's internal logging into an observability.Logger.
// Trace and Notice map to Debug and Info; Fatal maps to Error.
type hlogAdapter struct {
	logger observability.Logger
	level  hlog.Level
}

// NewHertzLogger wraps logger for hlog.SetLogger.
func NewHertzLogger(logger observability.Logger) hlog.FullLogger {
	return &hlogAdapter{logger: logger, level: hlog.LevelInfo}
}

func (h *hlogAdapter) enabled(level hlog.Level) bool {
	return level >= h.level
}

func (h *hlogAdapter) log(ctx context.Context, level hlog.Level, msg string) {
	if !h.enabled(level) {
		return
	}
	logger := h.logger.WithContext(ctx).WithFields(map[string]interface{}{"component": "hertz"})

	switch {
	case level <= hlog.LevelDebug:
		logger.Debug(msg)
	case level <= hlog.LevelNotice:
		logger.Info(msg)
	case level == hlog.LevelWarn:
		logger.Warn(msg)
	default:
		logger.Error(msg)
	}
}

func (h *hlogAdapter) Trace(v ...interface{})  { h.log(context.Background(), hlog.LevelTrace, fmt.Sprint(v...)) }
func (h *hlogAdapter) Debug(v ...interface{})  { h.log(context.Background(), hlog.LevelDebug, fmt.Sprint(v...)) }
func (h *hlogAdapter) Info(v ...interface{})   { h.log(context.Background(), hlog.LevelInfo, fmt.Sprint(v...)) }
func (h *hlogAdapter) Notice(v ...interface{}) { h.log(context.Background(), hlog.LevelNotice, fmt.Sprint(v...)) }
func (h *hlogAdapter) Warn(v ...interface{})   { h.log(context.Background(), hlog.LevelWarn, fmt.Sprint(v...)) }
func (h *hlogAdapter) Error(v ...interface{})  { h.log(context.Background(), hlog.LevelError, fmt.Sprint(v...)) }
func (h *hlogAdapter) Fatal(v ...interface{})  { h.log(context.Background(), hlog.LevelFatal, fmt.Sprint(v...)) }

func (h *hlogAdapter) Tracef(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelTrace, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) Debugf(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelDebug, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) Infof(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelInfo, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) Noticef(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelNotice, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) Warnf(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelWarn, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) Errorf(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelError, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) Fatalf(format string, v ...interface{}) {
	h.log(context.Background(), hlog.LevelFatal, fmt.Sprintf(format, v...))
}

func (h *hlogAdapter) CtxTracef(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelTrace, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) CtxDebugf(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelDebug, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) CtxInfof(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelInfo, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) CtxNoticef(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelNotice, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) CtxWarnf(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelWarn, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) CtxErrorf(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelError, fmt.Sprintf(format, v...))
}
func (h *hlogAdapter) CtxFatalf(ctx context.Context, format string, v ...interface{}) {
	h.log(ctx, hlog.LevelFatal, fmt.Sprintf(format, v...))
}

func (h *hlogAdapter) SetLevel(level hlog.Level) { h.level = level }

// SetOutput is a no-op; the wrapped logger owns its output.
func (h *hlogAdapter) SetOutput(io.Writer) {}
