package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatrelay-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

// RequestLogger writes one line per finished request. Health probes only log on failure.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if log == nil || (c.FullPath() == "/healthcheck" && status < 400) {
			return
		}
		kv := requestFields(c, time.Since(start))
		switch {
		case status >= 500:
			log.Error("http request", kv...)
		case status >= 400:
			log.Warn("http request", kv...)
		default:
			log.Info("http request", kv...)
		}
	}
}

func requestFields(c *gin.Context, dur time.Duration) []interface{} {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	kv := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", c.Writer.Status(),
		"duration_ms", dur.Milliseconds(),
	}
	ctx := c.Request.Context()
	if td := ctxutil.GetTraceData(ctx); td != nil {
		kv = append(kv, "trace_id", td.TraceID, "request_id", td.RequestID)
	}
	if id := ctxutil.GetIdentity(ctx); id != nil {
		kv = append(kv, "user_id", id.UserID.String())
	}
	if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
		kv = append(kv, "error", msg)
	}
	return kv
}
