package observability

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ctxKeyRequestID = "request_id"
	ctxKeyTraceID   = "trace_id"
)

// RequestContextMiddleware ensures each request has a request id and captures trace id for log correlation.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if reqID == "" {
			reqID = newRequestID()
		}
		c.Set(ctxKeyRequestID, reqID)
		c.Writer.Header().Set("X-Request-Id", reqID)

		if traceID := extractTraceID(c.Request); traceID != "" {
			c.Set(ctxKeyTraceID, traceID)
		}

		c.Next()
	}
}

// AccessLogMiddleware emits a structured access log per request.
func AccessLogMiddleware() gin.HandlerFunc {
	projectID := strings.TrimSpace(os.Getenv("GCP_PROJECT_ID"))

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Int64("latency_ms", latency.Milliseconds()),
		}

		if reqID := getString(c, ctxKeyRequestID); reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}
		if traceID := getString(c, ctxKeyTraceID); traceID != "" && projectID != "" {
			attrs = append(attrs, slog.String("logging.googleapis.com/trace",
				"projects/"+projectID+"/traces/"+traceID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		slog.Default().LogAttrs(c.Request.Context(), level, "http_request", attrs...)
	}
}

// extractTraceID attempts to extract a trace id from common headers.
// - X-Cloud-Trace-Context: TRACE_ID/SPAN_ID;o=1
// - traceparent: 00-TRACE_ID-SPAN_ID-FLAGS
func extractTraceID(r *http.Request) string {
	if r == nil {
		return ""
	}

	if h := strings.TrimSpace(r.Header.Get("X-Cloud-Trace-Context")); h != "" {
		if i := strings.IndexByte(h, '/'); i > 0 {
			return h[:i]
		}
	}

	if h := strings.TrimSpace(r.Header.Get("traceparent")); h != "" {
		parts := strings.Split(h, "-")
		if len(parts) >= 4 && len(parts[1]) == 32 {
			return parts[1]
		}
	}

	return ""
}

func getString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UTC().Format(time.RFC3339Nano)
	}
	return hex.EncodeToString(b[:])
}
