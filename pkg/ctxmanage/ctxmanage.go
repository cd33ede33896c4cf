package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type key string

const TraceIdKey key = "traceId"

// GetTraceIdOfRequest returns the trace id set by the logging middleware,
// generating one if the middleware did not run (e.g. webhook path).
func GetTraceIdOfRequest(c *gin.Context) string {
	ctx := c.Request.Context()
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok || traceId == "" {
		traceId = uuid.NewString()
	}
	return traceId
}

// WithTraceId stores the trace id on the request context.
func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}

// GetTraceId reads the trace id from a plain context, for code that runs
// outside an HTTP request (kafka consumer, background jobs).
func GetTraceId(ctx context.Context) string {
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok || traceId == "" {
		return uuid.NewString()
	}
	return traceId
}
