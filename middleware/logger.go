package middleware

import (
	"log/slog"
	"time"

	"github.com/Modelos-Microservices/Orders-Microservice/pkg/ctxmanage"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Logger assigns a trace id to every request and logs start/finish with it.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := uuid.NewString()
		ctx := ctxmanage.WithTraceId(c.Request.Context(), traceId)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		slog.Info("started", slog.String(logkey.TraceID, traceId),
			slog.String("Method", c.Request.Method), slog.String("URL Path", c.Request.URL.Path))

		c.Next()

		slog.Info("completed", slog.String(logkey.TraceID, traceId),
			slog.String("Method", c.Request.Method), slog.String("URL Path", c.Request.URL.Path),
			slog.Int("Status Code", c.Writer.Status()),
			slog.Int64("duration μs", time.Since(start).Microseconds()))
	}
}
