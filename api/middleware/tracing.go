package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/log"

	"github.com/customeros/replydesk/internal/tracing"
)

// TracingMiddleware creates a new span for each request and adds common tags
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		tracing.SetDefaultRestSpanTags(ctx, span)

		if name := c.Param("name"); name != "" {
			span.LogFields(log.String("attachment", name))
		}

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetTag("http.status_code", c.Writer.Status())
		if c.Writer.Status() >= 500 {
			span.SetTag("error", true)
			span.LogFields(log.String("event", "error"), log.Int("status", c.Writer.Status()))
		}
	}
}
