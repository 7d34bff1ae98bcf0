package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/customeros/replydesk/internal/utils"
)

const RequestIdHeader = "X-Request-Id"

// CustomContextMiddleware adds custom context to all requests and makes sure
// every request carries a request id.
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(RequestIdHeader) == "" {
			c.Request.Header.Set(RequestIdHeader, uuid.NewString())
		}
		c.Header(RequestIdHeader, c.GetHeader(RequestIdHeader))

		ctx := utils.WithCustomContextFromGinRequest(c, appSource)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
