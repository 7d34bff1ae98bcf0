package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/replydesk/api/handlers"
	"github.com/customeros/replydesk/api/middleware"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/services"
)

const appSourceApi = "replydesk"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, log logger.Logger, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(s.ThreadCache, s.Composer, log)

	// Health check and status endpoints (no custom context needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.ThreadCache))

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	}))
	api.Use(middleware.CustomContextMiddleware(appSourceApi))
	api.Use(middleware.TracingMiddleware())
	{
		threads := api.Group("/threads")
		{
			threads.GET("", apiHandlers.Replies.List())
			threads.POST("/refresh", apiHandlers.Replies.Refresh())
		}

		api.POST("/send", apiHandlers.Replies.Send())
		api.GET("/signature", apiHandlers.Replies.Signature())

		attachments := api.Group("/attachments")
		{
			attachments.GET("", handlers.ListAttachments(s.AttachmentStorage))
			attachments.POST("", handlers.UploadAttachment(s.AttachmentStorage))
			attachments.DELETE("/:name", handlers.DeleteAttachment(s.AttachmentStorage))
		}
	}
}
