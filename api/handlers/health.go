package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/replydesk/services/threadcache"
)

type StatusReporter interface {
	Status() threadcache.Status
}

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports the refresh state and the size of both collections.
func Status(reporter StatusReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, reporter.Status())
	}
}
