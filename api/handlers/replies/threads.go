package replies

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/replydesk/dto"
	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

const appSourceApiRefresh = "api-refresh"

// List returns the unreplied and replied collections.
func (h *RepliesHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.cache.Snapshot())
	}
}

// Refresh starts a refresh in the background. The request does not wait for it.
func (h *RepliesHandler) Refresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache.IsRefreshing() {
			c.JSON(http.StatusConflict, gin.H{"error": replyerrors.ErrRefreshInProgress.Error()})
			return
		}

		// detached from the request so the refresh outlives it
		ctx := utils.SetAppSourceInContext(context.WithoutCancel(c.Request.Context()), appSourceApiRefresh)
		go func() {
			defer tracing.RecoverAndLogToJaeger(h.log)
			ran, err := h.cache.Refresh(ctx)
			if err != nil {
				h.log.Errorf("Requested thread refresh failed: %v", err)
				return
			}
			if !ran {
				h.log.Info("Requested thread refresh skipped, another refresh started first")
			}
		}()

		c.JSON(http.StatusAccepted, dto.RefreshAccepted{Status: "refresh started"})
	}
}

func (h *RepliesHandler) Signature() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.SignatureResponse{Signature: h.composer.Signature()})
	}
}
