package replies

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	custom_err "github.com/customeros/replydesk/api/errors"
	"github.com/customeros/replydesk/dto"
	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/services/storage"
	"github.com/customeros/replydesk/services/threadcache"
)

// Send delivers the chosen reply and returns the thread as it now sits in replied.
func (h *RepliesHandler) Send() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RepliesHandler.Send")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.SendReplyRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			h.respondWithError(c, span, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		tracing.TagThread(span, request.ThreadID)

		errs := h.validateRequest(ctx, &request)
		if errs.HasErrors() {
			tracing.TraceErr(span, errs)
			c.JSON(http.StatusBadRequest, errs)
			return
		}

		thread, err := h.cache.Send(ctx, threadcache.SendRequest{
			ThreadID:    request.ThreadID,
			Subject:     request.Response.Subject,
			Body:        request.Response.Body,
			Category:    request.Response.Category,
			Attachments: request.Attachments,
		})
		if err != nil {
			h.respondWithError(c, span, statusForSendError(err), "Failed to send reply", err)
			return
		}

		c.JSON(http.StatusOK, dto.SendReplyResult{
			Success:       true,
			UpdatedThread: thread,
		})
	}
}

func (h *RepliesHandler) respondWithError(c *gin.Context, span opentracing.Span, statusCode int, message string, err error) {
	tracing.TraceErr(span, err)
	if statusCode >= http.StatusInternalServerError {
		h.log.Errorf("%s: %v", message, err)
	}
	c.JSON(statusCode, gin.H{"error": message, "details": err.Error()})
}

// validateRequest collects every problem so the caller can fix them in one go.
func (h *RepliesHandler) validateRequest(ctx context.Context, request *dto.SendReplyRequest) *custom_err.MultiErrors {
	span, _ := opentracing.StartSpanFromContext(ctx, "RepliesHandler.validateRequest")
	defer span.Finish()
	tracing.TagComponentRest(span)

	errs := custom_err.NewMultiErrors()

	if strings.TrimSpace(request.ThreadID) == "" {
		errs.Add("threadId", "threadId is required", errors.New("threadId is empty"))
	}
	if strings.TrimSpace(request.Response.Subject) == "" {
		errs.Add("response.subject", "subject must not be empty", replyerrors.ErrEmptySubject)
	}
	if strings.TrimSpace(request.Response.Body) == "" {
		errs.Add("response.body", "body must not be empty", replyerrors.ErrEmptyBody)
	}
	for _, name := range request.Attachments {
		if err := storage.ValidateName(name); err != nil {
			errs.Add("attachments", err.Error(), err)
		}
	}

	return errs
}

func statusForSendError(err error) int {
	switch {
	case errors.Is(err, replyerrors.ErrEmptySubject),
		errors.Is(err, replyerrors.ErrEmptyBody),
		errors.Is(err, replyerrors.ErrInvalidAttachment),
		errors.Is(err, replyerrors.ErrAttachmentNotFound):
		return http.StatusBadRequest
	case errors.Is(err, replyerrors.ErrThreadNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
