package handlers

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/replydesk/dto"
	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/services/storage"
)

// Gmail's message size limit.
const MaxAttachmentSize = 25 << 20

// ListAttachments returns the names of the files that can be attached to a reply.
func ListAttachments(attachmentStorage interfaces.AttachmentStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListAttachments")
		defer span.Finish()
		tracing.TagComponentRest(span)

		files, err := attachmentStorage.ListFiles(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, dto.AttachmentList{Files: files})
	}
}

// UploadAttachment stores the multipart "file" field under its base name.
func UploadAttachment(attachmentStorage interfaces.AttachmentStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "UploadAttachment")
		defer span.Finish()
		tracing.TagComponentRest(span)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > MaxAttachmentSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
			return
		}

		name := filepath.Base(fileHeader.Filename)
		if err := storage.ValidateName(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = mimetype.Detect(data).String()
		}

		if err := attachmentStorage.Upload(ctx, name, data, contentType); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, dto.AttachmentUploaded{Filename: name})
	}
}

func DeleteAttachment(attachmentStorage interfaces.AttachmentStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DeleteAttachment")
		defer span.Finish()
		tracing.TagComponentRest(span)

		name := c.Param("name")
		if err := attachmentStorage.Delete(ctx, name); err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, replyerrors.ErrInvalidAttachment) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "attachment deleted", "filename": name})
	}
}
