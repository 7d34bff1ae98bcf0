package errors

import "github.com/pkg/errors"

var (
	// send validation
	ErrEmptySubject = errors.New("reply subject is empty")
	ErrEmptyBody    = errors.New("reply body is empty")

	// cache errors
	ErrThreadNotFound      = errors.New("thread not found among unreplied threads")
	ErrThreadHasNoMessages = errors.New("thread has no messages")
	ErrRefreshInProgress   = errors.New("refresh already in progress")

	// attachment errors
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidAttachment  = errors.New("invalid attachment name")
)
