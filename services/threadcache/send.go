package threadcache

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

// SendRequest is the operator's chosen, possibly edited, candidate.
type SendRequest struct {
	ThreadID    string
	Subject     string
	Body        string
	Category    enum.CandidateCategory
	Attachments []string
}

func (r SendRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return replyerrors.ErrEmptySubject
	}
	if strings.TrimSpace(r.Body) == "" {
		return replyerrors.ErrEmptyBody
	}
	return nil
}

// Send delivers a reply and moves the thread to replied. Any failure before the
// provider accepts the message leaves the cache untouched.
func (c *Coordinator) Send(ctx context.Context, req SendRequest) (*models.Thread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Coordinator.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagThread(span, req.ThreadID)
	span.LogFields(tracingLog.String("category", string(req.Category)), tracingLog.Int("attachments", len(req.Attachments)))

	if err := req.Validate(); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	thread, ok := c.findUnreplied(req.ThreadID)
	if !ok {
		tracing.TraceErr(span, replyerrors.ErrThreadNotFound)
		return nil, replyerrors.ErrThreadNotFound
	}
	last := thread.LastMessage()
	if last == nil {
		return nil, replyerrors.ErrThreadHasNoMessages
	}

	self, err := c.selfAddress(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	metadata, err := c.mail.GetMessageMetadata(ctx, last.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to load reply headers")
	}
	if metadata == nil {
		metadata = &interfaces.MessageMetadata{}
	}

	from := self
	if c.cfg.SenderName != "" {
		from = (&mail.Address{Name: c.cfg.SenderName, Address: self}).String()
	}
	draft := interfaces.ReplyDraft{
		ThreadID:    req.ThreadID,
		From:        from,
		To:          recipient(metadata, last),
		Subject:     req.Subject,
		Body:        req.Body,
		InReplyTo:   metadata.MessageID,
		References:  references(metadata),
		Attachments: req.Attachments,
	}

	raw, err := c.composer.Compose(ctx, draft)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to compose reply")
	}

	sentID, err := c.mail.SendMessage(ctx, raw, req.ThreadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to send reply")
	}

	if err := c.mail.ModifyThreadLabels(ctx, req.ThreadID, nil, []string{labelUnread}); err != nil {
		// the mail is already out, so the cache still moves
		tracing.TraceErr(span, err)
		c.log.Warnf("Failed to mark thread %s as read: %v", req.ThreadID, err)
	}

	if sentID == "" {
		sentID = uuid.New().String()
	}
	sent := models.Message{
		ID:          sentID,
		From:        from,
		FromAddress: self,
		Subject:     req.Subject,
		IsFromSelf:  true,
		Body:        req.Body,
		Date:        time.Now().UTC(),
	}

	updated := c.recordSend(thread, sent)
	c.log.Infof("Reply sent for thread %s", req.ThreadID)
	return updated, nil
}

// RecordSend moves an unreplied thread to the head of replied with the sent
// message appended.
func (c *Coordinator) RecordSend(threadID string, sent models.Message) (*models.Thread, error) {
	thread, ok := c.findUnreplied(threadID)
	if !ok {
		return nil, replyerrors.ErrThreadNotFound
	}
	return c.recordSend(thread, sent), nil
}

// recordSend falls back to the thread as it was when the send started if a
// refresh dropped it from unreplied in the meantime.
func (c *Coordinator) recordSend(fallback models.Thread, sent models.Message) *models.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread := fallback
	remaining := make([]models.Thread, 0, len(c.unreplied))
	for _, t := range c.unreplied {
		if t.ThreadID == fallback.ThreadID {
			thread = t
			continue
		}
		remaining = append(remaining, t)
	}

	thread = thread.Clone()
	sent.IsFromSelf = true
	thread.Messages = append(thread.Messages, sent)
	thread.Replied = true
	thread.From = sent.From
	thread.UpdatedAt = sent.Date

	replied := make([]models.Thread, 0, len(c.replied)+1)
	replied = append(replied, thread)
	for _, t := range c.replied {
		if t.ThreadID != thread.ThreadID {
			replied = append(replied, t)
		}
	}

	c.unreplied = remaining
	c.replied = replied

	result := thread.Clone()
	return &result
}

func (c *Coordinator) findUnreplied(threadID string) (models.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.unreplied {
		if t.ThreadID == threadID {
			return t.Clone(), true
		}
	}
	return models.Thread{}, false
}

func recipient(metadata *interfaces.MessageMetadata, last *models.Message) string {
	if metadata.ReplyTo != "" {
		return metadata.ReplyTo
	}
	if metadata.From != "" {
		return metadata.From
	}
	return last.From
}

func references(metadata *interfaces.MessageMetadata) string {
	refs := strings.Fields(metadata.References)
	if metadata.MessageID != "" && !utils.IsStringInSlice(metadata.MessageID, refs) {
		refs = append(refs, metadata.MessageID)
	}
	return strings.Join(refs, " ")
}
