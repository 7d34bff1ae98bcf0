package classifier

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

const transcriptSeparator = "\n\n--- Next Message ---\n\n"

type Options struct {
	IgnoreSenders []string
	// SkipAutomated keeps automated threads visible but never asks the AI for drafts
	SkipAutomated bool
}

type Classifier struct {
	mail      interfaces.MailProvider
	extractor interfaces.BodyExtractor
	generator interfaces.ResponseGenerator
	filter    interfaces.EmailFilterService
	log       logger.Logger
	opts      Options
}

func NewClassifier(mail interfaces.MailProvider, extractor interfaces.BodyExtractor, generator interfaces.ResponseGenerator, filter interfaces.EmailFilterService, log logger.Logger, opts Options) *Classifier {
	return &Classifier{
		mail:      mail,
		extractor: extractor,
		generator: generator,
		filter:    filter,
		log:       log,
		opts:      opts,
	}
}

// Classify fetches a thread and builds its cached record. A nil thread with a nil
// error means the thread has nothing worth showing and must be dropped.
func (c *Classifier) Classify(ctx context.Context, threadID, selfAddress string) (*models.Thread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Classifier.Classify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagThread(span, threadID)

	providerThread, err := c.mail.GetThread(ctx, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to fetch thread %s", threadID)
	}
	if providerThread == nil || len(providerThread.Messages) == 0 {
		span.LogFields(tracingLog.String("result", "empty thread"))
		return nil, nil
	}

	providerMessages := append([]interfaces.ProviderMessage(nil), providerThread.Messages...)
	sort.SliceStable(providerMessages, func(i, j int) bool {
		return providerMessages[i].InternalDate.Before(providerMessages[j].InternalDate)
	})

	messages := make([]models.Message, 0, len(providerMessages))
	for _, pm := range providerMessages {
		message := c.toMessage(ctx, pm, selfAddress)
		// own messages stay even when empty so the replied flag is backed by a message
		if message.Body == "" && !message.IsFromSelf {
			continue
		}
		messages = append(messages, message)
	}
	if len(messages) == 0 {
		span.LogFields(tracingLog.String("result", "no content"))
		return nil, nil
	}

	thread := &models.Thread{
		ThreadID:     threadID,
		Messages:     messages,
		Replied:      anyFromSelf(messages),
		Participants: participants(messages),
		Subject:      latestSubject(messages),
		Snippet:      snippet(providerThread, providerMessages),
		Candidates:   []models.ResponseCandidate{},
		UpdatedAt:    time.Now().UTC(),
	}
	thread.From = thread.LastMessage().From

	if thread.Replied {
		span.LogFields(tracingLog.Bool("replied", true))
		return thread, nil
	}

	if inbound := latestInbound(messages); inbound != nil {
		if utils.ContainsAnyFold(inbound.FromAddress, c.opts.IgnoreSenders) {
			c.log.Debugf("Dropping thread %s from ignored sender %s", threadID, inbound.FromAddress)
			return nil, nil
		}
		if c.opts.SkipAutomated && inbound.Classification.IsAutomated() {
			c.log.Debugf("Skipping generation for thread %s classified as %s", threadID, inbound.Classification)
			span.LogFields(tracingLog.String("classification", inbound.Classification.String()))
			return thread, nil
		}
	}

	if c.generator != nil {
		if candidates := c.generator.Candidates(ctx, BuildTranscript(messages), thread.Subject); candidates != nil {
			thread.Candidates = candidates
		}
	}
	span.LogFields(tracingLog.Int("candidates", len(thread.Candidates)))
	return thread, nil
}

func (c *Classifier) toMessage(ctx context.Context, pm interfaces.ProviderMessage, selfAddress string) models.Message {
	from := pm.Headers.Get("From")
	message := models.Message{
		ID:              pm.ID,
		MessageIDHeader: pm.Headers.Get("Message-Id"),
		From:            from,
		FromAddress:     utils.ExtractEmailAddress(from),
		Subject:         pm.Headers.Get("Subject"),
		IsFromSelf:      utils.SameEmailAddress(from, selfAddress),
		Body:            c.extractor.Extract(pm.Payload),
		Date:            pm.InternalDate,
		Headers:         pm.Headers,
	}
	if !message.IsFromSelf && c.filter != nil {
		message.Classification, _ = c.filter.ScanMessage(ctx, &message)
	}
	return message
}

// BuildTranscript labels each non-empty message with its sender, oldest first.
func BuildTranscript(messages []models.Message) string {
	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Body) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("From: %s\n\n%s", m.From, m.Body))
	}
	return strings.Join(blocks, transcriptSeparator)
}

func anyFromSelf(messages []models.Message) bool {
	for _, m := range messages {
		if m.IsFromSelf {
			return true
		}
	}
	return false
}

func participants(messages []models.Message) []string {
	addresses := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.FromAddress != "" {
			addresses = append(addresses, m.FromAddress)
		}
	}
	return utils.UniqueStrings(addresses)
}

func latestSubject(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if subject := strings.TrimSpace(messages[i].Subject); subject != "" {
			return subject
		}
	}
	return ""
}

func latestInbound(messages []models.Message) *models.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].IsFromSelf {
			return &messages[i]
		}
	}
	return nil
}

func snippet(thread *interfaces.ProviderThread, sorted []interfaces.ProviderMessage) string {
	text := thread.Snippet
	if last := sorted[len(sorted)-1]; last.Snippet != "" {
		text = last.Snippet
	}
	return html.UnescapeString(text)
}
