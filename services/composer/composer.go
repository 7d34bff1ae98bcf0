package composer

import (
	"bytes"
	"context"
	"html"
	"mime"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jhillyerd/enmime"
	"github.com/microcosm-cc/bluemonday"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

type Config struct {
	// Signature is trusted HTML appended after the body
	Signature       string
	MessageIDDomain string
}

type Composer struct {
	cfg     Config
	storage interfaces.AttachmentStorage
	policy  *bluemonday.Policy
}

func NewComposer(cfg Config, storage interfaces.AttachmentStorage) *Composer {
	return &Composer{
		cfg:     cfg,
		storage: storage,
		policy:  bluemonday.UGCPolicy(),
	}
}

func (c *Composer) Signature() string {
	return c.cfg.Signature
}

// Compose renders a reply draft as raw RFC 5322 bytes.
func (c *Composer) Compose(ctx context.Context, draft interfaces.ReplyDraft) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Composer.Compose")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagThread(span, draft.ThreadID)

	from, err := parseAddress(draft.From)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "invalid sender")
	}
	to, err := parseAddress(draft.To)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "invalid recipient")
	}

	domain := c.cfg.MessageIDDomain
	if domain == "" {
		domain = utils.ExtractDomainFromEmail(from.Address)
	}
	messageID := utils.GenerateMessageID(domain, draft.ThreadID)

	builder := enmime.Builder().
		From(from.Name, from.Address).
		To(to.Name, to.Address).
		Subject(draft.Subject).
		Date(time.Now()).
		Header("Message-ID", messageID).
		Text([]byte(draft.Body)).
		HTML([]byte(c.RenderHTML(draft.Body)))

	if inReplyTo := utils.WrapMessageID(draft.InReplyTo); inReplyTo != "" {
		builder = builder.Header("In-Reply-To", inReplyTo)
	}
	if draft.References != "" {
		builder = builder.Header("References", draft.References)
	}

	for _, name := range draft.Attachments {
		data, contentType, err := c.attachment(ctx, name)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		builder = builder.AddAttachment(data, contentType, name)
	}

	root, err := builder.Build()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to build reply")
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to encode reply")
	}
	span.LogFields(tracingLog.String("messageId", messageID), tracingLog.Int("size", buf.Len()))
	return buf.Bytes(), nil
}

// RenderHTML escapes the operator's plain text so the customer sees it verbatim,
// turns line breaks into <br/> and appends the signature.
func (c *Composer) RenderHTML(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	rendered := strings.ReplaceAll(html.EscapeString(body), "\n", "<br/>")
	rendered = c.policy.Sanitize(rendered)
	if c.cfg.Signature == "" {
		return rendered
	}
	return rendered + "<br/><br/>" + c.cfg.Signature
}

func (c *Composer) attachment(ctx context.Context, name string) ([]byte, string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, "", errors.Wrapf(replyerrors.ErrInvalidAttachment, "%q", name)
	}
	if c.storage == nil {
		return nil, "", errors.Wrapf(replyerrors.ErrAttachmentNotFound, "%q", name)
	}

	data, err := c.storage.ReadFile(ctx, name)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read attachment %q", name)
	}
	return data, contentType(name, data), nil
}

func contentType(name string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	if detected := mimetype.Detect(data); detected != nil {
		return detected.String()
	}
	return "application/octet-stream"
}

func parseAddress(value string) (*mail.Address, error) {
	if parsed, err := mail.ParseAddress(value); err == nil {
		return parsed, nil
	}
	address := utils.ExtractEmailAddress(value)
	if address == "" {
		return nil, errors.Errorf("no address in %q", value)
	}
	return &mail.Address{Address: address}, nil
}
