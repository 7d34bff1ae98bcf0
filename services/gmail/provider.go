package gmail

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/customeros/replydesk/config"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/tracing"
)

const user = "me"

var metadataHeaders = []string{"From", "Reply-To", "Subject", "Message-ID", "References"}

type Provider struct {
	srv         *gmail.Service
	userAddress string
}

// NewProvider authenticates with a long-lived refresh token. The oauth2 token
// source renews access tokens on demand.
func NewProvider(ctx context.Context, cfg *config.GmailConfig) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("gmail client id, secret and refresh token are required")
	}
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	tokenSource := oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewProviderWithClient(ctx, oauth2.NewClient(ctx, tokenSource), cfg.Endpoint, cfg.UserAddress)
}

func NewProviderWithClient(ctx context.Context, httpClient *http.Client, endpoint, userAddress string) (*Provider, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create gmail service")
	}
	return &Provider{srv: srv, userAddress: userAddress}, nil
}

func (p *Provider) Profile(ctx context.Context) (string, error) {
	if p.userAddress != "" {
		return p.userAddress, nil
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailProvider.Profile")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)

	profile, err := p.srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to get gmail profile")
	}
	return profile.EmailAddress, nil
}

func (p *Provider) ListThreads(ctx context.Context, query interfaces.ThreadQuery) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailProvider.ListThreads")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)
	span.LogFields(tracingLog.String("query", query.Query), tracingLog.Int64("maxResults", query.MaxResults))

	call := p.srv.Users.Threads.List(user).Context(ctx)
	if query.Query != "" {
		call = call.Q(query.Query)
	}
	if len(query.LabelIDs) > 0 {
		call = call.LabelIds(query.LabelIDs...)
	}
	if query.MaxResults > 0 {
		call = call.MaxResults(query.MaxResults)
	}

	resp, err := call.Do()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to list gmail threads")
	}
	ids := make([]string, 0, len(resp.Threads))
	for _, t := range resp.Threads {
		ids = append(ids, t.Id)
	}
	span.LogFields(tracingLog.Int("result.count", len(ids)))
	return ids, nil
}

func (p *Provider) GetThread(ctx context.Context, threadID string) (*interfaces.ProviderThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailProvider.GetThread")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)
	tracing.TagThread(span, threadID)

	thread, err := p.srv.Users.Threads.Get(user, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to get gmail thread %s", threadID)
	}

	result := &interfaces.ProviderThread{
		ID:       thread.Id,
		Snippet:  thread.Snippet,
		Messages: make([]interfaces.ProviderMessage, 0, len(thread.Messages)),
	}
	for _, msg := range thread.Messages {
		result.Messages = append(result.Messages, convertMessage(msg))
	}
	return result, nil
}

func (p *Provider) GetMessageMetadata(ctx context.Context, messageID string) (*interfaces.MessageMetadata, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailProvider.GetMessageMetadata")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)
	span.LogFields(tracingLog.String("messageId", messageID))

	msg, err := p.srv.Users.Messages.Get(user, messageID).Format("metadata").MetadataHeaders(metadataHeaders...).Context(ctx).Do()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to get gmail message %s", messageID)
	}

	headers := convertHeaders(msg.Payload)
	return &interfaces.MessageMetadata{
		ID:         msg.Id,
		From:       headers.Get("From"),
		ReplyTo:    headers.Get("Reply-To"),
		Subject:    headers.Get("Subject"),
		MessageID:  headers.Get("Message-Id"),
		References: headers.Get("References"),
	}, nil
}

func (p *Provider) SendMessage(ctx context.Context, raw []byte, threadID string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailProvider.SendMessage")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)
	tracing.TagThread(span, threadID)

	sent, err := p.srv.Users.Messages.Send(user, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to send gmail message")
	}
	span.LogFields(tracingLog.String("result.messageId", sent.Id))
	return sent.Id, nil
}

func (p *Provider) ModifyThreadLabels(ctx context.Context, threadID string, add, remove []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailProvider.ModifyThreadLabels")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)
	tracing.TagThread(span, threadID)

	_, err := p.srv.Users.Threads.Modify(user, threadID, &gmail.ModifyThreadRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to modify labels of thread %s", threadID)
	}
	return nil
}

func convertMessage(msg *gmail.Message) interfaces.ProviderMessage {
	return interfaces.ProviderMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		InternalDate: time.UnixMilli(msg.InternalDate).UTC(),
		Snippet:      msg.Snippet,
		LabelIDs:     msg.LabelIds,
		Headers:      convertHeaders(msg.Payload),
		Payload:      convertPart(msg.Payload),
	}
}

func convertHeaders(part *gmail.MessagePart) textproto.MIMEHeader {
	headers := textproto.MIMEHeader{}
	if part == nil {
		return headers
	}
	for _, h := range part.Headers {
		headers.Add(h.Name, h.Value)
	}
	return headers
}

// convertPart maps the provider's part tree onto models.Part. Body data from
// the provider is always base64url.
func convertPart(part *gmail.MessagePart) *models.Part {
	if part == nil {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(part.MimeType), "multipart/") {
		children := make([]*models.Part, 0, len(part.Parts))
		for _, child := range part.Parts {
			if converted := convertPart(child); converted != nil {
				children = append(children, converted)
			}
		}
		return models.NewMultipart(part.MimeType, children...)
	}

	data := ""
	if part.Body != nil {
		data = part.Body.Data
	}
	leaf := models.NewLeaf(part.MimeType, enum.EncodingBase64URL, data)
	leaf.Filename = part.Filename
	return leaf
}
