package interfaces

import (
	"context"
	"net/textproto"
	"time"

	"github.com/customeros/replydesk/internal/models"
)

type ThreadQuery struct {
	Query      string
	LabelIDs   []string
	MaxResults int64
}

// ProviderMessage is a message as the mail provider returns it, before body extraction.
type ProviderMessage struct {
	ID           string
	ThreadID     string
	InternalDate time.Time
	Snippet      string
	LabelIDs     []string
	Headers      textproto.MIMEHeader
	Payload      *models.Part
}

type ProviderThread struct {
	ID       string
	Snippet  string
	Messages []ProviderMessage
}

type MessageMetadata struct {
	ID         string
	From       string
	ReplyTo    string
	Subject    string
	MessageID  string
	References string
}

type MailProvider interface {
	Profile(ctx context.Context) (string, error)
	ListThreads(ctx context.Context, query ThreadQuery) ([]string, error)
	GetThread(ctx context.Context, threadID string) (*ProviderThread, error)
	GetMessageMetadata(ctx context.Context, messageID string) (*MessageMetadata, error)
	SendMessage(ctx context.Context, raw []byte, threadID string) (string, error)
	ModifyThreadLabels(ctx context.Context, threadID string, add, remove []string) error
}
