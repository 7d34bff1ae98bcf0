package interfaces

import (
	"context"

	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/models"
)

type BodyExtractor interface {
	Extract(part *models.Part) string
}

type ExampleRetriever interface {
	TopK(query string) []models.HistoricalExample
}

type ResponseGenerator interface {
	Candidates(ctx context.Context, transcript, subject string) []models.ResponseCandidate
}

// ThreadClassifier returns a nil thread and nil error when the thread should be dropped.
type ThreadClassifier interface {
	Classify(ctx context.Context, threadID, selfAddress string) (*models.Thread, error)
}

type EmailFilterService interface {
	ScanMessage(ctx context.Context, message *models.Message) (enum.EmailClassification, string)
}

type ReplyDraft struct {
	ThreadID    string
	From        string
	To          string
	Subject     string
	Body        string
	InReplyTo   string
	References  string
	Attachments []string
}

type ReplyComposer interface {
	Compose(ctx context.Context, draft ReplyDraft) ([]byte, error)
	Signature() string
}

// ThreadRefresher returns false when a refresh was already running and the call was dropped.
type ThreadRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}
