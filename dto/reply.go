package dto

import (
	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/models"
)

// SendReplyRequest carries the candidate the operator picked, possibly edited.
type SendReplyRequest struct {
	ThreadID    string        `json:"threadId"`
	Response    ReplyResponse `json:"response"`
	Attachments []string      `json:"attachments"`
}

type ReplyResponse struct {
	Subject  string                 `json:"subject"`
	Body     string                 `json:"body"`
	Category enum.CandidateCategory `json:"type"`
}

type SendReplyResult struct {
	Success       bool           `json:"success"`
	UpdatedThread *models.Thread `json:"updatedThread"`
}

type RefreshAccepted struct {
	Status string `json:"status"`
}

type SignatureResponse struct {
	Signature string `json:"signature"`
}

type AttachmentList struct {
	Files []string `json:"files"`
}

type AttachmentUploaded struct {
	Filename string `json:"filename"`
}
