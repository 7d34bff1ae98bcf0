package models

import (
	"net/textproto"
	"time"

	"github.com/customeros/replydesk/internal/enum"
)

type Message struct {
	ID              string                   `json:"id"`
	MessageIDHeader string                   `json:"messageIdHeader,omitempty"`
	From            string                   `json:"from"`
	FromAddress     string                   `json:"fromAddress,omitempty"`
	Subject         string                   `json:"subject,omitempty"`
	IsFromSelf      bool                     `json:"isFromMe"`
	Body            string                   `json:"body"`
	Date            time.Time                `json:"date"`
	Classification  enum.EmailClassification `json:"classification,omitempty"`
	Headers         textproto.MIMEHeader     `json:"-"`
}

// Thread is a cached conversation. Replied holds iff some message IsFromSelf,
// and Messages are ordered oldest first.
type Thread struct {
	ThreadID     string              `json:"threadId"`
	From         string              `json:"from"`
	Participants []string            `json:"participants,omitempty"`
	Subject      string              `json:"subject"`
	Snippet      string              `json:"snippet"`
	Messages     []Message           `json:"messages"`
	Replied      bool                `json:"replied"`
	Candidates   []ResponseCandidate `json:"aiResponses"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

func (t *Thread) LastMessage() *Message {
	if t == nil || len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// HasUsableCandidates is false for an empty list or a generation-failure placeholder.
func (t *Thread) HasUsableCandidates() bool {
	if t == nil || len(t.Candidates) == 0 {
		return false
	}
	for _, c := range t.Candidates {
		if c.Failed {
			return false
		}
	}
	return true
}

// Clone copies the slices so callers can't mutate cached state.
func (t Thread) Clone() Thread {
	clone := t
	clone.Participants = append([]string(nil), t.Participants...)
	clone.Messages = append([]Message(nil), t.Messages...)
	clone.Candidates = append([]ResponseCandidate(nil), t.Candidates...)
	return clone
}

type Snapshot struct {
	Unreplied []Thread `json:"unreplied"`
	Replied   []Thread `json:"replied"`
}
