package models

import "github.com/customeros/replydesk/internal/enum"

type ResponseCandidate struct {
	Category enum.CandidateCategory `json:"type"`
	Label    string                 `json:"label"`
	Subject  string                 `json:"subject"`
	Body     string                 `json:"body"`
	Failed   bool                   `json:"failed,omitempty"`
}

type HistoricalExample struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
