package utils

import (
	"regexp"
	"strings"
)

var subjectPrefixRegex = regexp.MustCompile(`(?i)^(Re|Fwd|Fw)(\[\d+\])?:\s*`)

// NormalizeEmailSubject removes prefixes like Re:, Fwd:, etc. from a subject
func NormalizeEmailSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	for subjectPrefixRegex.MatchString(subject) {
		subject = subjectPrefixRegex.ReplaceAllString(subject, "")
		subject = strings.TrimSpace(subject)
	}
	return subject
}

// EnsureReplyPrefix returns subject starting with exactly one reply prefix.
func EnsureReplyPrefix(subject, prefix string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(subject, prefix) {
		return subject
	}
	return prefix + NormalizeEmailSubject(subject)
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// WrapMessageID is the inverse of NormalizeMessageID.
func WrapMessageID(messageID string) string {
	messageID = NormalizeMessageID(messageID)
	if messageID == "" {
		return ""
	}
	return "<" + messageID + ">"
}
