package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	messageIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	messageIDRandLen  = 12
)

// GenerateMessageID returns "<micros.random[.threadhash]@domain>". The thread
// hash lets a reply's id be traced back to the thread it answered.
func GenerateMessageID(domain, threadID string) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(strconv.FormatInt(time.Now().UnixMicro(), 10))
	b.WriteByte('.')
	b.WriteString(gonanoid.MustGenerate(messageIDAlphabet, messageIDRandLen))
	if threadID != "" {
		sum := sha256.Sum256([]byte(threadID))
		b.WriteByte('.')
		b.WriteString(hex.EncodeToString(sum[:4]))
	}
	b.WriteByte('@')
	b.WriteString(domain)
	b.WriteByte('>')
	return b.String()
}
