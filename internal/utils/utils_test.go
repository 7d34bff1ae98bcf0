package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmailAddress(t *testing.T) {
	assert.Equal(t, "help@example.com", ExtractEmailAddress("Support Desk <Help@Example.com>"))
	assert.Equal(t, "help@example.com", ExtractEmailAddress("help@example.com"))
	assert.Equal(t, "", ExtractEmailAddress("   "))
}

func TestSameEmailAddress(t *testing.T) {
	assert.True(t, SameEmailAddress(`"Tax Office" <desk@taxoffice.kr>`, "DESK@taxoffice.kr"))
	assert.False(t, SameEmailAddress("client@example.com", "desk@taxoffice.kr"))
	assert.False(t, SameEmailAddress("", ""))
}

func TestExtractDomainFromEmail(t *testing.T) {
	assert.Equal(t, "taxoffice.kr", ExtractDomainFromEmail("Desk <desk@TaxOffice.kr>"))
	assert.Equal(t, "", ExtractDomainFromEmail("not-an-address"))
}

func TestEnsureReplyPrefix(t *testing.T) {
	assert.Equal(t, "Re: VAT question", EnsureReplyPrefix("VAT question", "Re: "))
	assert.Equal(t, "Re: VAT question", EnsureReplyPrefix("Re: VAT question", "Re: "))
	assert.Equal(t, "Re: VAT question", EnsureReplyPrefix("RE: Fwd: VAT question", "Re: "))
}

func TestMessageIDHelpers(t *testing.T) {
	assert.Equal(t, "abc@host", NormalizeMessageID(" <abc@host> "))
	assert.Equal(t, "<abc@host>", WrapMessageID("abc@host"))
	assert.Equal(t, "", WrapMessageID("  "))

	id := GenerateMessageID("taxoffice.kr", "thread-1")
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@taxoffice.kr>"))
	assert.Regexp(t, `^<\d+\.[a-z0-9]{12}\.[0-9a-f]{8}@taxoffice\.kr>$`, id)
	assert.Regexp(t, `^<\d+\.[a-z0-9]{12}@taxoffice\.kr>$`, GenerateMessageID("taxoffice.kr", ""))

	hash := func(id string) string { return strings.Split(strings.SplitN(id, "@", 2)[0], ".")[2] }
	assert.Equal(t, hash(id), hash(GenerateMessageID("other.kr", "thread-1")))
	assert.NotEqual(t, id, GenerateMessageID("taxoffice.kr", "thread-1"))
}

func TestUniqueStringsAndContainsAnyFold(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, UniqueStrings([]string{"b", "a", "b"}))
	assert.True(t, ContainsAnyFold("MAILER-DAEMON@host", []string{"mailer-daemon"}))
	assert.False(t, ContainsAnyFold("client@example.com", []string{"", "noreply"}))
}

func TestCustomContext(t *testing.T) {
	ctx := SetAppSourceInContext(context.Background(), "cron")
	assert.Equal(t, "cron", GetAppSourceFromContext(ctx))
	assert.Equal(t, "", GetRequestIdFromContext(ctx))
}
