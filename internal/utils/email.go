package utils

import (
	"net/mail"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
)

func ExtractDomainFromEmail(email string) string {
	address := ExtractEmailAddress(email)
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// ExtractEmailAddress returns the bare, lowercased address of a From-style header value
// ("Name <user@host>"). Unparseable input falls back to the angle-bracket content or the raw value.
func ExtractEmailAddress(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	address := header
	if parsed, err := mail.ParseAddress(header); err == nil {
		address = parsed.Address
	} else if strings.Contains(header, "<") && strings.Contains(header, ">") {
		startIdx := strings.LastIndex(header, "<") + 1
		endIdx := strings.LastIndex(header, ">")
		if startIdx > 0 && endIdx > startIdx {
			address = header[startIdx:endIdx]
		}
	}

	validation := mailvalidate.ValidateEmailSyntax(address)
	if validation.IsValid && validation.CleanEmail != "" {
		return strings.ToLower(validation.CleanEmail)
	}
	return strings.ToLower(strings.TrimSpace(address))
}

// SameEmailAddress compares two header values by their bare address, case-insensitively.
func SameEmailAddress(a, b string) bool {
	left, right := ExtractEmailAddress(a), ExtractEmailAddress(b)
	return left != "" && left == right
}
