package extractor

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"

	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/models"
)

var DefaultQuoteMarkers = []string{
	">",
	"On ",
	"wrote:",
	"-----Original Message-----",
	"----- Original Message -----",
	"From:",
	"Sent:",
	"To:",
	"Subject:",
	"님이 작성:",
}

// line suffixes that mark a localized "X wrote:" header
var wroteSuffixes = []string{"wrote:", "님이 작성:", "a écrit :", "schrieb:", "escribió:"}

// quoted history containers removed before html rendering
var htmlQuoteSelectors = strings.Join([]string{
	"script",
	"style",
	"head",
	"blockquote",
	".gmail_quote",
	".gmail_attr",
	"#appendonsend",
	"#divRplyFwdMsg",
	".yahoo_quoted",
	"div[type=cite]",
}, ", ")

const signatureDelimiter = "-- "

var blankLinesRegex = regexp.MustCompile(`\n\s*\n+`)

type Extractor struct {
	quoteMarkers []string
}

func NewExtractor(quoteMarkers []string) *Extractor {
	if len(quoteMarkers) == 0 {
		quoteMarkers = DefaultQuoteMarkers
	}
	return &Extractor{quoteMarkers: quoteMarkers}
}

// Extract returns the human-authored text of a message. It never fails: undecodable
// payloads yield an empty string.
func (e *Extractor) Extract(part *models.Part) string {
	if part == nil {
		return ""
	}

	leaf := findTextLeaf(part)
	if leaf == nil {
		if !part.IsLeaf() {
			return ""
		}
		leaf = part
	}

	raw, ok := decode(leaf)
	if !ok {
		return ""
	}

	text := raw
	if isHTML(leaf) {
		text = htmlToText(raw)
	}
	return e.clean(text)
}

func findTextLeaf(part *models.Part) *models.Part {
	if part == nil {
		return nil
	}
	if part.IsLeaf() {
		if part.IsAttachment() {
			return nil
		}
		if isHTML(part) || isPlain(part) {
			return part
		}
		return nil
	}

	if part.MediaType == "multipart/alternative" {
		var plain *models.Part
		for _, child := range part.Children {
			found := findTextLeaf(child)
			if found == nil {
				continue
			}
			if isHTML(found) {
				return found
			}
			if plain == nil {
				plain = found
			}
		}
		return plain
	}

	for _, child := range part.Children {
		if found := findTextLeaf(child); found != nil {
			return found
		}
	}
	return nil
}

func isHTML(part *models.Part) bool {
	return strings.HasPrefix(part.MediaType, "text/html")
}

func isPlain(part *models.Part) bool {
	return strings.HasPrefix(part.MediaType, "text/plain")
}

func decode(part *models.Part) (string, bool) {
	var decoded []byte
	var err error

	switch part.Encoding {
	case enum.EncodingIdentity, "":
		decoded = []byte(part.Data)
	case enum.EncodingBase64URL:
		data := strings.TrimRight(stripWhitespace(part.Data), "=")
		decoded, err = base64.RawURLEncoding.DecodeString(data)
	case enum.EncodingBase64:
		data := strings.TrimRight(stripWhitespace(part.Data), "=")
		decoded, err = base64.RawStdEncoding.DecodeString(data)
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	return strings.ToValidUTF8(string(decoded), ""), true
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find(htmlQuoteSelectors).Remove()

	body, err := doc.Html()
	if err != nil {
		return doc.Text()
	}

	text, err := html2text.FromString(body, html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		return doc.Text()
	}
	return text
}

func (e *Extractor) clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == signatureDelimiter {
			break
		}
		trimmed := strings.TrimSpace(line)
		if e.isQuoteLine(trimmed) || isAttribution(trimmed, lines[i+1:]) {
			continue
		}
		kept = append(kept, line)
	}

	joined := strings.Join(kept, "\n")
	joined = blankLinesRegex.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}

func (e *Extractor) isQuoteLine(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	for _, marker := range e.quoteMarkers {
		if marker != "" && strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	for _, suffix := range wroteSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}

// maxAttributionWords keeps sentences like "My two questions are:" out of isAttribution.
const maxAttributionWords = 2

// isAttribution matches a short header line such as "Quoted:" that introduces a ">" block.
func isAttribution(trimmed string, rest []string) bool {
	if !strings.HasSuffix(trimmed, ":") || len(strings.Fields(trimmed)) > maxAttributionWords {
		return false
	}
	for _, next := range rest {
		next = strings.TrimSpace(next)
		if next == "" {
			continue
		}
		return strings.HasPrefix(next, ">")
	}
	return false
}
