package generator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type rawCandidate struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

func (r rawCandidate) category() string {
	if r.Type != "" {
		return r.Type
	}
	return r.Category
}

var (
	codeFenceRegex   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	jsonArrayRegex   = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRegex  = regexp.MustCompile(`(?s)\{.*\}`)
	errNoJSONPayload = errors.New("no json payload in model output")
)

// decodeCandidates accepts an array, a single object, fenced json or json embedded in prose.
func decodeCandidates(text string) ([]rawCandidate, error) {
	text = strings.TrimSpace(text)
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if text == "" {
		return nil, errNoJSONPayload
	}

	if candidates, err := unmarshalCandidates(text); err == nil {
		return candidates, nil
	}

	for _, re := range []*regexp.Regexp{jsonArrayRegex, jsonObjectRegex} {
		fragment := re.FindString(text)
		if fragment == "" {
			continue
		}
		if candidates, err := unmarshalCandidates(fragment); err == nil {
			return candidates, nil
		}
	}
	return nil, errNoJSONPayload
}

func unmarshalCandidates(text string) ([]rawCandidate, error) {
	var list []rawCandidate
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, nil
	}
	var single rawCandidate
	if err := json.Unmarshal([]byte(text), &single); err != nil {
		return nil, err
	}
	return []rawCandidate{single}, nil
}
