package enum

import "strings"

type CandidateCategory string

const (
	CandidateDirectAnswer          CandidateCategory = "direct_answer"
	CandidateAlternativeAnswer     CandidateCategory = "alternative_answer"
	CandidateInfoRequest           CandidateCategory = "info_request"
	CandidatePaidConsultationOffer CandidateCategory = "paid_consultation_offer"
)

func (c CandidateCategory) String() string {
	return string(c)
}

// SimpleCandidateCategories is the display order of the non-consultation categories.
var SimpleCandidateCategories = []CandidateCategory{
	CandidateDirectAnswer,
	CandidateAlternativeAnswer,
	CandidateInfoRequest,
}

var candidateCategoryAliases = map[string]CandidateCategory{
	"direct_answer":           CandidateDirectAnswer,
	"direct":                  CandidateDirectAnswer,
	"직접적인 답변":                 CandidateDirectAnswer,
	"alternative_answer":      CandidateAlternativeAnswer,
	"alternative":             CandidateAlternativeAnswer,
	"대안/추가 정보 제시":             CandidateAlternativeAnswer,
	"info_request":            CandidateInfoRequest,
	"information_request":     CandidateInfoRequest,
	"추가 정보 요청":                CandidateInfoRequest,
	"paid_consultation_offer": CandidatePaidConsultationOffer,
	"paid_consultation":       CandidatePaidConsultationOffer,
	"유료 상담 제안":                CandidatePaidConsultationOffer,
}

// ParseCandidateCategory accepts the canonical codes, hyphenated or spaced spellings and the Korean labels.
func ParseCandidateCategory(s string) (CandidateCategory, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := candidateCategoryAliases[key]; ok {
		return c, true
	}
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	c, ok := candidateCategoryAliases[key]
	return c, ok
}
