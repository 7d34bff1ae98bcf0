package retriever

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/resources"
)

const DefaultTopK = 2

type scoredExample struct {
	example models.HistoricalExample
	tokens  map[string]struct{}
}

// Retriever ranks a fixed corpus by token overlap with a query. It is read-only after construction.
type Retriever struct {
	corpus []scoredExample
	k      int
}

func NewRetriever(corpus []models.HistoricalExample, k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	indexed := make([]scoredExample, 0, len(corpus))
	for _, example := range corpus {
		indexed = append(indexed, scoredExample{example: example, tokens: tokenize(example.Question)})
	}
	return &Retriever{corpus: indexed, k: k}
}

func (r *Retriever) Size() int {
	return len(r.corpus)
}

// TopK returns at most k examples sharing at least one token with query, best first.
// Ties keep corpus order.
func (r *Retriever) TopK(query string) []models.HistoricalExample {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(r.corpus) == 0 {
		return []models.HistoricalExample{}
	}

	type ranked struct {
		example models.HistoricalExample
		score   int
	}
	scored := make([]ranked, 0, len(r.corpus))
	for _, entry := range r.corpus {
		score := overlap(queryTokens, entry.tokens)
		if score == 0 {
			continue
		}
		scored = append(scored, ranked{example: entry.example, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > r.k {
		scored = scored[:r.k]
	}
	result := make([]models.HistoricalExample, 0, len(scored))
	for _, s := range scored {
		result = append(result, s.example)
	}
	return result
}

func tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for token := range a {
		if _, ok := b[token]; ok {
			count++
		}
	}
	return count
}

// LoadCorpus reads a JSON array of {question, answer}; an empty path loads the embedded samples.
func LoadCorpus(path string) ([]models.HistoricalExample, error) {
	content, err := resources.Load(path, resources.EmailSamples)
	if err != nil {
		return nil, err
	}
	var corpus []models.HistoricalExample
	if err := json.Unmarshal(content, &corpus); err != nil {
		return nil, errors.Wrap(err, "failed to parse historical examples")
	}
	return corpus, nil
}
