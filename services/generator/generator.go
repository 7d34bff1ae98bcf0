package generator

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/i18n"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

const DefaultMaxSimpleCandidates = 3

type Options struct {
	PromptTemplate       string
	ConsultationBody     string
	Persona              string
	ReferenceCodePattern string
	MaxSimpleCandidates  int
}

type Generator struct {
	ai               interfaces.AIProvider
	retriever        interfaces.ExampleRetriever
	translator       *i18n.Translator
	log              logger.Logger
	prompt           *template.Template
	persona          string
	consultationBody string
	referenceCode    *regexp.Regexp
	maxSimple        int
}

type promptData struct {
	Persona              string
	Subject              string
	Grounding            string
	Transcript           string
	Categories           []string
	ConsultationCategory string
	ReplyPrefix          string
}

// NewGenerator parses the prompt template up front. A nil ai disables generation.
func NewGenerator(ai interfaces.AIProvider, retriever interfaces.ExampleRetriever, translator *i18n.Translator, log logger.Logger, opts Options) (*Generator, error) {
	prompt, err := template.New("prompt").Option("missingkey=error").Parse(opts.PromptTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse prompt template")
	}

	var referenceCode *regexp.Regexp
	if opts.ReferenceCodePattern != "" {
		referenceCode, err = regexp.Compile(opts.ReferenceCodePattern)
		if err != nil {
			return nil, errors.Wrap(err, "invalid reference code pattern")
		}
	}

	maxSimple := opts.MaxSimpleCandidates
	if maxSimple <= 0 || maxSimple > len(enum.SimpleCandidateCategories) {
		maxSimple = DefaultMaxSimpleCandidates
	}

	return &Generator{
		ai:               ai,
		retriever:        retriever,
		translator:       translator,
		log:              log,
		prompt:           prompt,
		persona:          opts.Persona,
		consultationBody: strings.TrimSpace(opts.ConsultationBody),
		referenceCode:    referenceCode,
		maxSimple:        maxSimple,
	}, nil
}

// Candidates never fails: a generation error becomes a single placeholder candidate.
func (g *Generator) Candidates(ctx context.Context, transcript, subject string) []models.ResponseCandidate {
	candidates, err := g.Generate(ctx, transcript, subject)
	if err == nil {
		return candidates
	}

	g.log.Warnf("Response generation failed: %v", err)
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.Stage == StageParse {
		return []models.ResponseCandidate{g.failurePlaceholder(i18n.MsgGenerationParseFailedSubject, i18n.MsgGenerationParseFailedBody)}
	}
	return []models.ResponseCandidate{g.failurePlaceholder(i18n.MsgGenerationProviderFailedSubject, i18n.MsgGenerationProviderFailedBody)}
}

// Generate returns 0, 1 or a full set of candidates, or a *GenerationError.
func (g *Generator) Generate(ctx context.Context, transcript, subject string) ([]models.ResponseCandidate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Generator.Generate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if g.ai == nil || strings.TrimSpace(transcript) == "" {
		span.LogFields(tracingLog.Bool("skipped", true))
		return []models.ResponseCandidate{}, nil
	}

	prompt, err := g.BuildPrompt(transcript, subject)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, &GenerationError{Stage: StageProvider, Err: err}
	}

	output, err := g.ai.Generate(ctx, prompt)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, &GenerationError{Stage: StageProvider, Err: err}
	}

	raw, err := decodeCandidates(output)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, &GenerationError{Stage: StageParse, Err: err}
	}

	if len(raw) == 0 {
		span.LogFields(tracingLog.Int("candidates", 0))
		return []models.ResponseCandidate{}, nil
	}

	candidates := g.normalize(raw, subject)
	if err := g.checkCount(raw, candidates); err != nil {
		tracing.TraceErr(span, err)
		return nil, &GenerationError{Stage: StageParse, Err: err}
	}
	span.LogFields(tracingLog.Int("candidates", len(candidates)))
	return candidates, nil
}

func (g *Generator) BuildPrompt(transcript, subject string) (string, error) {
	categories := make([]string, 0, len(enum.SimpleCandidateCategories))
	for _, c := range enum.SimpleCandidateCategories {
		categories = append(categories, c.String())
	}

	data := promptData{
		Persona:              g.persona,
		Subject:              subject,
		Grounding:            g.grounding(transcript),
		Transcript:           transcript,
		Categories:           categories,
		ConsultationCategory: enum.CandidatePaidConsultationOffer.String(),
		ReplyPrefix:          g.translator.ReplyPrefix(),
	}

	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to render prompt")
	}
	return buf.String(), nil
}

func (g *Generator) grounding(transcript string) string {
	var examples []models.HistoricalExample
	if g.retriever != nil {
		examples = g.retriever.TopK(transcript)
	}
	if len(examples) == 0 {
		return g.translator.T(i18n.MsgGroundingNone)
	}

	blocks := make([]string, 0, len(examples))
	for _, example := range examples {
		blocks = append(blocks, fmt.Sprintf("Q: %q\nA: %q", g.stripReferenceCodes(example.Question), g.stripReferenceCodes(example.Answer)))
	}
	return g.translator.T(i18n.MsgGroundingHeader) + "\n" + strings.Join(blocks, "\n---\n")
}

func (g *Generator) normalize(raw []rawCandidate, originalSubject string) []models.ResponseCandidate {
	byCategory := make(map[enum.CandidateCategory]rawCandidate)
	for _, r := range raw {
		category, ok := enum.ParseCandidateCategory(r.category())
		if !ok || strings.TrimSpace(r.Body) == "" {
			continue
		}
		if _, seen := byCategory[category]; seen {
			continue
		}
		byCategory[category] = r
	}

	if consultation, ok := byCategory[enum.CandidatePaidConsultationOffer]; ok {
		body := g.consultationBody
		if body == "" {
			body = consultation.Body
		}
		return []models.ResponseCandidate{g.candidate(enum.CandidatePaidConsultationOffer, consultation.Subject, body, originalSubject)}
	}

	candidates := make([]models.ResponseCandidate, 0, g.maxSimple)
	for _, category := range enum.SimpleCandidateCategories {
		r, ok := byCategory[category]
		if !ok {
			continue
		}
		candidates = append(candidates, g.candidate(category, r.Subject, r.Body, originalSubject))
		if len(candidates) == g.maxSimple {
			break
		}
	}
	return candidates
}

// checkCount rejects partial sets: a multi-entry answer must yield a consultation offer or one candidate per simple category.
func (g *Generator) checkCount(raw []rawCandidate, candidates []models.ResponseCandidate) error {
	switch {
	case len(candidates) == 0:
		return errors.New("model output contained no usable candidates")
	case candidates[0].Category == enum.CandidatePaidConsultationOffer:
		return nil
	case len(raw) > 1 && len(candidates) < g.maxSimple:
		return errors.Errorf("model output has %d usable candidates, want %d", len(candidates), g.maxSimple)
	}
	return nil
}

func (g *Generator) candidate(category enum.CandidateCategory, subject, body, originalSubject string) models.ResponseCandidate {
	subject = collapseSpaces(g.stripReferenceCodes(subject))
	if utils.NormalizeEmailSubject(subject) == "" {
		subject = collapseSpaces(g.stripReferenceCodes(originalSubject))
	}
	return models.ResponseCandidate{
		Category: category,
		Label:    g.translator.CategoryLabel(category),
		Subject:  utils.EnsureReplyPrefix(subject, g.translator.ReplyPrefix()),
		Body:     strings.TrimSpace(strings.ReplaceAll(g.stripReferenceCodes(body), "\r\n", "\n")),
	}
}

func (g *Generator) failurePlaceholder(subjectID, bodyID string) models.ResponseCandidate {
	return models.ResponseCandidate{
		Subject: g.translator.T(subjectID),
		Body:    g.translator.T(bodyID),
		Failed:  true,
	}
}

func (g *Generator) stripReferenceCodes(s string) string {
	if g.referenceCode == nil {
		return s
	}
	return g.referenceCode.ReplaceAllString(s, "")
}

var spacesRegex = regexp.MustCompile(`[ \t]+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spacesRegex.ReplaceAllString(s, " "))
}
