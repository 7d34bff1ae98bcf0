package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/customeros/replydesk/config"
	"github.com/customeros/replydesk/dto"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/tracing"
)

const responseMimeTypeJSON = "application/json"

type geminiService struct {
	cfg     *config.GeminiConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewGeminiService(cfg *config.GeminiConfig) interfaces.AIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &geminiService{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Generate asks the model for JSON output and returns the first candidate's text.
func (s *geminiService) Generate(ctx context.Context, prompt string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "geminiService.Generate")
	defer span.Finish()
	tracing.SetDefaultProviderSpanTags(ctx, span)
	span.LogFields(tracingLog.String("model", s.cfg.Model), tracingLog.Int("prompt.length", len(prompt)))

	if err := s.limiter.Wait(ctx); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "rate limiter")
	}

	payload, err := json.Marshal(dto.GeminiRequest{
		Contents:         []dto.GeminiContent{{Role: "user", Parts: []dto.GeminiPart{{Text: prompt}}}},
		GenerationConfig: &dto.GeminiGenerationConfig{ResponseMimeType: responseMimeTypeJSON},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to marshal payload")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(s.cfg.Url, "/"), url.PathEscape(s.cfg.Model), url.QueryEscape(s.cfg.ApiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = errors.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return "", err
	}

	var response dto.GeminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	text := firstText(response)
	if text == "" {
		err = errors.New("model returned no text")
		if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
			err = errors.Errorf("prompt blocked: %s", response.PromptFeedback.BlockReason)
		}
		tracing.TraceErr(span, err)
		return "", err
	}
	span.LogFields(tracingLog.Int("response.length", len(text)))
	return text, nil
}

func firstText(response dto.GeminiResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}
