package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultOpenAIURL       = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAITimeout   = 60 * time.Second
	defaultOpenAIRetries   = 5
	defaultBackoffBase     = 500 * time.Millisecond
	defaultBackoffMax      = 8 * time.Second
	defaultMaxReviewChars  = 1200
	defaultMaxOutputTokens = 4096
)

const annotateSystemPrompt = `You analyse customer reviews of restaurants and hospitality venues.
For every review in the input return exactly one entry in "analyses" with the same review_id.

Fields:
- language: ISO 639-1 code of the review text.
- sentiment: overall sentiment (positive, neutral, negative).
- overall_score: 0 (very critical) to 1 (enthusiastic).
- overall_sentiment_confidence: 0 to 1.
- gap_to_five: true when the review is positive or rated 4 stars or more but names concrete improvements.
- gap_reasons: at most 3 concrete improvements mentioned.
- critical_flags: serious issues only (hygiene, food_poisoning, aggressive_treatment, fraud, safety, recurring_complaint).
- executive_summary: at most 260 characters.
- action_items: 1 to 3 concrete recommended actions.
- staff_mentions: staff members mentioned by name, with role if stated (else ""), sentiment in that context and a quote of at most 25 words.
- aspects: one entry per aspect/sub_aspect pair. Merge repeated mentions of the same sub_aspect into a single entry and list every quote (at most 20 words each) in evidence_spans. severity 1 to 3, gap_to_five_contrib 0 to 1.

Prefer general, consolidated sub_aspects in snake_case (service: staff, speed, professionalism; food: taste, temperature, freshness, presentation, quality, portions; ambience: noise, lighting, decor, cleanliness, space; price: value). Use "general" when nothing fits.`

var sentimentEnum = []string{"positive", "neutral", "negative"}

func annotateResponseFormat() map[string]interface{} {
	str := map[string]interface{}{"type": "string"}
	strArray := map[string]interface{}{"type": "array", "items": str}
	sentiment := map[string]interface{}{"type": "string", "enum": sentimentEnum}
	unit := map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1}

	aspect := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"aspect":              str,
			"sub_aspect":          str,
			"sentiment":           sentiment,
			"evidence_spans":      strArray,
			"severity":            map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 3},
			"gap_to_five_contrib": unit,
		},
		"required": []string{"aspect", "sub_aspect", "sentiment", "evidence_spans", "severity", "gap_to_five_contrib"},
	}
	staff := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"detected_name": str,
			"role":          str,
			"sentiment":     sentiment,
			"evidence_span": str,
		},
		"required": []string{"detected_name", "role", "sentiment", "evidence_span"},
	}
	item := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"review_id":                    str,
			"language":                     str,
			"sentiment":                    sentiment,
			"overall_score":                unit,
			"overall_sentiment_confidence": unit,
			"gap_to_five":                  map[string]interface{}{"type": "boolean"},
			"gap_reasons":                  strArray,
			"critical_flags":               strArray,
			"executive_summary":            str,
			"action_items":                 strArray,
			"staff_mentions":               map[string]interface{}{"type": "array", "items": staff},
			"aspects":                      map[string]interface{}{"type": "array", "items": aspect},
		},
		"required": []string{
			"review_id", "language", "sentiment", "overall_score", "overall_sentiment_confidence",
			"gap_to_five", "gap_reasons", "critical_flags", "executive_summary", "action_items",
			"staff_mentions", "aspects",
		},
	}
	return map[string]interface{}{
		"type": "json_schema",
		"json_schema": map[string]interface{}{
			"name":   "ReviewsBatchAnalysis",
			"strict": true,
			"schema": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]interface{}{
					"analyses": map[string]interface{}{"type": "array", "items": item},
				},
				"required": []string{"analyses"},
			},
		},
	}
}

// NewAnnotator returns the OpenAI annotator, or the keyword scorer when the
// source runs on fixtures.
func NewAnnotator(src *conf.Source, c *conf.OpenAI, logger log.Logger) (biz.Annotator, error) {
	if src != nil && src.Mode == "fixture" {
		return newFixtureAnnotator(logger), nil
	}
	if c == nil || c.ApiKey == "" {
		return nil, fmt.Errorf("openai.api_key is required when source.mode is live")
	}
	return newOpenAIAnnotator(c, logger), nil
}

type openaiAnnotator struct {
	client          *http.Client
	baseURL         string
	apiKey          string
	model           string
	maxRetries      int
	backoffBase     time.Duration
	backoffMax      time.Duration
	maxReviewChars  int
	maxOutputTokens int
	log             *log.Helper

	sleep func(ctx context.Context, d time.Duration) error
}

func newOpenAIAnnotator(c *conf.OpenAI, logger log.Logger) *openaiAnnotator {
	a := &openaiAnnotator{
		client:          &http.Client{Timeout: defaultOpenAITimeout},
		baseURL:         strings.TrimRight(c.BaseUrl, "/"),
		apiKey:          c.ApiKey,
		model:           c.Model,
		maxRetries:      int(c.MaxRetries),
		backoffBase:     c.BackoffBase.AsDuration(),
		backoffMax:      c.BackoffMax.AsDuration(),
		maxReviewChars:  int(c.MaxReviewChars),
		maxOutputTokens: int(c.MaxOutputTokens),
		log:             log.NewHelper(logger),
		sleep:           sleepCtx,
	}
	if d := c.Timeout.AsDuration(); d > 0 {
		a.client.Timeout = d
	}
	if a.baseURL == "" {
		a.baseURL = defaultOpenAIURL
	}
	if a.model == "" {
		a.model = defaultOpenAIModel
	}
	if a.maxRetries <= 0 {
		a.maxRetries = defaultOpenAIRetries
	}
	if a.backoffBase <= 0 {
		a.backoffBase = defaultBackoffBase
	}
	if a.backoffMax <= 0 {
		a.backoffMax = defaultBackoffMax
	}
	if a.maxReviewChars <= 0 {
		a.maxReviewChars = defaultMaxReviewChars
	}
	if a.maxOutputTokens <= 0 {
		a.maxOutputTokens = defaultMaxOutputTokens
	}
	return a
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Temperature    float64                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens"`
	ResponseFormat map[string]interface{} `json:"response_format"`
	Messages       []chatMessage          `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// Wire shapes tolerate fractional severities from the model.
type wireAspect struct {
	biz.Aspect
	Severity float64 `json:"severity"`
}

type wireAnalysis struct {
	ReviewID string `json:"review_id"`
	biz.Analysis
	Aspects []wireAspect `json:"aspects"`
}

func (a *openaiAnnotator) Annotate(ctx context.Context, items []biz.AnnotationInput) (map[string]*biz.Analysis, error) {
	if len(items) == 0 {
		return map[string]*biz.Analysis{}, nil
	}

	type userItem struct {
		ReviewID string `json:"review_id"`
		Text     string `json:"text"`
	}
	payload := struct {
		Analyses []userItem `json:"analyses"`
	}{}
	for _, it := range items {
		payload.Analyses = append(payload.Analyses, userItem{ReviewID: it.ReviewID, Text: a.prepareText(it.Text)})
	}
	userJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	body, err := json.Marshal(&chatRequest{
		Model:          a.model,
		MaxTokens:      a.maxOutputTokens,
		ResponseFormat: annotateResponseFormat(),
		Messages: []chatMessage{
			{Role: "system", Content: annotateSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Analyse all %d reviews below and return one analysis per review in 'analyses':\n\n%s", len(items), userJSON)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	raw, err := a.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		if len(resp.Choices) > 0 && resp.Choices[0].Message.Refusal != "" {
			return nil, fmt.Errorf("model refused batch: %s", resp.Choices[0].Message.Refusal)
		}
		return nil, fmt.Errorf("completion has no content")
	}

	var parsed struct {
		Analyses []wireAnalysis `json:"analyses"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode analyses: %w", err)
	}

	out := make(map[string]*biz.Analysis, len(parsed.Analyses))
	for _, w := range parsed.Analyses {
		if w.ReviewID == "" {
			continue
		}
		analysis := w.Analysis
		analysis.Aspects = make([]biz.Aspect, 0, len(w.Aspects))
		for _, wa := range w.Aspects {
			asp := wa.Aspect
			asp.Severity = int(math.Round(wa.Severity))
			analysis.Aspects = append(analysis.Aspects, asp)
		}
		out[w.ReviewID] = &analysis
	}
	a.log.Infof("annotated %d/%d reviews with %s", len(out), len(items), a.model)
	return out, nil
}

// post sends the completion request, retrying rate limits, server errors
// and network failures with exponential backoff.
func (a *openaiAnnotator) post(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		req.Header.Set("Content-Type", "application/json")

		var retryAfter string
		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			raw, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("failed to read response: %w", readErr)
			case resp.StatusCode == http.StatusOK:
				return raw, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				retryAfter = resp.Header.Get("Retry-After")
				lastErr = fmt.Errorf("openai status %d: %s", resp.StatusCode, truncateRunes(string(raw), 200))
			default:
				return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, truncateRunes(string(raw), 500))
			}
		}

		if attempt == a.maxRetries {
			break
		}
		wait := a.backoff(attempt, retryAfter)
		a.log.Warnf("openai request retrying (attempt %d/%d, sleep %s): %v", attempt+1, a.maxRetries, wait, lastErr)
		if err := a.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("openai request failed after %d attempts: %w", a.maxRetries+1, lastErr)
}

// backoff honours Retry-After seconds, otherwise doubles from the base with
// a little jitter. Both are capped at backoffMax.
func (a *openaiAnnotator) backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.ParseFloat(strings.TrimSpace(retryAfter), 64); err == nil && secs >= 0 {
		return minDuration(time.Duration(secs*float64(time.Second)), a.backoffMax)
	}
	exp := a.backoffBase * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
	return minDuration(exp+jitter, a.backoffMax)
}

// prepareText flattens whitespace, drops control characters and truncates.
func (a *openaiAnnotator) prepareText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
	cleaned = strings.TrimSpace(cleaned)
	if len([]rune(cleaned)) <= a.maxReviewChars {
		return cleaned
	}
	return truncateRunes(cleaned, a.maxReviewChars) + "..."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
