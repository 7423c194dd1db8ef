package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steemit/sdgforum/pkg/config"
	"github.com/steemit/sdgforum/pkg/logging"
	"github.com/steemit/sdgforum/pkg/telemetry"
)

const systemPrompt = `You are a reviewer specialising in the UN Sustainable Development Goals (SDGs).
Evaluate whether the provided thread content matches the declared SDG categories.
Return a JSON object with:
- match_percentage: number between 0 and 100 (no percent sign)
- reasoning: short explanation (max 50 words)
Be strict but fair; consider title, body, tags, and image description if present. Make sure to ONLY output valid JSON.`

var responseSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "match_percentage": {"type": "number"},
    "reasoning": {"type": "string"}
  },
  "required": ["match_percentage"]
}`)

// chatCompleter is the slice of the OpenAI client the scorer uses
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIScorer scores threads with an OpenAI chat completion
type OpenAIScorer struct {
	client  chatCompleter
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	media   *MediaResolver
	logger  *zap.Logger
}

// NewOpenAIScorer creates a scorer from configuration
func NewOpenAIScorer(cfg *config.ReviewConfig) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai_api_key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}

	scorer := &OpenAIScorer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		media:   NewMediaResolver(cfg.MediaRoot),
		logger:  logging.GetLogger().With(zap.String("component", "relevance-scorer")),
	}

	scorer.logger.Info("Relevance scorer initialized", zap.String("model", cfg.Model))

	return scorer, nil
}

// Score implements Scorer
func (s *OpenAIScorer) Score(ctx context.Context, req Request) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "review.score")
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	outcome := s.score(ctx, req)

	result := "scored"
	if u, ok := outcome.(Unavailable); ok {
		result = "unavailable"
		span.SetAttributes(attribute.String("review.unavailable_reason", u.Reason))
		s.logger.Warn("Relevance scorer unavailable", zap.String("reason", u.Reason))
	} else if scored, ok := outcome.(Scored); ok {
		span.SetAttributes(attribute.Int("review.score", scored.Score))
	}
	telemetry.Metrics().ScorerCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	return outcome
}

func (s *OpenAIScorer) score(ctx context.Context, req Request) Outcome {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Unavailable{Reason: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, s.buildRequest(req))
	if err != nil {
		return Unavailable{Reason: fmt.Sprintf("completion failed: %v", err)}
	}

	if len(resp.Choices) == 0 {
		return Unavailable{Reason: "completion returned no choices"}
	}

	content := resp.Choices[0].Message.Content
	if content == "" && len(resp.Choices[0].Message.MultiContent) > 0 {
		content = resp.Choices[0].Message.MultiContent[0].Text
	}

	scored, err := ParseVerdict(content)
	if err != nil {
		return Unavailable{Reason: err.Error()}
	}
	return scored
}

func (s *OpenAIScorer) buildRequest(req Request) openai.ChatCompletionRequest {
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: UserPrompt(req),
		},
	}

	if dataURL := s.media.DataURL(req.MediaRef); dataURL != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "thread_category_review",
				Schema: responseSchema,
			},
		},
	}
}

// UserPrompt renders the content block sent to the reviewer
func UserPrompt(req Request) string {
	title := orDefault(req.Title, "N/A")
	body := orDefault(req.Body, "N/A")
	tags := orDefault(strings.Join(nonEmpty(req.Tags), ", "), "None")
	categories := orDefault(strings.Join(nonEmpty(req.Categories), ", "), "None")

	return fmt.Sprintf("Title: %s\n\nBody: %s\n\nTags: %s\n\nCategories: %s\n\nIf the image is provided, incorporate it into your assessment.",
		title, body, tags, categories)
}

// verdict is the JSON object the reviewer is asked to return
type verdict struct {
	MatchPercentage interface{} `json:"match_percentage"`
	Reasoning       interface{} `json:"reasoning"`
}

// ParseVerdict decodes the reviewer output. Text that is not a JSON object
// is an error; a bad or missing match value inside a valid object scores 0.
func ParseVerdict(content string) (Scored, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if content == "" {
		return Scored{}, fmt.Errorf("empty reviewer output")
	}

	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return Scored{}, fmt.Errorf("malformed reviewer output: %w", err)
	}

	rationale, _ := v.Reasoning.(string)
	return Scored{
		Score:     CoerceScore(v.MatchPercentage),
		Rationale: strings.TrimSpace(rationale),
	}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// NewScorer builds the configured scorer: the OpenAI scorer behind a
// circuit breaker, or Disabled when no API key is set
func NewScorer(cfg *config.ReviewConfig, logger *zap.Logger) (Scorer, error) {
	if cfg.APIKey == "" {
		logger.Warn("No OpenAI API key configured, thread review is unavailable")
		return Disabled{}, nil
	}

	upstream, err := NewOpenAIScorer(cfg)
	if err != nil {
		return nil, err
	}
	return NewBreakerScorer(upstream, BreakerSettings{}, logger), nil
}
