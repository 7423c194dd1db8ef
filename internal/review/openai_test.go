package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/pkg/config"
)

type fakeCompleter struct {
	calls    int
	lastReq  openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	err      error
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func newTestScorer(client chatCompleter, mediaRoot string) *OpenAIScorer {
	return &OpenAIScorer{
		client: client,
		model:  "gpt-4.1-mini",
		media:  NewMediaResolver(mediaRoot),
		logger: zap.NewNop(),
	}
}

func TestOpenAIScorer_Scored(t *testing.T) {
	client := &fakeCompleter{response: completion(`{"match_percentage": 75, "reasoning": "On topic"}`)}
	scorer := newTestScorer(client, t.TempDir())

	outcome := scorer.Score(context.Background(), Request{
		Title:      "Cleaner rivers",
		Body:       "Community river cleanups",
		Tags:       []string{"water"},
		Categories: []string{"Clean Water and Sanitation"},
	})

	require.Equal(t, Scored{Score: 75, Rationale: "On topic"}, outcome)
	require.Equal(t, 1, client.calls)

	req := client.lastReq
	assert.Equal(t, "gpt-4.1-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Len(t, req.Messages[1].MultiContent, 1, "no image part without media")
	assert.Contains(t, req.Messages[1].MultiContent[0].Text, "Clean Water and Sanitation")
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, req.ResponseFormat.Type)
}

func TestOpenAIScorer_AttachesResolvableMedia(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "photo.jpg"), []byte("jpeg"), 0o644))

	client := &fakeCompleter{response: completion(`{"match_percentage": 90}`)}
	scorer := newTestScorer(client, root)

	outcome := scorer.Score(context.Background(), Request{Title: "t", Body: "b", MediaRef: "photo.jpg"})
	require.Equal(t, Scored{Score: 90}, outcome)

	parts := client.lastReq.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/jpeg;base64,")
}

func TestOpenAIScorer_UnresolvableMediaIsOmitted(t *testing.T) {
	client := &fakeCompleter{response: completion(`{"match_percentage": 55}`)}
	scorer := newTestScorer(client, t.TempDir())

	outcome := scorer.Score(context.Background(), Request{Title: "t", Body: "b", MediaRef: "gone.png"})
	require.Equal(t, Scored{Score: 55}, outcome)
	assert.Len(t, client.lastReq.Messages[1].MultiContent, 1)
}

func TestOpenAIScorer_FailuresCollapseToUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeCompleter
	}{
		{"transport error", &fakeCompleter{err: errors.New("connection refused")}},
		{"no choices", &fakeCompleter{response: openai.ChatCompletionResponse{}}},
		{"empty content", &fakeCompleter{response: completion("")}},
		{"malformed content", &fakeCompleter{response: completion("I think it matches")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := newTestScorer(tt.client, t.TempDir()).Score(context.Background(), Request{Title: "t"})
			_, ok := outcome.(Unavailable)
			assert.True(t, ok, "expected Unavailable, got %#v", outcome)
		})
	}
}

func TestOpenAIScorer_NonFiniteScoreIsZeroNotUnavailable(t *testing.T) {
	client := &fakeCompleter{response: completion(`{"match_percentage": "Infinity", "reasoning": "odd"}`)}
	outcome := newTestScorer(client, t.TempDir()).Score(context.Background(), Request{Title: "t"})
	assert.Equal(t, Scored{Score: 0, Rationale: "odd"}, outcome)
}

func TestNewOpenAIScorer_RequiresKey(t *testing.T) {
	_, err := NewOpenAIScorer(&config.ReviewConfig{Model: "gpt-4.1-mini", RateLimit: 1})
	assert.Error(t, err)
}

func TestNewScorer(t *testing.T) {
	scorer, err := NewScorer(&config.ReviewConfig{Model: "gpt-4.1-mini"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, scorer)

	scorer, err = NewScorer(&config.ReviewConfig{APIKey: "sk-test", Model: "gpt-4.1-mini", RateLimit: 1}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &BreakerScorer{}, scorer)
}
