package interaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/sdgforum/internal/models"
)

type fakeSource struct {
	rows    []models.InteractionCount
	replies map[string]int64
	err     error
	queries int
}

func (f *fakeSource) CountInteractions(_ context.Context, _ []string) ([]models.InteractionCount, error) {
	f.queries++
	return f.rows, f.err
}

func (f *fakeSource) CountReplies(_ context.Context, _ []string) (map[string]int64, error) {
	return f.replies, nil
}

func TestSummarize_EmptyInput(t *testing.T) {
	source := &fakeSource{}
	got, err := NewAggregator(source).Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, source.queries)
}

func TestSummarize(t *testing.T) {
	source := &fakeSource{
		rows: []models.InteractionCount{
			{ThreadID: "a", Type: models.InteractionLike, Total: 3},
			{ThreadID: "a", Type: models.InteractionRepost, Total: 1},
			{ThreadID: "b", Type: models.InteractionLike, Total: 2},
			{ThreadID: "stranger", Type: models.InteractionLike, Total: 9},
		},
		replies: map[string]int64{"b": 4},
	}

	got, err := NewAggregator(source).Summarize(context.Background(), []string{"a", "b", "c", "a"})
	require.NoError(t, err)

	tests := []struct {
		id       string
		expected Counts
	}{
		{"a", Counts{Likes: 3, Reposts: 1}},
		{"b", Counts{Likes: 2, Replies: 4}},
		{"c", Counts{}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got[tt.id] != tt.expected {
				t.Errorf("Summarize()[%s] = %+v, want %+v", tt.id, got[tt.id], tt.expected)
			}
		})
	}
	assert.Len(t, got, 3)
}

func TestSummarize_SourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	_, err := NewAggregator(source).Summarize(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
