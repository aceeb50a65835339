package sentiment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

// fakeOracle returns canned content per call, or an error.
type fakeOracle struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeOracle) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Messages[len(req.Messages)-1].Content)

	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}

	content := ""
	if len(f.responses) > 0 {
		content = f.responses[0]
		f.responses = f.responses[1:]
	}

	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func newTestAnalyzer(oracle *fakeOracle, batchSize int) *Analyzer {
	logger := zerolog.Nop()

	return newAnalyzer(oracle, "test-model", batchSize, &logger)
}

func wellFormed(n int) string {
	out := `{"results": [`

	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}

		out += fmt.Sprintf(`{"index": %d, "sentiment": "positive", "score": 0.8, "reason": "ok"}`, i+1)
	}

	return out + `]}`
}

func TestAnalyzeBatchEmptyInput(t *testing.T) {
	a := newTestAnalyzer(&fakeOracle{}, 10)

	results := a.AnalyzeBatch(context.Background(), nil, nil)

	require.Empty(t, results)
}

func TestAnalyzeBatchWellFormed(t *testing.T) {
	oracle := &fakeOracle{responses: []string{wellFormed(3)}}
	a := newTestAnalyzer(oracle, 10)

	results := a.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, nil)

	require.Len(t, results, 3)
	for _, r := range results {
		require.Equal(t, domain.SentimentPositive, r.Label)
		require.InDelta(t, 0.8, r.Score, 1e-9)
	}
	require.Equal(t, 1, oracle.calls)
}

func TestAnalyzeBatchChunking(t *testing.T) {
	oracle := &fakeOracle{responses: []string{wellFormed(2), wellFormed(2), wellFormed(1)}}
	a := newTestAnalyzer(oracle, 2)

	var progress [][2]int

	results := a.AnalyzeBatch(context.Background(), []string{"a", "b", "c", "d", "e"}, func(analyzed, total int) {
		progress = append(progress, [2]int{analyzed, total})
	})

	require.Len(t, results, 5)
	require.Equal(t, 3, oracle.calls)
	require.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestAnalyzeBatchLengthInvariant(t *testing.T) {
	// whatever the oracle does, output length equals input length
	tests := []struct {
		name     string
		response string
	}{
		{name: "well formed", response: wellFormed(4)},
		{name: "empty response", response: ""},
		{name: "non json", response: "I cannot classify these comments."},
		{name: "truncated", response: `{"results": [{"index": 1, "sentiment": "negative", "score": -0.7, "reason": "x"}]}`},
		{name: "out of range indices", response: `{"results": [{"index": 99, "sentiment": "positive", "score": 1, "reason": "x"}]}`},
		{name: "bare array", response: `[{"index": 2, "sentiment": "negative", "score": -0.6, "reason": "x"}]`},
		{name: "unexpected wrapper key", response: `{"classifications": [{"index": 1, "sentiment": "positive", "score": 0.9, "reason": "x"}]}`},
		{name: "markdown fences", response: "```json\n" + wellFormed(4) + "\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(&fakeOracle{responses: []string{tt.response}}, 10)

			results := a.AnalyzeBatch(context.Background(), []string{"a", "b", "c", "d"}, nil)

			require.Len(t, results, 4)
			for _, r := range results {
				require.NotEmpty(t, r.Label)
			}
		})
	}
}

func TestAnalyzeBatchAllFallbackOnCallFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection refused")}
	a := newTestAnalyzer(oracle, 10)

	results := a.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, nil)

	require.Len(t, results, 3)
	for _, r := range results {
		require.Equal(t, domain.SentimentNeutral, r.Label)
		require.Zero(t, r.Score)
		require.NotEmpty(t, r.Reason)
	}
}

func TestAnalyzeBatchPartialFillsFallback(t *testing.T) {
	oracle := &fakeOracle{responses: []string{`{"results": [{"index": 2, "sentiment": "negative", "score": -0.8, "reason": "批判的"}]}`}}
	a := newTestAnalyzer(oracle, 10)

	results := a.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, nil)

	require.Len(t, results, 3)
	require.Equal(t, domain.SentimentNeutral, results[0].Label)
	require.Equal(t, domain.SentimentNegative, results[1].Label)
	require.InDelta(t, -0.8, results[1].Score, 1e-9)
	require.Equal(t, domain.SentimentNeutral, results[2].Label)
	require.NotEmpty(t, results[0].Reason)
}

func TestAnalyzeBatchDuplicateIndicesFirstWins(t *testing.T) {
	oracle := &fakeOracle{responses: []string{`{"results": [
		{"index": 1, "sentiment": "positive", "score": 0.9, "reason": "first"},
		{"index": 1, "sentiment": "negative", "score": -0.9, "reason": "second"}
	]}`}}
	a := newTestAnalyzer(oracle, 10)

	results := a.AnalyzeBatch(context.Background(), []string{"a"}, nil)

	require.Len(t, results, 1)
	require.Equal(t, domain.SentimentPositive, results[0].Label)
	require.Equal(t, "first", results[0].Reason)
}

func TestPromptNumbersItemsAndTruncates(t *testing.T) {
	oracle := &fakeOracle{responses: []string{wellFormed(2)}}
	a := newTestAnalyzer(oracle, 10)

	long := ""
	for i := 0; i < 300; i++ {
		long += "あ"
	}

	a.AnalyzeBatch(context.Background(), []string{"短い", long}, nil)

	require.Len(t, oracle.prompts, 1)
	require.Contains(t, oracle.prompts[0], "1. 短い")
	require.Contains(t, oracle.prompts[0], "2. ")
	// the long text is cut to 200 runes before entering the prompt
	require.NotContains(t, oracle.prompts[0], long)
}
