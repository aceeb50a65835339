package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

func comment(label string, tokens ...string) domain.Comment {
	return domain.Comment{SentimentLabel: label, Tokens: tokens}
}

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary(nil, 30)

	require.Zero(t, s.TotalComments)
	require.Empty(t, s.TopTokens)
	require.False(t, s.GeneratedAt.IsZero())
}

func TestBuildSummarySentimentConservation(t *testing.T) {
	comments := []domain.Comment{
		comment(domain.SentimentPositive),
		comment(domain.SentimentPositive),
		comment(domain.SentimentNegative),
		comment(domain.SentimentNeutral),
		comment(""), // unlabeled counts as neutral
	}

	s := BuildSummary(comments, 30)

	require.Equal(t, 5, s.TotalComments)
	require.Equal(t, 2, s.SentimentDist.Positive)
	require.Equal(t, 1, s.SentimentDist.Negative)
	require.Equal(t, 2, s.SentimentDist.Neutral)
	require.Equal(t, s.TotalComments, s.SentimentDist.Positive+s.SentimentDist.Neutral+s.SentimentDist.Negative)
}

func TestBuildSummaryTokenRanking(t *testing.T) {
	comments := []domain.Comment{
		comment(domain.SentimentNeutral, "動画", "音楽"),
		comment(domain.SentimentNeutral, "音楽", "動画"),
		comment(domain.SentimentNeutral, "動画"),
	}

	s := BuildSummary(comments, 30)

	require.Equal(t, []domain.TokenCount{
		{Token: "動画", Count: 3},
		{Token: "音楽", Count: 2},
	}, s.TopTokens)
}

func TestBuildSummaryTieBreakByFirstOccurrence(t *testing.T) {
	comments := []domain.Comment{
		comment(domain.SentimentNeutral, "編集", "音楽", "歌声"),
		comment(domain.SentimentNeutral, "歌声", "音楽", "編集"),
	}

	s := BuildSummary(comments, 30)

	require.Equal(t, []domain.TokenCount{
		{Token: "編集", Count: 2},
		{Token: "音楽", Count: 2},
		{Token: "歌声", Count: 2},
	}, s.TopTokens)
}

func TestBuildSummaryTopKCutoff(t *testing.T) {
	comments := []domain.Comment{
		comment(domain.SentimentNeutral, "一", "二", "三", "四", "五"),
	}

	s := BuildSummary(comments, 3)

	require.Len(t, s.TopTokens, 3)
	require.Equal(t, "一", s.TopTokens[0].Token)
}
