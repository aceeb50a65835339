// Package analysis derives the job summary from fully enriched comments.
package analysis

import (
	"sort"
	"time"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

// DefaultTopTokens is the top-K cutoff for the token ranking.
const DefaultTopTokens = 30

// BuildSummary recomputes the aggregate over all comments of a job: total
// count, sentiment distribution, and the top-K tokens by descending count.
// Equal counts break by first occurrence across the comment sequence, so the
// ranking is deterministic for a fixed input.
func BuildSummary(comments []domain.Comment, topK int) domain.Summary {
	if topK <= 0 {
		topK = DefaultTopTokens
	}

	var dist domain.SentimentDist

	counts := make(map[string]int)
	order := make([]string, 0)

	for _, c := range comments {
		switch c.SentimentLabel {
		case domain.SentimentPositive:
			dist.Positive++
		case domain.SentimentNegative:
			dist.Negative++
		default:
			dist.Neutral++
		}

		for _, tok := range c.Tokens {
			if counts[tok] == 0 {
				order = append(order, tok)
			}

			counts[tok]++
		}
	}

	ranked := make([]domain.TokenCount, len(order))
	for i, tok := range order {
		ranked[i] = domain.TokenCount{Token: tok, Count: counts[tok]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	return domain.Summary{
		TotalComments: len(comments),
		SentimentDist: dist,
		TopTokens:     ranked,
		GeneratedAt:   time.Now().UTC(),
	}
}
