package domain

import "time"

// Sentiment labels assigned by the classifier.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Comment is one top-level or reply message from the source platform.
// Raw fields are set by the fetcher; TextClean, Tokens and the Sentiment*
// fields are filled in during one worker pass and never mutated afterward.
type Comment struct {
	CommentID         string    `json:"commentId"`
	VideoID           string    `json:"videoId"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	TextOriginal      string    `json:"textOriginal"`
	TextClean         string    `json:"textClean,omitempty"`
	LikeCount         int64     `json:"likeCount"`
	PublishedAt       time.Time `json:"publishedAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	ParentID          string    `json:"parentId,omitempty"`
	IsReply           bool      `json:"isReply"`
	Tokens            []string  `json:"tokens,omitempty"`
	SentimentLabel    string    `json:"sentimentLabel,omitempty"`
	SentimentScore    float64   `json:"sentimentScore"`
	SentimentReason   string    `json:"sentimentReason,omitempty"`
}

// TokenCount is one (token, count) pair in the top-token ranking.
type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// SentimentDist counts comments per sentiment label.
type SentimentDist struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Summary is the aggregate over all comments of a job. It is derived data,
// recomputed fully on each job run.
type Summary struct {
	TotalComments int           `json:"totalComments"`
	SentimentDist SentimentDist `json:"sentimentDist"`
	TopTokens     []TokenCount  `json:"topTokens"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// Result is the final payload attached to a completed job.
type Result struct {
	Summary  Summary   `json:"summary"`
	Comments []Comment `json:"comments"`
}
