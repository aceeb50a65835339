// Package youtube fetches ordered comment threads for a video from the
// YouTube Data API v3, with pagination, a caller-supplied cap, and bounded
// retry on quota errors.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

const pageSize = 100

// ProgressFunc is notified with the running accumulated comment count after
// each fetched page.
type ProgressFunc func(fetched int)

// RetryConfig bounds the quota retry loop. Quota errors (403/429) retry the
// same page with exponential backoff and jitter; once MaxRetries is exhausted
// the fetch fails with domain.ErrRateLimitExceeded.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
}

const (
	defaultQuotaRetries = 5
	defaultQuotaDelay   = 2 * time.Second
	delayMultiplier     = 2
)

// DefaultRetryConfig returns the default quota retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   defaultQuotaRetries,
		InitialDelay: defaultQuotaDelay,
	}
}

// Client is a long-lived comment source client, created once per process.
type Client struct {
	svc    *yt.Service
	retry  RetryConfig
	logger *zerolog.Logger
}

// New creates a Client authenticated with an API key. Extra options are
// passed through to the underlying service, which lets tests point the client
// at a local server.
func New(ctx context.Context, apiKey string, retry RetryConfig, logger *zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = defaultQuotaRetries
	}

	if retry.InitialDelay <= 0 {
		retry.InitialDelay = defaultQuotaDelay
	}

	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)

	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	return &Client{svc: svc, retry: retry, logger: logger}, nil
}

// FetchComments retrieves up to maxComments comments for a video in the
// source's most-recent-first order. Replies, when requested, follow their
// parent immediately in source order. Any non-quota transport or protocol
// error aborts the fetch with domain.ErrFetchFailed; no partial result is
// returned.
func (c *Client) FetchComments(ctx context.Context, videoID string, maxComments int, includeReplies bool, onPage ProgressFunc) ([]domain.Comment, error) {
	var comments []domain.Comment

	pageToken := ""

	for {
		resp, err := c.listPage(ctx, videoID, pageToken, includeReplies)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			comments = append(comments, c.topLevelComment(videoID, item))

			if includeReplies && item.Replies != nil {
				for _, rep := range item.Replies.Comments {
					comments = append(comments, c.replyComment(videoID, rep))
				}
			}
		}

		if onPage != nil {
			onPage(len(comments))
		}

		if len(comments) >= maxComments {
			break
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(comments) > maxComments {
		comments = comments[:maxComments]
	}

	return comments, nil
}

// listPage requests one page, retrying the same page on quota errors.
func (c *Client) listPage(ctx context.Context, videoID, pageToken string, includeReplies bool) (*yt.CommentThreadListResponse, error) {
	parts := []string{"snippet"}
	if includeReplies {
		parts = append(parts, "replies")
	}

	delay := c.retry.InitialDelay

	for attempt := 0; ; attempt++ {
		call := c.svc.CommentThreads.List(parts).
			VideoId(videoID).
			MaxResults(pageSize).
			TextFormat("html").
			Order("time").
			Context(ctx)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err == nil {
			return resp, nil
		}

		if !isQuotaError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
		}

		if attempt >= c.retry.MaxRetries {
			return nil, fmt.Errorf("%w after %d attempts", domain.ErrRateLimitExceeded, attempt+1)
		}

		c.logger.Warn().
			Str("video_id", videoID).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("comment source rate limited, retrying page")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("quota retry interrupted: %w", ctx.Err())
		case <-time.After(withJitter(delay)):
			delay *= delayMultiplier
		}
	}
}

func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusForbidden || gerr.Code == http.StatusTooManyRequests
	}

	return false
}

// withJitter spreads the delay by ±20% so concurrent workers do not retry in
// lockstep.
func withJitter(d time.Duration) time.Duration {
	f := 0.8 + 0.4*rand.Float64() //nolint:gosec // jitter does not need crypto randomness

	return time.Duration(float64(d) * f)
}

func (c *Client) topLevelComment(videoID string, item *yt.CommentThread) domain.Comment {
	sn := item.Snippet.TopLevelComment.Snippet

	return domain.Comment{
		CommentID:         item.Snippet.TopLevelComment.Id,
		VideoID:           videoID,
		AuthorDisplayName: sn.AuthorDisplayName,
		TextOriginal:      sn.TextDisplay,
		LikeCount:         sn.LikeCount,
		PublishedAt:       parseTime(sn.PublishedAt),
		UpdatedAt:         parseTime(sn.UpdatedAt),
	}
}

func (c *Client) replyComment(videoID string, rep *yt.Comment) domain.Comment {
	sn := rep.Snippet

	return domain.Comment{
		CommentID:         rep.Id,
		VideoID:           videoID,
		AuthorDisplayName: sn.AuthorDisplayName,
		TextOriginal:      sn.TextDisplay,
		LikeCount:         sn.LikeCount,
		PublishedAt:       parseTime(sn.PublishedAt),
		UpdatedAt:         parseTime(sn.UpdatedAt),
		ParentID:          sn.ParentId,
		IsReply:           true,
	}
}

// parseTime tolerates the timestamp variants the API has been observed to
// emit; a malformed timestamp degrades to the zero time instead of failing
// the page.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}

	return t.UTC()
}
