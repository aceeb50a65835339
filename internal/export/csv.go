// Package export renders analysis results into downloadable formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

var csvHeader = []string{
	"commentId",
	"authorDisplayName",
	"textClean",
	"sentimentLabel",
	"sentimentScore",
	"sentimentReason",
	"likeCount",
	"publishedAt",
	"isReply",
}

// WriteCSV streams the per-comment analysis rows in their stored order.
func WriteCSV(w io.Writer, comments []domain.Comment) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, c := range comments {
		row := []string{
			c.CommentID,
			c.AuthorDisplayName,
			c.TextClean,
			c.SentimentLabel,
			strconv.FormatFloat(c.SentimentScore, 'f', -1, 64),
			c.SentimentReason,
			strconv.FormatInt(c.LikeCount, 10),
			c.PublishedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(c.IsReply),
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for comment %s: %w", c.CommentID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// Filename names the download after the video so exports are easy to tell apart.
func Filename(videoID string) string {
	return fmt.Sprintf("comments_%s.csv", videoID)
}
