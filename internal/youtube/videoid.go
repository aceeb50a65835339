package youtube

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
)

var (
	watchParamRegex = regexp.MustCompile(`[?&]v=([\w-]{11})`)
	shortURLRegex   = regexp.MustCompile(`youtu\.be/([\w-]{11})`)
	bareIDRegex     = regexp.MustCompile(`^[\w-]{11}$`)
)

// ExtractVideoID resolves a bare 11-character video id, a youtube.com watch
// URL, or a youtu.be short URL to the video id. Anything else fails with
// domain.ErrInvalidVideoID.
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)

	if strings.Contains(input, "youtube.com") || strings.Contains(input, "youtu.be") {
		if m := watchParamRegex.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}

		if m := shortURLRegex.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}

		return "", fmt.Errorf("%w: could not extract id from url", domain.ErrInvalidVideoID)
	}

	if bareIDRegex.MatchString(input) {
		return input, nil
	}

	return "", fmt.Errorf("%w: expected an 11-character id", domain.ErrInvalidVideoID)
}
