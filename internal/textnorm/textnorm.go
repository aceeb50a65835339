// Package textnorm converts raw comment markup into canonical clean text.
package textnorm

import (
	"html"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Placeholder tokens substituted for URL and @-mention substrings.
const (
	URLPlaceholder     = "<URL>"
	MentionPlaceholder = "<MENTION>"
)

var (
	urlRegex     = regexp.MustCompile(`https?://\S+`)
	mentionRegex = regexp.MustCompile(`@\w+`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// Normalize turns raw markup text into canonical clean text: entities decoded,
// line-break tags converted to newlines, remaining tags stripped, URLs and
// @-mentions replaced with placeholders, and whitespace collapsed. It is total
// and idempotent; empty input yields an empty string.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := html.UnescapeString(raw)
	text = strings.ReplaceAll(text, "\r", "\n")
	text = stripMarkup(text)
	text = urlRegex.ReplaceAllString(text, URLPlaceholder)
	text = mentionRegex.ReplaceAllString(text, MentionPlaceholder)
	text = spaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// stripMarkup removes markup tags, converting <br> variants to newlines and
// every other tag to a space so adjacent words do not fuse. The placeholder
// tokens parse as tags but must survive re-normalization, so they are passed
// through verbatim. Text is emitted from the raw bytes: entities were already
// decoded once and must not be decoded again.
func stripMarkup(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}

	var sb strings.Builder

	z := xhtml.NewTokenizer(strings.NewReader(text))

	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return sb.String()
		}

		raw := string(z.Raw())

		switch tt {
		case xhtml.TextToken:
			sb.WriteString(raw)
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken, xhtml.EndTagToken:
			if raw == URLPlaceholder || raw == MentionPlaceholder {
				sb.WriteString(raw)

				continue
			}

			name, _ := z.TagName()
			if string(name) == "br" {
				sb.WriteString("\n")
			} else {
				sb.WriteString(" ")
			}
		default:
			// comments and doctypes are dropped entirely
		}
	}
}
