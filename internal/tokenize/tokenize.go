// Package tokenize extracts base-form tokens from cleaned Japanese text using
// morphological analysis. Only nouns and verbs are kept; short tokens and
// stopwords are dropped. Output order matches input order and duplicates are
// preserved so frequencies can be counted downstream.
package tokenize

import (
	"fmt"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

const minTokenRunes = 2

// allowedPOS lists the major part-of-speech classes retained by the extractor.
var allowedPOS = map[string]bool{
	"名詞": true, // noun
	"動詞": true, // verb
}

var stopwords = map[string]bool{
	"する": true, "ある": true, "なる": true, "いる": true,
	"こと": true, "これ": true, "それ": true, "あれ": true,
	"ため": true, "よう": true, "さん": true, "です": true,
	"ます": true, "ん": true, "の": true, "に": true,
	"を": true, "が": true, "は": true, "と": true,
	"て": true, "で": true, "から": true, "まで": true,
	"より": true, "へ": true, "だ": true, "な": true,
	"ね": true, "よ": true, "けど": true, "そして": true,
}

// Extractor segments text with a shared IPA dictionary tokenizer. The
// dictionary load is expensive, so one Extractor is created per process and
// reused; Tokenize is safe for concurrent use.
type Extractor struct {
	tokenizer *tokenizer.Tokenizer
}

// New builds an Extractor backed by the bundled IPA dictionary.
func New() (*Extractor, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to build tokenizer: %w", err)
	}

	return &Extractor{tokenizer: t}, nil
}

// Tokenize splits clean text into filtered base-form tokens.
func (e *Extractor) Tokenize(clean string) []string {
	if clean == "" {
		return nil
	}

	var out []string

	for _, tok := range e.tokenizer.Tokenize(clean) {
		pos := tok.POS()
		if len(pos) == 0 || !allowedPOS[pos[0]] {
			continue
		}

		base, ok := tok.BaseForm()
		if !ok || base == "" || base == "*" {
			base = tok.Surface
		}

		if utf8.RuneCountInString(base) < minTokenRunes {
			continue
		}

		if stopwords[base] {
			continue
		}

		out = append(out, base)
	}

	return out
}
